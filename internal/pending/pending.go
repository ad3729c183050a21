// Package pending defines the unit the reconciliation subsystem manages:
// an Operation whose payment has been submitted but whose business effect
// has not been applied yet.
//
// This package contains type definitions only. The store persists
// Operations; the reconcile loop drives them through their states.
package pending

import (
	"fmt"
	"strings"
	"time"

	"github.com/roach88/paywatch/internal/payload"
)

// keyPrefix namespaces operation ids in the store.
const keyPrefix = "pending"

// State is the lifecycle state of an Operation.
type State string

const (
	StatePending   State = "pending"
	StateConfirmed State = "confirmed"
	StateFailed    State = "failed"
	StateAbandoned State = "abandoned"
)

// Terminal reports whether no further automatic transition happens from s.
func (s State) Terminal() bool {
	return s == StateConfirmed || s == StateFailed || s == StateAbandoned
}

// ID identifies the logical action an Operation performs: one owner, one
// kind. Rendered as "pending:<kind>:<owner>".
type ID string

// NewID derives the operation id for an owner and kind.
func NewID(kind payload.Kind, owner string) ID {
	return ID(fmt.Sprintf("%s:%s:%s", keyPrefix, kind, strings.TrimSpace(owner)))
}

// ParseID splits an id into its kind and owner.
func ParseID(s string) (payload.Kind, string, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 || parts[0] != keyPrefix || parts[2] == "" {
		return "", "", fmt.Errorf("invalid operation id %q", s)
	}
	kind, err := payload.ParseKind(parts[1])
	if err != nil {
		return "", "", fmt.Errorf("invalid operation id %q: %w", s, err)
	}
	return kind, parts[2], nil
}

// Operation is a submitted payment awaiting its business effect.
type Operation struct {
	ID          ID
	Kind        payload.Kind
	Owner       string
	TxRef       string
	Payload     payload.Payload
	SubmittedAt time.Time
	State       State

	// Attempts counts failed commit attempts after confirmation.
	Attempts int
	// LastError is the most recent commit error or terminal reason.
	LastError string
	UpdatedAt time.Time
}

// New builds a pending Operation for a freshly submitted transaction.
func New(owner, txRef string, p payload.Payload, submittedAt time.Time) (Operation, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return Operation{}, fmt.Errorf("new operation: owner is required")
	}
	if txRef == "" {
		return Operation{}, fmt.Errorf("new operation: transaction reference is required")
	}
	if p == nil {
		return Operation{}, fmt.Errorf("new operation: payload is required")
	}

	return Operation{
		ID:          NewID(p.Kind(), owner),
		Kind:        p.Kind(),
		Owner:       owner,
		TxRef:       txRef,
		Payload:     p,
		SubmittedAt: submittedAt,
		State:       StatePending,
		UpdatedAt:   submittedAt,
	}, nil
}

// Abandoned is an archived operation that timed out before its effect was
// applied. Resolution is empty until an operator resolves it.
type Abandoned struct {
	Operation   Operation
	AbandonedAt time.Time
	Resolution  string
	ResolvedAt  *time.Time
}
