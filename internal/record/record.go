// Package record defines the system-of-record contract used by the
// idempotent commit: a kind-specific Writer that can look a record up by
// the transaction reference that paid for it, and insert one.
//
// Implementations live in internal/store (SQLite) and internal/pgstore
// (Postgres).
package record

import (
	"context"
	"errors"
	"time"

	"github.com/roach88/paywatch/internal/payload"
)

// Record is a committed business record.
// TxRef is the idempotence key: at most one record per reference.
type Record struct {
	ID          string
	Kind        payload.Kind
	Owner       string
	TxRef       string
	Payload     payload.Payload
	PayloadHash string
	CreatedAt   time.Time
}

// Writer applies one kind of payload to the system of record.
type Writer interface {
	// FindByReference returns the record carrying ref, or nil if none.
	FindByReference(ctx context.Context, ref string) (*Record, error)

	// Insert writes rec. It reports inserted=false without error if a
	// record with the same TxRef already exists.
	Insert(ctx context.Context, rec Record) (inserted bool, err error)
}

var (
	// ErrJobNotFound is returned when an extension targets a missing job.
	ErrJobNotFound = errors.New("job not found")

	// ErrProjectNotFound is returned when a contribution targets a missing project.
	ErrProjectNotFound = errors.New("project not found")

	// ErrCurrencyMismatch is returned when a contribution's currency differs
	// from its project's.
	ErrCurrencyMismatch = errors.New("contribution currency does not match project")

	// ErrWrongKind is returned when a writer receives another kind's payload.
	ErrWrongKind = errors.New("payload kind does not match writer")
)
