// Package checkout is the "submit, then track" entry point for a paid
// action: validate the payload, broadcast the payment, and hand the
// resulting pending operation to the reconciliation loop.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/paywatch/internal/ledger"
	"github.com/roach88/paywatch/internal/payload"
	"github.com/roach88/paywatch/internal/pending"
)

// Tracker accepts submitted operations. Implemented by *reconcile.Loop.
type Tracker interface {
	Submit(ctx context.Context, op pending.Operation) error
	CheckNow(ctx context.Context, id pending.ID) (pending.State, error)
}

// Clock stamps submissions.
type Clock interface {
	Now() time.Time
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

// ErrInvalidPayment is returned for a payment that fails local checks.
var ErrInvalidPayment = errors.New("invalid payment")

// SubmissionError reports that the submitter rejected or failed to
// broadcast the payment. Nothing was stored.
type SubmissionError struct {
	Kind payload.Kind
	Err  error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submit %s payment: %v", e.Kind, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// IsSubmissionError reports whether err wraps a SubmissionError.
func IsSubmissionError(err error) bool {
	var se *SubmissionError
	return errors.As(err, &se)
}

// Request is one paid action.
type Request struct {
	Owner   string
	Kind    payload.Kind
	Payload payload.Payload
	Payment ledger.Payment

	// CheckNow asks the oracle once right after tracking starts.
	CheckNow bool
}

// Receipt describes a tracked payment.
type Receipt struct {
	Operation pending.Operation
	// State is the operation's state after the optional immediate check.
	State pending.State
}

// Checkout ties a Submitter to a Tracker.
type Checkout struct {
	submitter ledger.Submitter
	tracker   Tracker
	validator *payload.Validator
	clock     Clock
	logger    *slog.Logger
}

// Option configures a Checkout.
type Option func(*Checkout)

// WithClock sets the clock stamping submissions.
func WithClock(c Clock) Option {
	return func(co *Checkout) { co.clock = c }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(co *Checkout) { co.logger = l }
}

// New creates a Checkout.
func New(submitter ledger.Submitter, tracker Tracker, validator *payload.Validator, opts ...Option) *Checkout {
	c := &Checkout{
		submitter: submitter,
		tracker:   tracker,
		validator: validator,
		clock:     wallClock{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Pay validates req, submits its payment and starts tracking it.
//
// Validation and submission errors leave nothing behind. An error after
// submission still names the transaction reference, since the payment may
// be on its way to the chain.
func (c *Checkout) Pay(ctx context.Context, req Request) (Receipt, error) {
	if req.Payload == nil {
		return Receipt{}, &payload.ValidationError{Kind: req.Kind, Details: []string{"payload is required"}}
	}
	kind := req.Payload.Kind()
	if req.Kind != "" && req.Kind != kind {
		return Receipt{}, &payload.ValidationError{
			Kind:    req.Kind,
			Details: []string{fmt.Sprintf("payload is a %s payload", kind)},
		}
	}
	owner := strings.TrimSpace(req.Owner)
	if owner == "" {
		return Receipt{}, &payload.ValidationError{Kind: kind, Details: []string{"owner is required"}}
	}
	if err := c.validator.Validate(req.Payload); err != nil {
		return Receipt{}, err
	}
	if err := req.Payment.Validate(); err != nil {
		return Receipt{}, fmt.Errorf("%w: %v", ErrInvalidPayment, err)
	}

	payment := req.Payment
	payment.Metadata = withMetadata(payment.Metadata, kind, owner)

	ref, err := c.submitter.Submit(ctx, payment)
	if err != nil {
		c.logger.Warn("payment submission failed",
			"kind", kind,
			"owner", owner,
			"error", err,
		)
		return Receipt{}, &SubmissionError{Kind: kind, Err: err}
	}

	op, err := pending.New(owner, ref, payload.Normalize(req.Payload), c.clock.Now())
	if err != nil {
		c.logger.Error("payment submitted but not tracked", "tx_ref", ref, "error", err)
		return Receipt{Operation: pending.Operation{Kind: kind, Owner: owner, TxRef: ref}},
			fmt.Errorf("track payment %s: %w", ref, err)
	}
	if err := c.tracker.Submit(ctx, op); err != nil {
		c.logger.Error("payment submitted but not tracked",
			"operation_id", op.ID,
			"tx_ref", ref,
			"error", err,
		)
		return Receipt{Operation: op}, fmt.Errorf("track payment %s: %w", ref, err)
	}

	receipt := Receipt{Operation: op, State: pending.StatePending}
	if req.CheckNow {
		state, err := c.tracker.CheckNow(ctx, op.ID)
		if err != nil {
			c.logger.Debug("immediate check skipped", "operation_id", op.ID, "error", err)
		} else {
			receipt.State = state
		}
	}
	return receipt, nil
}

func withMetadata(md map[string]string, kind payload.Kind, owner string) map[string]string {
	out := make(map[string]string, len(md)+2)
	for k, v := range md {
		out[k] = v
	}
	if _, ok := out["kind"]; !ok {
		out["kind"] = string(kind)
	}
	if _, ok := out["owner"]; !ok && owner != "" {
		out["owner"] = owner
	}
	return out
}
