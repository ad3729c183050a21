// Package commit applies a confirmed payment's payload to the system of
// record exactly once per transaction reference.
//
// The Committer dispatches on payload kind to a record.Writer. A record
// already carrying the reference means the work is done; otherwise the
// writer inserts with ON CONFLICT(tx_ref) DO NOTHING, so a concurrent
// insert by another process is also a no-op success. Only a first-time
// insert emits operationConfirmed.
package commit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/paywatch/internal/notify"
	"github.com/roach88/paywatch/internal/payload"
	"github.com/roach88/paywatch/internal/pending"
	"github.com/roach88/paywatch/internal/record"
)

// ErrUnknownKind is returned when no writer is registered for a payload kind.
var ErrUnknownKind = errors.New("no writer for payload kind")

// Clock supplies the record creation time.
type Clock interface {
	Now() time.Time
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

// Result describes the outcome of a successful Commit.
type Result struct {
	// Record is the record carrying the reference, whether written now or
	// found from an earlier commit.
	Record record.Record

	// Inserted is true only for the call that wrote the record.
	Inserted bool
}

// Committer is the idempotent commit step.
//
// Thread-safety: safe for concurrent use if the writers and sink are.
type Committer struct {
	writers map[payload.Kind]record.Writer
	sink    notify.Sink
	ids     IDGenerator
	clock   Clock
	logger  *slog.Logger
}

// Option configures a Committer.
type Option func(*Committer)

// WithSink sets the sink receiving operationConfirmed. Default: notify.Discard.
func WithSink(s notify.Sink) Option {
	return func(c *Committer) { c.sink = s }
}

// WithIDGenerator sets the record id source. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(c *Committer) { c.ids = g }
}

// WithClock sets the clock stamping records. Default: wall clock.
func WithClock(clk Clock) Option {
	return func(c *Committer) { c.clock = clk }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Committer) { c.logger = l }
}

// New creates a Committer over the given kind-specific writers.
// The map is copied.
func New(writers map[payload.Kind]record.Writer, opts ...Option) *Committer {
	c := &Committer{
		writers: make(map[payload.Kind]record.Writer, len(writers)),
		sink:    notify.Discard,
		ids:     UUIDv7Generator{},
		clock:   wallClock{},
		logger:  slog.Default(),
	}
	for k, w := range writers {
		c.writers[k] = w
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Commit writes op's payload to the system of record, tagged with op.TxRef.
// Calling Commit any number of times, from any number of processes, leaves
// exactly one record for the reference.
func (c *Committer) Commit(ctx context.Context, op pending.Operation) (Result, error) {
	if op.Payload == nil {
		return Result{}, fmt.Errorf("commit %s: nil payload", op.ID)
	}
	kind := op.Payload.Kind()
	if op.Kind != "" && op.Kind != kind {
		return Result{}, fmt.Errorf("commit %s: operation kind %q carries %q payload: %w", op.ID, op.Kind, kind, record.ErrWrongKind)
	}

	w, ok := c.writers[kind]
	if !ok {
		return Result{}, fmt.Errorf("commit %s: %w: %q", op.ID, ErrUnknownKind, kind)
	}

	existing, err := w.FindByReference(ctx, op.TxRef)
	if err != nil {
		return Result{}, fmt.Errorf("commit %s: find by reference: %w", op.ID, err)
	}
	if existing != nil {
		c.logger.Debug("already committed",
			"operation_id", op.ID,
			"tx_ref", op.TxRef,
			"record_id", existing.ID,
		)
		return Result{Record: *existing}, nil
	}

	normalized := payload.Normalize(op.Payload)
	hash, err := payload.Hash(normalized)
	if err != nil {
		return Result{}, fmt.Errorf("commit %s: %w", op.ID, err)
	}

	rec := record.Record{
		ID:          c.ids.Generate(),
		Kind:        kind,
		Owner:       op.Owner,
		TxRef:       op.TxRef,
		Payload:     normalized,
		PayloadHash: hash,
		CreatedAt:   c.clock.Now().UTC(),
	}

	inserted, err := w.Insert(ctx, rec)
	if err != nil {
		return Result{}, fmt.Errorf("commit %s: insert: %w", op.ID, err)
	}
	if !inserted {
		// Another process won the insert between our lookup and write.
		existing, err := w.FindByReference(ctx, op.TxRef)
		if err != nil {
			return Result{}, fmt.Errorf("commit %s: find by reference: %w", op.ID, err)
		}
		if existing != nil {
			rec = *existing
		}
		c.logger.Debug("concurrent commit absorbed",
			"operation_id", op.ID,
			"tx_ref", op.TxRef,
		)
		return Result{Record: rec}, nil
	}

	c.logger.Info("record committed",
		"operation_id", op.ID,
		"kind", kind,
		"tx_ref", op.TxRef,
		"record_id", rec.ID,
	)

	c.emitConfirmed(ctx, op, rec)
	return Result{Record: rec, Inserted: true}, nil
}

// emitConfirmed notifies the sink. The record is already written, so sink
// errors and panics are logged and swallowed.
func (c *Committer) emitConfirmed(ctx context.Context, op pending.Operation, rec record.Record) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("notification sink panicked",
				"operation_id", op.ID,
				"event", notify.EventConfirmed,
				"panic", r,
			)
		}
	}()

	ev := notify.Event{
		Type:        notify.EventConfirmed,
		OperationID: op.ID,
		Kind:        rec.Kind,
		Owner:       op.Owner,
		TxRef:       op.TxRef,
		RecordID:    rec.ID,
		Message:     confirmedMessage(rec.Kind),
		At:          rec.CreatedAt,
	}
	if err := c.sink.Notify(ctx, ev); err != nil {
		c.logger.Warn("notification failed",
			"operation_id", op.ID,
			"event", notify.EventConfirmed,
			"error", err,
		)
	}
}

func confirmedMessage(kind payload.Kind) string {
	switch kind {
	case payload.KindJob:
		return "Payment confirmed. Your job listing is now live."
	case payload.KindExtend:
		return "Payment confirmed. Your job listing has been extended."
	case payload.KindProject:
		return "Payment confirmed. Your project is now accepting contributions."
	case payload.KindFunding:
		return "Payment confirmed. Thank you for your contribution."
	default:
		return "Payment confirmed."
	}
}
