package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/paywatch/internal/notify"
	"github.com/roach88/paywatch/internal/payload"
	"github.com/roach88/paywatch/internal/pending"
)

// Reporter turns failed and abandoned operations into user-facing events.
//
// Report methods never panic and never return errors: the caller removes
// the entry after reporting regardless of what the sink does.
type Reporter struct {
	sink    notify.Sink
	clock   Clock
	logger  *slog.Logger
	timeout string
}

// NewReporter creates a Reporter. A nil sink discards events.
func NewReporter(sink notify.Sink, clock Clock, logger *slog.Logger) *Reporter {
	if sink == nil {
		sink = notify.Discard
	}
	if clock == nil {
		clock = wallClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{sink: sink, clock: clock, logger: logger}
}

// ReportTimeout emits operationTimedOut. The message stays qualified since
// the transaction was never seen failing and may still land. An entry with
// commit attempts was seen confirmed, so its message says the payment went
// through and the record is missing.
func (r *Reporter) ReportTimeout(ctx context.Context, op pending.Operation) {
	reason := "timeout"
	msg := fmt.Sprintf(
		"Your %s payment was not confirmed in time. The transaction may still succeed on-chain; check your wallet before paying again.",
		describe(op.Kind),
	)
	if op.Attempts > 0 {
		reason = "commit_failed"
		msg = fmt.Sprintf(
			"Your %s payment was confirmed on-chain, but it could not be recorded. Do not pay again; contact support with transaction %s.",
			describe(op.Kind), op.TxRef,
		)
	}

	r.emit(ctx, notify.Event{
		Type:        notify.EventTimedOut,
		OperationID: op.ID,
		Kind:        op.Kind,
		Owner:       op.Owner,
		TxRef:       op.TxRef,
		Reason:      reason,
		Message:     msg,
	})
}

// ReportFailure emits operationFailed with a message inviting a retry.
func (r *Reporter) ReportFailure(ctx context.Context, op pending.Operation, reason string) {
	r.emit(ctx, notify.Event{
		Type:        notify.EventFailed,
		OperationID: op.ID,
		Kind:        op.Kind,
		Owner:       op.Owner,
		TxRef:       op.TxRef,
		Reason:      reason,
		Message: fmt.Sprintf(
			"Your %s payment failed on-chain, so nothing was recorded. You can submit it again.",
			describe(op.Kind),
		),
	})
}

func (r *Reporter) emit(ctx context.Context, ev notify.Event) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("notification sink panicked",
				"operation_id", ev.OperationID,
				"event", ev.Type,
				"panic", p,
			)
		}
	}()

	ev.At = r.clock.Now()
	if err := r.sink.Notify(ctx, ev); err != nil {
		r.logger.Warn("notification failed",
			"operation_id", ev.OperationID,
			"event", ev.Type,
			"error", err,
		)
	}
}

func describe(kind payload.Kind) string {
	switch kind {
	case payload.KindJob:
		return "job posting"
	case payload.KindExtend:
		return "job extension"
	case payload.KindProject:
		return "project creation"
	case payload.KindFunding:
		return "contribution"
	default:
		return string(kind)
	}
}
