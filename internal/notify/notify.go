// Package notify delivers reconciliation outcomes to interested parties.
//
// Three event types exist: operationConfirmed (emitted by the commit step on
// a first-time insert), operationFailed and operationTimedOut (emitted by the
// reporter). A Sink receives events; Fanout, LogSink and Recorder compose.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/paywatch/internal/payload"
	"github.com/roach88/paywatch/internal/pending"
)

// EventType names a reconciliation outcome.
type EventType string

const (
	EventConfirmed EventType = "operationConfirmed"
	EventFailed    EventType = "operationFailed"
	EventTimedOut  EventType = "operationTimedOut"
)

// Event is a single user-facing outcome for one operation.
type Event struct {
	Type        EventType    `json:"type"`
	OperationID pending.ID   `json:"operation_id"`
	Kind        payload.Kind `json:"kind"`
	Owner       string       `json:"owner"`
	TxRef       string       `json:"tx_ref"`
	RecordID    string       `json:"record_id,omitempty"`
	Reason      string       `json:"reason,omitempty"`
	Message     string       `json:"message"`
	At          time.Time    `json:"at"`
}

// Sink receives events. Implementations must be safe for concurrent use.
type Sink interface {
	Notify(ctx context.Context, ev Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, ev Event) error

// Notify calls f.
func (f SinkFunc) Notify(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

// Discard drops every event.
var Discard Sink = SinkFunc(func(context.Context, Event) error { return nil })

// Fanout delivers each event to every sink in order. A failing sink does
// not stop delivery to the rest; errors are joined.
type Fanout []Sink

// Notify implements Sink.
func (f Fanout) Notify(ctx context.Context, ev Event) error {
	var errs []error
	for i, s := range f {
		if s == nil {
			continue
		}
		if err := s.Notify(ctx, ev); err != nil {
			errs = append(errs, fmt.Errorf("sink %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
