package notify

import (
	"context"
	"sync"
)

// DefaultRecorderSize is the number of events a Recorder keeps by default.
const DefaultRecorderSize = 256

// Recorder keeps the most recent events in a bounded ring buffer.
// Used by the HTTP API's /events endpoint and by tests.
//
// Thread-safety: all methods are safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	next   int
	full   bool
	total  int64
}

// NewRecorder creates a recorder holding up to size events.
// A non-positive size uses DefaultRecorderSize.
func NewRecorder(size int) *Recorder {
	if size <= 0 {
		size = DefaultRecorderSize
	}
	return &Recorder{events: make([]Event, size)}
}

// Notify implements Sink. The oldest event is overwritten when full.
func (r *Recorder) Notify(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events[r.next] = ev
	r.next = (r.next + 1) % len(r.events)
	if r.next == 0 {
		r.full = true
	}
	r.total++
	return nil
}

// Recent returns up to n events, oldest first. n <= 0 returns all held events.
func (r *Recorder) Recent(n int) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	held := r.next
	if r.full {
		held = len(r.events)
	}
	if n <= 0 || n > held {
		n = held
	}

	out := make([]Event, 0, n)
	start := r.next - n
	if start < 0 {
		start += len(r.events)
	}
	for i := 0; i < n; i++ {
		out = append(out, r.events[(start+i)%len(r.events)])
	}
	return out
}

// Total returns the number of events ever recorded.
func (r *Recorder) Total() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total
}

// Count returns how many held events have type t.
func (r *Recorder) Count(t EventType) int {
	count := 0
	for _, ev := range r.Recent(0) {
		if ev.Type == t {
			count++
		}
	}
	return count
}
