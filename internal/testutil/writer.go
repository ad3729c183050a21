package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/roach88/paywatch/internal/record"
)

// ErrInjected is the default error returned by FlakyWriter.
var ErrInjected = errors.New("injected write failure")

// FlakyWriter wraps a record.Writer and fails its first N inserts.
// Used to exercise the "payment succeeded, save failed" path.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FlakyWriter struct {
	Inner record.Writer

	mu       sync.Mutex
	failures int
	err      error
	inserts  int
}

// NewFlakyWriter fails the first failures inserts with ErrInjected.
func NewFlakyWriter(inner record.Writer, failures int) *FlakyWriter {
	return &FlakyWriter{Inner: inner, failures: failures, err: ErrInjected}
}

// FindByReference delegates to the wrapped writer.
func (w *FlakyWriter) FindByReference(ctx context.Context, ref string) (*record.Record, error) {
	return w.Inner.FindByReference(ctx, ref)
}

// Insert fails while failures remain, then delegates.
func (w *FlakyWriter) Insert(ctx context.Context, rec record.Record) (bool, error) {
	w.mu.Lock()
	w.inserts++
	if w.failures > 0 {
		w.failures--
		err := w.err
		w.mu.Unlock()
		return false, err
	}
	w.mu.Unlock()
	return w.Inner.Insert(ctx, rec)
}

// Inserts returns how many inserts were attempted, failed or not.
func (w *FlakyWriter) Inserts() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.inserts
}

// MemoryWriter is an in-memory record.Writer keyed by reference.
type MemoryWriter struct {
	mu      sync.Mutex
	records map[string]record.Record
}

// NewMemoryWriter creates an empty writer.
func NewMemoryWriter() *MemoryWriter {
	return &MemoryWriter{records: make(map[string]record.Record)}
}

// FindByReference implements record.Writer.
func (w *MemoryWriter) FindByReference(_ context.Context, ref string) (*record.Record, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	rec, ok := w.records[ref]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// Insert implements record.Writer with insert-if-absent semantics.
func (w *MemoryWriter) Insert(_ context.Context, rec record.Record) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.records[rec.TxRef]; ok {
		return false, nil
	}
	w.records[rec.TxRef] = rec
	return true, nil
}

// Len returns the number of records held.
func (w *MemoryWriter) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.records)
}
