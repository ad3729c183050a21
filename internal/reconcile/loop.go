package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/paywatch/internal/commit"
	"github.com/roach88/paywatch/internal/ledger"
	"github.com/roach88/paywatch/internal/notify"
	"github.com/roach88/paywatch/internal/pending"
)

// Clock supplies wall time for timeout computation.
// Implemented by the wall clock (production) and testutil.ManualClock (tests).
type Clock interface {
	Now() time.Time
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

// Store is the pending-operation store the loop drives.
// Implemented by *store.Store.
type Store interface {
	PutOperation(ctx context.Context, op pending.Operation) error
	GetOperation(ctx context.Context, id pending.ID) (pending.Operation, bool, error)
	ListOperations(ctx context.Context) ([]pending.Operation, error)
	RemoveOperationRef(ctx context.Context, id pending.ID, ref string) (bool, error)
	TransitionOperation(ctx context.Context, id pending.ID, ref string, to pending.State, reason string, at time.Time) (bool, error)
	RecordAttempt(ctx context.Context, id pending.ID, ref string, errMsg string, at time.Time) error
	ArchiveAbandoned(ctx context.Context, op pending.Operation, at time.Time) error
}

// Committer applies a confirmed operation's payload.
// Implemented by *commit.Committer.
type Committer interface {
	Commit(ctx context.Context, op pending.Operation) (commit.Result, error)
}

// failureReason is recorded on entries the oracle reports as failed.
const failureReason = "transaction failed on-chain"

// Loop is the reconciliation loop. It owns its timer.
type Loop struct {
	store     Store
	oracle    ledger.Oracle
	committer Committer
	reporter  *Reporter
	sink      notify.Sink
	clock     Clock
	cfg       Config
	logger    *slog.Logger
	metrics   *Metrics

	// cycleMu serializes entry processing between Cycle and CheckNow.
	cycleMu sync.Mutex

	// commitMu orders Submit's store write against the confirm section, so
	// a replaced entry is never committed under its old reference.
	commitMu sync.Mutex

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	running bool
	dirty   bool
	done    chan struct{}
}

// Option configures a Loop.
type Option func(*Loop)

// WithConfig sets interval, timeout and oracle wait.
func WithConfig(cfg Config) Option {
	return func(l *Loop) { l.cfg = cfg }
}

// WithClock sets the clock used for timeouts and timestamps.
func WithClock(c Clock) Option {
	return func(l *Loop) { l.clock = c }
}

// WithSink sets the sink receiving operationFailed and operationTimedOut.
func WithSink(s notify.Sink) Option {
	return func(l *Loop) { l.sink = s }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) { l.logger = logger }
}

// WithMetrics sets the metrics. Default: unregistered metrics.
func WithMetrics(m *Metrics) Option {
	return func(l *Loop) { l.metrics = m }
}

// New creates a Loop over the given store, oracle and committer.
// The loop does nothing until Start is called.
func New(s Store, oracle ledger.Oracle, committer Committer, opts ...Option) (*Loop, error) {
	l := &Loop{
		store:     s,
		oracle:    oracle,
		committer: committer,
		sink:      notify.Discard,
		clock:     wallClock{},
		cfg:       DefaultConfig(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}

	if s == nil || oracle == nil || committer == nil {
		return nil, fmt.Errorf("new loop: store, oracle and committer are required")
	}
	if err := l.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("new loop: %w", err)
	}
	if l.metrics == nil {
		l.metrics = NewMetrics(nil)
	}
	l.reporter = NewReporter(l.sink, l.clock, l.logger)
	return l, nil
}

// Config returns the loop's timing parameters.
func (l *Loop) Config() Config {
	return l.cfg
}

// Start runs a cycle immediately and then one every interval until the
// store is empty, ctx is cancelled, or Stop is called. Entries left by a
// previous process are picked up by that first cycle.
//
// Calling Start on a started loop is a no-op.
func (l *Loop) Start(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.started {
		return
	}
	l.started = true
	l.ctx, l.cancel = context.WithCancel(ctx)
	l.logger.Info("reconcile loop starting",
		"interval", l.cfg.Interval,
		"timeout", l.cfg.Timeout,
	)
	l.spawnLocked(true)
}

// Stop halts the timer and waits for an in-flight cycle to return.
// Stored entries are untouched; a later Start resumes them.
func (l *Loop) Stop() {
	l.mu.Lock()
	if !l.started {
		l.mu.Unlock()
		return
	}
	l.started = false
	cancel, done := l.cancel, l.done
	l.mu.Unlock()

	cancel()
	if done != nil {
		<-done
	}
	l.logger.Info("reconcile loop stopped")
}

// Running reports whether the timer goroutine is alive.
func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// Submit stores op, replacing any entry with the same id, and makes sure
// the timer is running if the loop has been started.
func (l *Loop) Submit(ctx context.Context, op pending.Operation) error {
	if op.ID == "" || op.TxRef == "" || op.Payload == nil {
		return fmt.Errorf("submit: %w: id, reference and payload are required", ErrInvalidOperation)
	}
	if op.State == "" {
		op.State = pending.StatePending
	}
	if op.State != pending.StatePending {
		return fmt.Errorf("submit %s: %w: state %q", op.ID, ErrInvalidOperation, op.State)
	}
	if op.UpdatedAt.IsZero() {
		op.UpdatedAt = op.SubmittedAt
	}

	l.commitMu.Lock()
	err := l.store.PutOperation(ctx, op)
	l.commitMu.Unlock()
	if err != nil {
		return fmt.Errorf("submit %s: %w", op.ID, err)
	}
	l.metrics.Submitted.WithLabelValues(string(op.Kind)).Inc()
	l.logger.Info("operation submitted",
		"operation_id", op.ID,
		"kind", op.Kind,
		"tx_ref", op.TxRef,
	)

	l.mu.Lock()
	l.dirty = true
	l.spawnLocked(false)
	l.mu.Unlock()
	return nil
}

// spawnLocked starts the timer goroutine if the loop is started and the
// goroutine is not already alive. Caller holds l.mu.
func (l *Loop) spawnLocked(immediate bool) {
	if !l.started || l.running || l.ctx.Err() != nil {
		return
	}
	l.running = true
	done := make(chan struct{})
	l.done = done
	go l.run(l.ctx, immediate, done)
}

func (l *Loop) run(ctx context.Context, immediate bool, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(l.cfg.Interval)
	defer ticker.Stop()

	if !immediate && !l.wait(ctx, ticker) {
		return
	}

	for {
		l.mu.Lock()
		l.dirty = false
		l.mu.Unlock()

		remaining, err := l.Cycle(ctx)
		switch {
		case ctx.Err() != nil:
			l.setStopped()
			return
		case err != nil:
			l.logger.Error("reconcile cycle failed", "error", err)
		case remaining == 0 && l.tryIdle():
			l.logger.Debug("no pending operations, timer stopped")
			return
		}

		if !l.wait(ctx, ticker) {
			return
		}
	}
}

// wait blocks for the next tick. Returns false if ctx ended first.
func (l *Loop) wait(ctx context.Context, ticker *time.Ticker) bool {
	select {
	case <-ctx.Done():
		l.setStopped()
		return false
	case <-ticker.C:
		return true
	}
}

// tryIdle marks the goroutine stopped unless a Submit landed since the
// cycle began listing.
func (l *Loop) tryIdle() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.dirty {
		return false
	}
	l.running = false
	return true
}

func (l *Loop) setStopped() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.running = false
}

// Cycle processes every stored entry once and returns how many remain.
// Used by the timer goroutine, by tests, and by the CLI for a one-shot check.
func (l *Loop) Cycle(ctx context.Context) (remaining int, err error) {
	l.cycleMu.Lock()
	defer l.cycleMu.Unlock()

	start := time.Now()
	defer func() {
		l.metrics.Cycles.Inc()
		l.metrics.CycleDuration.Observe(time.Since(start).Seconds())
	}()

	ops, err := l.store.ListOperations(ctx)
	if err != nil {
		return 0, fmt.Errorf("cycle: %w", err)
	}

	for i, op := range ops {
		if err := ctx.Err(); err != nil {
			return remaining + len(ops) - i, err
		}
		if _, stored := l.processSafely(ctx, op); stored {
			remaining++
		}
	}

	l.metrics.Pending.Set(float64(remaining))
	l.logger.Debug("reconcile cycle complete",
		"listed", len(ops),
		"remaining", remaining,
	)
	return remaining, nil
}

// CheckNow processes the entry for id immediately, outside the timer.
// Used right after submission for an optimistic early confirmation.
// Returns the entry's state after the check.
func (l *Loop) CheckNow(ctx context.Context, id pending.ID) (pending.State, error) {
	l.cycleMu.Lock()
	defer l.cycleMu.Unlock()

	op, found, err := l.store.GetOperation(ctx, id)
	if err != nil {
		return "", fmt.Errorf("check %s: %w", id, err)
	}
	if !found {
		return "", fmt.Errorf("check %s: %w", id, ErrNotFound)
	}

	state, _ := l.processSafely(ctx, op)
	return state, nil
}

// processSafely runs process behind a recover boundary. A panicking entry
// stays stored and pending.
func (l *Loop) processSafely(ctx context.Context, op pending.Operation) (state pending.State, stored bool) {
	defer func() {
		if r := recover(); r != nil {
			l.metrics.Panics.Inc()
			l.logger.Error("panic processing operation",
				"operation_id", op.ID,
				"tx_ref", op.TxRef,
				"panic", r,
			)
			state, stored = op.State, true
		}
	}()
	return l.process(ctx, op)
}

// process advances one entry. It returns the entry's resulting state and
// whether the entry is still in the store.
func (l *Loop) process(ctx context.Context, op pending.Operation) (pending.State, bool) {
	if op.State.Terminal() {
		// The terminal action already ran; only the removal failed.
		return op.State, !l.remove(ctx, op)
	}

	now := l.clock.Now()
	if now.Sub(op.SubmittedAt) >= l.cfg.Timeout {
		return l.abandon(ctx, op, now)
	}

	status, err := l.checkStatus(ctx, op.TxRef)
	if err != nil {
		l.metrics.OracleErrors.Inc()
		l.logger.Warn("oracle unavailable, treating as pending",
			"operation_id", op.ID,
			"tx_ref", op.TxRef,
			"error", err,
		)
		return pending.StatePending, true
	}

	switch status {
	case ledger.StatusConfirmed:
		return l.confirm(ctx, op)
	case ledger.StatusFailed:
		return l.fail(ctx, op)
	default:
		l.logger.Debug("transaction still pending",
			"operation_id", op.ID,
			"tx_ref", op.TxRef,
			"age", now.Sub(op.SubmittedAt),
		)
		return pending.StatePending, true
	}
}

// abandon archives op, then transitions it. The archive holds the only copy
// of the payload once the entry is removed, so a failed archive keeps the
// entry pending and the next cycle tries again.
func (l *Loop) abandon(ctx context.Context, op pending.Operation, now time.Time) (pending.State, bool) {
	if err := l.store.ArchiveAbandoned(ctx, op, now); err != nil {
		l.logger.Error("archive abandoned operation failed, will retry next cycle",
			"operation_id", op.ID,
			"tx_ref", op.TxRef,
			"error", err,
		)
		return pending.StatePending, true
	}

	won, err := l.store.TransitionOperation(ctx, op.ID, op.TxRef, pending.StateAbandoned, "timeout", now)
	if err != nil {
		l.logger.Error("abandon transition failed", "operation_id", op.ID, "error", err)
		return pending.StatePending, true
	}
	if !won {
		return l.lostTransition(op)
	}

	l.metrics.Outcomes.WithLabelValues(string(op.Kind), string(pending.StateAbandoned)).Inc()
	l.logger.Warn("operation abandoned",
		"operation_id", op.ID,
		"tx_ref", op.TxRef,
		"age", now.Sub(op.SubmittedAt),
	)
	l.reporter.ReportTimeout(ctx, op)
	return pending.StateAbandoned, !l.remove(ctx, op)
}

// confirm commits op and transitions it to confirmed. The entry is re-read
// under commitMu first: the oracle answer may have arrived after a newer
// submission replaced it.
func (l *Loop) confirm(ctx context.Context, op pending.Operation) (pending.State, bool) {
	l.commitMu.Lock()
	defer l.commitMu.Unlock()

	current, found, err := l.store.GetOperation(ctx, op.ID)
	if err != nil {
		l.logger.Error("re-read before commit failed", "operation_id", op.ID, "error", err)
		return pending.StatePending, true
	}
	if !found || current.TxRef != op.TxRef || current.State != pending.StatePending {
		return l.lostTransition(op)
	}

	res, err := l.committer.Commit(ctx, op)
	if err != nil {
		l.metrics.CommitErrors.WithLabelValues(string(op.Kind)).Inc()
		l.logger.Warn("commit failed, will retry",
			"operation_id", op.ID,
			"tx_ref", op.TxRef,
			"error", err,
		)
		if rerr := l.store.RecordAttempt(ctx, op.ID, op.TxRef, err.Error(), l.clock.Now()); rerr != nil {
			l.logger.Error("record commit attempt failed", "operation_id", op.ID, "error", rerr)
		}
		return pending.StatePending, true
	}

	won, err := l.store.TransitionOperation(ctx, op.ID, op.TxRef, pending.StateConfirmed, "", l.clock.Now())
	if err != nil {
		// The record is written; the next cycle re-commits as a no-op.
		l.logger.Error("confirm transition failed", "operation_id", op.ID, "error", err)
		return pending.StatePending, true
	}
	if !won {
		return l.lostTransition(op)
	}

	l.metrics.Outcomes.WithLabelValues(string(op.Kind), string(pending.StateConfirmed)).Inc()
	l.logger.Info("operation confirmed",
		"operation_id", op.ID,
		"tx_ref", op.TxRef,
		"record_id", res.Record.ID,
	)
	return pending.StateConfirmed, !l.remove(ctx, op)
}

func (l *Loop) fail(ctx context.Context, op pending.Operation) (pending.State, bool) {
	won, err := l.store.TransitionOperation(ctx, op.ID, op.TxRef, pending.StateFailed, failureReason, l.clock.Now())
	if err != nil {
		l.logger.Error("fail transition failed", "operation_id", op.ID, "error", err)
		return pending.StatePending, true
	}
	if !won {
		return l.lostTransition(op)
	}

	l.metrics.Outcomes.WithLabelValues(string(op.Kind), string(pending.StateFailed)).Inc()
	l.logger.Warn("operation failed",
		"operation_id", op.ID,
		"tx_ref", op.TxRef,
	)
	l.reporter.ReportFailure(ctx, op, failureReason)
	return pending.StateFailed, !l.remove(ctx, op)
}

// lostTransition handles a compare-and-set that matched nothing: another
// process finished the entry, or a newer submission replaced it. Either
// way this process has nothing to do; the next cycle sees the new state.
func (l *Loop) lostTransition(op pending.Operation) (pending.State, bool) {
	l.logger.Debug("transition lost",
		"operation_id", op.ID,
		"tx_ref", op.TxRef,
	)
	return op.State, true
}

// remove deletes the entry if it still carries op.TxRef. Returns true if
// the entry is gone.
func (l *Loop) remove(ctx context.Context, op pending.Operation) bool {
	removed, err := l.store.RemoveOperationRef(ctx, op.ID, op.TxRef)
	if err != nil {
		l.logger.Error("remove operation failed, will retry next cycle",
			"operation_id", op.ID,
			"tx_ref", op.TxRef,
			"error", err,
		)
		return false
	}
	if !removed {
		// Replaced by a newer submission, which stays.
		return false
	}
	return true
}

type oracleResult struct {
	status ledger.Status
	err    error
}

// checkStatus queries the oracle, waiting at most OracleWait. The call runs
// in its own goroutine so an oracle that ignores ctx cannot stall the cycle.
func (l *Loop) checkStatus(ctx context.Context, ref string) (ledger.Status, error) {
	ctx, cancel := context.WithTimeout(ctx, l.cfg.OracleWait)
	defer cancel()

	ch := make(chan oracleResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- oracleResult{status: ledger.StatusPending, err: fmt.Errorf("oracle panic: %v", r)}
			}
		}()
		status, err := l.oracle.CheckStatus(ctx, ref)
		ch <- oracleResult{status: status, err: err}
	}()

	select {
	case r := <-ch:
		return r.status, r.err
	case <-ctx.Done():
		return ledger.StatusPending, fmt.Errorf("oracle wait: %w", ctx.Err())
	}
}
