package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/roach88/paywatch/internal/commit"
	"github.com/roach88/paywatch/internal/ledger"
	"github.com/roach88/paywatch/internal/notify"
	"github.com/roach88/paywatch/internal/pending"
	"github.com/roach88/paywatch/internal/reconcile"
	"github.com/roach88/paywatch/internal/store"
	"github.com/roach88/paywatch/internal/testutil"
)

// Epoch is the manual clock's start time for every scenario.
var Epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// errOracle is returned by the scripted oracle for "error" answers.
var errOracle = errors.New("scripted oracle error")

// Harness is the scenario execution engine.
// It runs a real store, committer and loop with a manual clock, a
// scripted oracle and sequential record ids.
type Harness struct {
	dbPath string
	store  *store.Store
	loop   *reconcile.Loop
	oracle *testutil.ScriptedOracle
	clock  *testutil.ManualClock
	ids    *sequenceGenerator
	cfg    reconcile.Config
	logger *slog.Logger

	mu      sync.Mutex
	pending []notify.Event
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh SQLite file in a temporary directory
// so that restart steps can reopen it.
//
// Execution flow:
// 1. Create a temporary database and the loop over it
// 2. Script the oracle
// 3. Execute steps, recording the trace
// 4. Evaluate assertions against trace and final state
func Run(scenario *Scenario) (*Result, error) {
	dir, err := os.MkdirTemp("", "paywatch-harness-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create scenario dir: %w", err)
	}
	defer os.RemoveAll(dir)

	cfg := reconcile.DefaultConfig()
	timeout, err := scenario.timeout()
	if err != nil {
		return nil, err
	}
	if timeout > 0 {
		cfg.Timeout = timeout
	}

	h := &Harness{
		dbPath: filepath.Join(dir, "scenario.db"),
		oracle: testutil.NewScriptedOracle(),
		clock:  testutil.NewManualClock(Epoch),
		ids:    &sequenceGenerator{prefix: "rec-"},
		cfg:    cfg,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}
	scriptOracle(h.oracle, scenario.Oracle)

	if err := h.open(); err != nil {
		return nil, err
	}
	defer func() { h.store.Close() }()

	ctx := context.Background()
	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.execute(ctx, step, result); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
	}

	actx := &AssertionContext{
		Store:  h.store,
		Oracle: h.oracle,
		Ctx:    ctx,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}
	return result, nil
}

// open (re)creates the store, committer and loop over the scenario database.
func (h *Harness) open() error {
	st, err := store.Open(h.dbPath)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}

	sink := notify.SinkFunc(h.capture)
	committer := commit.New(st.Writers(),
		commit.WithSink(sink),
		commit.WithIDGenerator(h.ids),
		commit.WithClock(h.clock),
		commit.WithLogger(h.logger),
	)
	loop, err := reconcile.New(st, h.oracle, committer,
		reconcile.WithConfig(h.cfg),
		reconcile.WithClock(h.clock),
		reconcile.WithSink(sink),
		reconcile.WithLogger(h.logger),
	)
	if err != nil {
		st.Close()
		return fmt.Errorf("failed to create loop: %w", err)
	}

	h.store = st
	h.loop = loop
	return nil
}

func (h *Harness) capture(_ context.Context, ev notify.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pending = append(h.pending, ev)
	return nil
}

// flush moves captured notifications into the trace.
func (h *Harness) flush(result *Result) {
	h.mu.Lock()
	events := h.pending
	h.pending = nil
	h.mu.Unlock()

	for _, ev := range events {
		result.Trace = append(result.Trace, TraceEvent{
			Type:        string(ev.Type),
			At:          h.offset(),
			OperationID: string(ev.OperationID),
			TxRef:       ev.TxRef,
			RecordID:    ev.RecordID,
			Reason:      ev.Reason,
			Message:     ev.Message,
		})
	}
}

func (h *Harness) offset() string {
	return h.clock.Now().Sub(Epoch).String()
}

// execute runs one step. The loop is never started: cycles run only when
// a step asks for one.
func (h *Harness) execute(ctx context.Context, step Step, result *Result) error {
	switch {
	case step.Submit != nil:
		return h.submit(ctx, step.Submit, result)

	case step.Advance != "":
		d, err := time.ParseDuration(step.Advance)
		if err != nil {
			return fmt.Errorf("advance: %w", err)
		}
		h.clock.Advance(d)
		return h.cycle(ctx, result)

	case step.Cycle:
		return h.cycle(ctx, result)

	case step.Restart:
		if err := h.store.Close(); err != nil {
			return fmt.Errorf("restart: %w", err)
		}
		if err := h.open(); err != nil {
			return fmt.Errorf("restart: %w", err)
		}
		result.Trace = append(result.Trace, TraceEvent{Type: TraceRestart, At: h.offset()})
		return nil
	}
	return fmt.Errorf("empty step")
}

func (h *Harness) submit(ctx context.Context, sub *Submission, result *Result) error {
	p, err := sub.decodePayload()
	if err != nil {
		return fmt.Errorf("submit %s: %w", sub.Ref, err)
	}
	op, err := pending.New(sub.Owner, sub.Ref, p, h.clock.Now())
	if err != nil {
		return fmt.Errorf("submit %s: %w", sub.Ref, err)
	}
	if err := h.loop.Submit(ctx, op); err != nil {
		return fmt.Errorf("submit %s: %w", sub.Ref, err)
	}
	result.Trace = append(result.Trace, TraceEvent{
		Type:        TraceSubmit,
		At:          h.offset(),
		OperationID: string(op.ID),
		TxRef:       op.TxRef,
	})
	return nil
}

func (h *Harness) cycle(ctx context.Context, result *Result) error {
	remaining, err := h.loop.Cycle(ctx)
	if err != nil {
		return fmt.Errorf("cycle: %w", err)
	}
	h.flush(result)
	result.Trace = append(result.Trace, TraceEvent{
		Type:      TraceCycle,
		At:        h.offset(),
		Remaining: &remaining,
	})
	return nil
}

func scriptOracle(o *testutil.ScriptedOracle, scripts map[string][]string) {
	for ref, answers := range scripts {
		steps := make([]testutil.Step, len(answers))
		for i, a := range answers {
			if a == "error" {
				steps[i] = testutil.Step{Status: ledger.StatusPending, Err: errOracle}
				continue
			}
			steps[i] = testutil.Step{Status: oracleAnswers[a]}
		}
		o.Script(ref, steps...)
	}
}

// sequenceGenerator yields prefix-1, prefix-2, ... so traces are stable.
type sequenceGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

func (g *sequenceGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return g.prefix + strconv.Itoa(g.n)
}
