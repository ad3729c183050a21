package testutil

import (
	"context"
	"sync"

	"github.com/roach88/paywatch/internal/ledger"
)

// Step is one scripted oracle answer.
type Step struct {
	Status ledger.Status
	Err    error
	// Block makes the call wait for context cancellation before answering,
	// simulating an oracle that exceeds its bounded wait.
	Block bool
}

// ScriptedOracle answers CheckStatus from a per-reference script.
//
// Each call consumes the next step for that reference; the final step
// repeats. References with no script answer pending.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type ScriptedOracle struct {
	mu      sync.Mutex
	scripts map[string][]Step
	calls   map[string]int
}

// NewScriptedOracle creates an oracle with no scripts.
func NewScriptedOracle() *ScriptedOracle {
	return &ScriptedOracle{
		scripts: make(map[string][]Step),
		calls:   make(map[string]int),
	}
}

// Script sets the answers for ref, replacing any previous script.
func (o *ScriptedOracle) Script(ref string, steps ...Step) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.scripts[ref] = steps
}

// Statuses is shorthand for a script of plain statuses.
func (o *ScriptedOracle) Statuses(ref string, statuses ...ledger.Status) {
	steps := make([]Step, len(statuses))
	for i, s := range statuses {
		steps[i] = Step{Status: s}
	}
	o.Script(ref, steps...)
}

// CheckStatus implements ledger.Oracle.
func (o *ScriptedOracle) CheckStatus(ctx context.Context, ref string) (ledger.Status, error) {
	o.mu.Lock()
	n := o.calls[ref]
	o.calls[ref] = n + 1
	script := o.scripts[ref]
	o.mu.Unlock()

	if len(script) == 0 {
		return ledger.StatusPending, nil
	}
	if n >= len(script) {
		n = len(script) - 1
	}
	step := script[n]

	if step.Block {
		<-ctx.Done()
		return ledger.StatusPending, ctx.Err()
	}
	if step.Err != nil {
		return ledger.StatusPending, step.Err
	}
	return step.Status, nil
}

// Calls returns how many times ref was checked.
func (o *ScriptedOracle) Calls(ref string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.calls[ref]
}

// TotalCalls returns how many checks were made across all references.
func (o *ScriptedOracle) TotalCalls() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	total := 0
	for _, n := range o.calls {
		total += n
	}
	return total
}
