package harness

import (
	"context"
	"fmt"

	"github.com/roach88/paywatch/internal/payload"
	"github.com/roach88/paywatch/internal/store"
	"github.com/roach88/paywatch/internal/testutil"
)

// AssertionContext carries the final state assertions inspect.
type AssertionContext struct {
	Store  *store.Store
	Oracle *testutil.ScriptedOracle
	Ctx    context.Context
}

// AssertionError is a structured assertion failure.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("%s: expected %s, got %s", e.Type, e.Expected, e.Actual)
}

// EvaluateAssertions checks every assertion and returns failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluateAssertion(result, a, actx); err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d (%s): %v", i, a.Type, err))
		}
	}
	return errs
}

func evaluateAssertion(result *Result, a Assertion, actx *AssertionContext) error {
	switch a.Type {
	case AssertEventCount:
		return assertEventCount(result, a.Event, a.Count)
	case AssertEventOrder:
		return assertEventOrder(result, a.Events)
	case AssertCommitted:
		return assertCommitted(actx, a)
	case AssertPendingCount:
		return assertPendingCount(actx, a.Count)
	case AssertOracleCalls:
		return assertOracleCalls(actx, a.Ref, a.Count)
	case AssertAbandoned:
		return assertAbandoned(actx, a)
	default:
		return fmt.Errorf("unknown assertion type: %s", a.Type)
	}
}

func assertEventCount(result *Result, event string, expected int) error {
	if actual := result.count(event); actual != expected {
		return &AssertionError{
			Type:     AssertEventCount,
			Expected: fmt.Sprintf("%d %s", expected, event),
			Actual:   fmt.Sprintf("%d", actual),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertEventOrder checks that events appear in order, allowing gaps.
func assertEventOrder(result *Result, events []string) error {
	next := 0
	for _, ev := range result.Trace {
		if next < len(events) && ev.Type == events[next] {
			next++
		}
	}
	if next < len(events) {
		return &AssertionError{
			Type:     AssertEventOrder,
			Expected: fmt.Sprintf("%v", events),
			Actual:   fmt.Sprintf("missing %q after %v", events[next], events[:next]),
			Trace:    result.Trace,
		}
	}
	return nil
}

func assertCommitted(actx *AssertionContext, a Assertion) error {
	kind, err := payload.ParseKind(a.Kind)
	if err != nil {
		return err
	}
	rec, err := actx.Store.Writers()[kind].FindByReference(actx.Ctx, a.Ref)
	if err != nil {
		return err
	}

	switch {
	case a.Absent && rec != nil:
		return &AssertionError{Type: AssertCommitted, Expected: "no record for " + a.Ref, Actual: "record " + rec.ID}
	case !a.Absent && rec == nil:
		return &AssertionError{Type: AssertCommitted, Expected: "record for " + a.Ref, Actual: "none"}
	}
	return nil
}

func assertPendingCount(actx *AssertionContext, expected int) error {
	ops, err := actx.Store.ListOperations(actx.Ctx)
	if err != nil {
		return err
	}
	if len(ops) != expected {
		return &AssertionError{
			Type:     AssertPendingCount,
			Expected: fmt.Sprintf("%d", expected),
			Actual:   fmt.Sprintf("%d", len(ops)),
		}
	}
	return nil
}

func assertOracleCalls(actx *AssertionContext, ref string, expected int) error {
	if actual := actx.Oracle.Calls(ref); actual != expected {
		return &AssertionError{
			Type:     AssertOracleCalls,
			Expected: fmt.Sprintf("%d calls for %s", expected, ref),
			Actual:   fmt.Sprintf("%d", actual),
		}
	}
	return nil
}

func assertAbandoned(actx *AssertionContext, a Assertion) error {
	_, found, err := actx.Store.GetAbandoned(actx.Ctx, a.Ref)
	if err != nil {
		return err
	}
	if found == a.Absent {
		return &AssertionError{
			Type:     AssertAbandoned,
			Expected: fmt.Sprintf("archived=%t for %s", !a.Absent, a.Ref),
			Actual:   fmt.Sprintf("archived=%t", found),
		}
	}
	return nil
}
