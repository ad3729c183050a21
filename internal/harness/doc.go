// Package harness runs reconciliation scenarios end to end.
//
// A scenario submits payments, scripts the status oracle, moves a manual
// clock, and runs reconciliation cycles against a real SQLite store, loop
// and committer. The resulting trace of submissions, cycles and
// notifications is checked by assertions and, optionally, against a
// golden file.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	timeout: 120s           # optional, default 120s
//	oracle:
//	  tx-abc: [pending, pending, confirmed]
//	steps:
//	  - submit:
//	      owner: addr_test1alice
//	      ref: tx-abc
//	      kind: job
//	      payload: { title: "...", ... }
//	  - advance: 10s        # move the clock, then run one cycle
//	  - cycle: true         # run one cycle without moving the clock
//	  - restart: true       # reopen store and loop, as after a crash
//	assertions:
//	  - type: event_count
//	    event: operationConfirmed
//	    count: 1
//	  - type: committed
//	    kind: job
//	    ref: tx-abc
//
// Oracle answers are consumed one per check; the last answer repeats.
// The answer "error" makes the oracle fail that check.
//
// # Assertion Types
//
//   - event_count: exactly count notifications of the given event type
//   - event_order: events appear in the given order (gaps allowed)
//   - committed: a record for ref exists (or not, with absent: true)
//   - pending_count: exactly count entries remain in the store
//   - oracle_calls: ref was checked exactly count times
//   - abandoned: ref is archived as abandoned
package harness
