// Package reconcile drives pending payment operations to a terminal state.
//
// A Loop periodically lists every stored operation and, for each one still
// pending, either abandons it (timeout elapsed), or asks the status oracle
// about its transaction and acts on the answer:
//
//	pending --(confirmed & commit ok)-->    confirmed  (record written, entry removed)
//	pending --(confirmed & commit fails)--> pending    (retried next cycle)
//	pending --(oracle: failed)-->           failed     (reported, entry removed)
//	pending --(elapsed >= timeout)-->       abandoned  (reported, archived, entry removed)
//
// # Critical Patterns
//
// Terminal transitions are compare-and-set in the store on (id, reference,
// state=pending). Only the caller that wins the transition runs the
// terminal action, so two processes sharing one database never report or
// remove the same entry twice.
//
// The oracle is called with a bounded wait. A deadline, an error, or a
// panic in the oracle all read as pending.
//
// Each entry is processed behind a recover boundary. One entry's failure
// never stops the cycle.
//
// The loop's timer runs only while entries exist. A cycle that finds the
// store empty stops the goroutine; the next Submit starts it again.
//
// Thread-safety model:
//   - Submit, CheckNow, Cycle, Start, Stop: safe from any goroutine
//   - At most one cycle (or CheckNow) processes entries at a time
package reconcile
