// Package store provides SQLite-backed durable storage for paywatch.
//
// The store holds two kinds of state:
//   - Pending operations: submitted payments whose business effect is not
//     applied yet, keyed by operation id (last write wins)
//   - System of record: jobs, job extensions, projects and contributions,
//     each carrying the transaction reference that paid for it
//
// # Critical Patterns
//
// Reference-Level Idempotency
//   - UNIQUE(tx_ref) on every record table
//   - Inserts use ON CONFLICT(tx_ref) DO NOTHING and report whether a row
//     was written, so concurrent commits of the same payment are no-ops
//
// Compare-And-Set Transitions
//   - A pending operation leaves the pending state only through
//     TransitionOperation, which matches (id, tx_ref, state='pending')
//   - Two processes racing on the same entry cannot both transition it
//
// Deterministic Listing
//   - ListOperations orders by submitted_at ASC, id ASC COLLATE BINARY
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Timestamps are stored as INTEGER unix nanoseconds in UTC.
package store
