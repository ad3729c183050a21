package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/paywatch/internal/payload"
	"github.com/roach88/paywatch/internal/pending"
)

const operationColumns = `id, kind, owner, tx_ref, payload, state, submitted_at, updated_at, attempts, last_error`

// PutOperation stores op under op.ID, replacing any existing entry.
// Last write wins: a new submission for the same owner and kind supersedes
// the previous one, including its attempt counter.
func (s *Store) PutOperation(ctx context.Context, op pending.Operation) error {
	payloadJSON, err := payload.Marshal(op.Payload)
	if err != nil {
		return fmt.Errorf("put operation: %w", err)
	}
	if op.State == "" {
		op.State = pending.StatePending
	}
	updated := op.UpdatedAt
	if updated.IsZero() {
		updated = op.SubmittedAt
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO pending_operations (`+operationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind = excluded.kind,
			owner = excluded.owner,
			tx_ref = excluded.tx_ref,
			payload = excluded.payload,
			state = excluded.state,
			submitted_at = excluded.submitted_at,
			updated_at = excluded.updated_at,
			attempts = excluded.attempts,
			last_error = excluded.last_error
	`,
		string(op.ID),
		string(op.Kind),
		op.Owner,
		op.TxRef,
		string(payloadJSON),
		string(op.State),
		toNanos(op.SubmittedAt),
		toNanos(updated),
		op.Attempts,
		op.LastError,
	)
	if err != nil {
		return fmt.Errorf("put operation: %w", err)
	}
	return nil
}

// GetOperation returns the entry for id. found is false if there is none.
func (s *Store) GetOperation(ctx context.Context, id pending.ID) (op pending.Operation, found bool, err error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+operationColumns+`
		FROM pending_operations
		WHERE id = ?
	`, string(id))

	op, err = scanOperation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return pending.Operation{}, false, nil
	}
	if err != nil {
		return pending.Operation{}, false, fmt.Errorf("get operation: %w", err)
	}
	return op, true, nil
}

// RemoveOperation deletes the entry for id. Removing an absent id is a no-op.
func (s *Store) RemoveOperation(ctx context.Context, id pending.ID) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM pending_operations WHERE id = ?`, string(id)); err != nil {
		return fmt.Errorf("remove operation: %w", err)
	}
	return nil
}

// RemoveOperationRef deletes the entry for id only if it still carries ref.
// Returns false if the entry is absent or was replaced by a newer submission.
func (s *Store) RemoveOperationRef(ctx context.Context, id pending.ID, ref string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM pending_operations WHERE id = ? AND tx_ref = ?
	`, string(id), ref)
	if err != nil {
		return false, fmt.Errorf("remove operation ref: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove operation ref: rows affected: %w", err)
	}
	return n > 0, nil
}

// ListOperations returns every stored entry, for every owner, in
// submission order.
func (s *Store) ListOperations(ctx context.Context) ([]pending.Operation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+operationColumns+`
		FROM pending_operations
		ORDER BY submitted_at ASC, id ASC COLLATE BINARY
	`)
	if err != nil {
		return nil, fmt.Errorf("list operations: %w", err)
	}
	defer rows.Close()

	var ops []pending.Operation
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, fmt.Errorf("list operations: %w", err)
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list operations: %w", err)
	}
	return ops, nil
}

// TransitionOperation moves the entry (id, ref) from pending to state `to`.
// Returns false if the entry is absent, carries another reference, or has
// already left the pending state; exactly one caller wins a transition.
func (s *Store) TransitionOperation(ctx context.Context, id pending.ID, ref string, to pending.State, reason string, at time.Time) (bool, error) {
	if !to.Terminal() {
		return false, fmt.Errorf("transition operation: %q is not a terminal state", to)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE pending_operations
		SET state = ?, last_error = ?, updated_at = ?
		WHERE id = ? AND tx_ref = ? AND state = ?
	`, string(to), reason, toNanos(at), string(id), ref, string(pending.StatePending))
	if err != nil {
		return false, fmt.Errorf("transition operation: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transition operation: rows affected: %w", err)
	}
	return n > 0, nil
}

// RecordAttempt notes a failed commit attempt on a pending entry.
func (s *Store) RecordAttempt(ctx context.Context, id pending.ID, ref string, errMsg string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE pending_operations
		SET attempts = attempts + 1, last_error = ?, updated_at = ?
		WHERE id = ? AND tx_ref = ? AND state = ?
	`, errMsg, toNanos(at), string(id), ref, string(pending.StatePending))
	if err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOperation(row rowScanner) (pending.Operation, error) {
	var (
		op          pending.Operation
		id, kind    string
		state       string
		payloadJSON string
		submitted   int64
		updated     int64
	)
	if err := row.Scan(&id, &kind, &op.Owner, &op.TxRef, &payloadJSON, &state, &submitted, &updated, &op.Attempts, &op.LastError); err != nil {
		return pending.Operation{}, err
	}

	p, err := payload.Unmarshal([]byte(payloadJSON))
	if err != nil {
		return pending.Operation{}, fmt.Errorf("operation %s: %w", id, err)
	}

	op.ID = pending.ID(id)
	op.Kind = payload.Kind(kind)
	op.Payload = p
	op.State = pending.State(state)
	op.SubmittedAt = fromNanos(submitted)
	op.UpdatedAt = fromNanos(updated)
	return op, nil
}
