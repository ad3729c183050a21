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

// ArchiveAbandoned records an operation that timed out.
// Uses ON CONFLICT(tx_ref) DO NOTHING - archiving twice keeps the first row.
func (s *Store) ArchiveAbandoned(ctx context.Context, op pending.Operation, at time.Time) error {
	payloadJSON, err := payload.Marshal(op.Payload)
	if err != nil {
		return fmt.Errorf("archive abandoned: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO abandoned_operations
		(tx_ref, operation_id, kind, owner, payload, submitted_at, abandoned_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tx_ref) DO NOTHING
	`,
		op.TxRef,
		string(op.ID),
		string(op.Kind),
		op.Owner,
		string(payloadJSON),
		toNanos(op.SubmittedAt),
		toNanos(at),
	)
	if err != nil {
		return fmt.Errorf("archive abandoned: %w", err)
	}
	return nil
}

const abandonedColumns = `tx_ref, operation_id, kind, owner, payload, submitted_at, abandoned_at, resolution, resolved_at`

// ListAbandoned returns archived operations, oldest first.
// Resolved entries are included only if includeResolved is set.
func (s *Store) ListAbandoned(ctx context.Context, includeResolved bool) ([]pending.Abandoned, error) {
	query := `SELECT ` + abandonedColumns + ` FROM abandoned_operations`
	if !includeResolved {
		query += ` WHERE resolution = ''`
	}
	query += ` ORDER BY abandoned_at ASC, tx_ref ASC COLLATE BINARY`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list abandoned: %w", err)
	}
	defer rows.Close()

	var out []pending.Abandoned
	for rows.Next() {
		a, err := scanAbandoned(rows)
		if err != nil {
			return nil, fmt.Errorf("list abandoned: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list abandoned: %w", err)
	}
	return out, nil
}

// GetAbandoned returns the archived operation for ref.
func (s *Store) GetAbandoned(ctx context.Context, ref string) (pending.Abandoned, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+abandonedColumns+` FROM abandoned_operations WHERE tx_ref = ?`, ref)
	a, err := scanAbandoned(row)
	if errors.Is(err, sql.ErrNoRows) {
		return pending.Abandoned{}, false, nil
	}
	if err != nil {
		return pending.Abandoned{}, false, fmt.Errorf("get abandoned: %w", err)
	}
	return a, true, nil
}

// ResolveAbandoned marks an unresolved archive row with a resolution.
// Returns false if the row is absent or already resolved.
func (s *Store) ResolveAbandoned(ctx context.Context, ref, resolution string, at time.Time) (bool, error) {
	if resolution == "" {
		return false, fmt.Errorf("resolve abandoned: resolution is required")
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE abandoned_operations
		SET resolution = ?, resolved_at = ?
		WHERE tx_ref = ? AND resolution = ''
	`, resolution, toNanos(at), ref)
	if err != nil {
		return false, fmt.Errorf("resolve abandoned: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("resolve abandoned: rows affected: %w", err)
	}
	return n > 0, nil
}

func scanAbandoned(row rowScanner) (pending.Abandoned, error) {
	var (
		a           pending.Abandoned
		id, kind    string
		payloadJSON string
		submitted   int64
		abandoned   int64
		resolvedAt  sql.NullInt64
	)
	if err := row.Scan(&a.Operation.TxRef, &id, &kind, &a.Operation.Owner, &payloadJSON, &submitted, &abandoned, &a.Resolution, &resolvedAt); err != nil {
		return pending.Abandoned{}, err
	}

	p, err := payload.Unmarshal([]byte(payloadJSON))
	if err != nil {
		return pending.Abandoned{}, fmt.Errorf("abandoned %s: %w", a.Operation.TxRef, err)
	}

	a.Operation.ID = pending.ID(id)
	a.Operation.Kind = payload.Kind(kind)
	a.Operation.Payload = p
	a.Operation.State = pending.StateAbandoned
	a.Operation.SubmittedAt = fromNanos(submitted)
	a.AbandonedAt = fromNanos(abandoned)
	if resolvedAt.Valid {
		t := fromNanos(resolvedAt.Int64)
		a.ResolvedAt = &t
	}
	return a, nil
}
