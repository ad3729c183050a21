package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/paywatch/internal/payload"
	"github.com/roach88/paywatch/internal/record"
)

const day = 24 * time.Hour

// Writers returns the SQLite system-of-record writer for every kind.
func (s *Store) Writers() map[payload.Kind]record.Writer {
	return map[payload.Kind]record.Writer{
		payload.KindJob:     &jobWriter{s: s},
		payload.KindExtend:  &extensionWriter{s: s},
		payload.KindProject: &projectWriter{s: s},
		payload.KindFunding: &contributionWriter{s: s},
	}
}

// tables maps each kind to the table holding its records.
var tables = map[payload.Kind]string{
	payload.KindJob:     "jobs",
	payload.KindExtend:  "job_extensions",
	payload.KindProject: "projects",
	payload.KindFunding: "contributions",
}

// findByRef looks a record up by its paying transaction reference.
func findByRef(ctx context.Context, q queryer, kind payload.Kind, ref string) (*record.Record, error) {
	table, ok := tables[kind]
	if !ok {
		return nil, fmt.Errorf("find record: unknown kind %q", kind)
	}

	var (
		rec         = record.Record{Kind: kind, TxRef: ref}
		payloadJSON string
		created     int64
	)
	err := q.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT id, owner, payload, payload_hash, created_at
		FROM %s
		WHERE tx_ref = ?
	`, table), ref).Scan(&rec.ID, &rec.Owner, &payloadJSON, &rec.PayloadHash, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find %s record: %w", kind, err)
	}

	p, err := payload.Unmarshal([]byte(payloadJSON))
	if err != nil {
		return nil, fmt.Errorf("find %s record: %w", kind, err)
	}
	rec.Payload = p
	rec.CreatedAt = fromNanos(created)
	return &rec, nil
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type jobWriter struct{ s *Store }

func (w *jobWriter) FindByReference(ctx context.Context, ref string) (*record.Record, error) {
	return findByRef(ctx, w.s.db, payload.KindJob, ref)
}

// Insert writes a job listing expiring ListingDays after CreatedAt.
func (w *jobWriter) Insert(ctx context.Context, rec record.Record) (bool, error) {
	job, ok := rec.Payload.(payload.JobPosting)
	if !ok {
		return false, fmt.Errorf("insert job: %w", record.ErrWrongKind)
	}
	payloadJSON, err := payload.Marshal(rec.Payload)
	if err != nil {
		return false, fmt.Errorf("insert job: %w", err)
	}

	result, err := w.s.db.ExecContext(ctx, `
		INSERT INTO jobs
		(id, tx_ref, owner, title, company, payload, payload_hash, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tx_ref) DO NOTHING
	`,
		rec.ID,
		rec.TxRef,
		rec.Owner,
		job.Title,
		job.Company,
		string(payloadJSON),
		rec.PayloadHash,
		toNanos(rec.CreatedAt),
		toNanos(rec.CreatedAt.Add(time.Duration(job.ListingDays)*day)),
	)
	if err != nil {
		return false, fmt.Errorf("insert job: %w", err)
	}
	return affected(result, "insert job")
}

type extensionWriter struct{ s *Store }

func (w *extensionWriter) FindByReference(ctx context.Context, ref string) (*record.Record, error) {
	return findByRef(ctx, w.s.db, payload.KindExtend, ref)
}

// Insert records the extension and pushes the job's expiry forward by Days,
// counted from the later of the current expiry and CreatedAt. Both writes
// happen in one transaction.
func (w *extensionWriter) Insert(ctx context.Context, rec record.Record) (bool, error) {
	ext, ok := rec.Payload.(payload.JobExtension)
	if !ok {
		return false, fmt.Errorf("insert extension: %w", record.ErrWrongKind)
	}
	payloadJSON, err := payload.Marshal(rec.Payload)
	if err != nil {
		return false, fmt.Errorf("insert extension: %w", err)
	}

	tx, err := w.s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("insert extension: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	existing, err := findByRef(ctx, tx, payload.KindExtend, rec.TxRef)
	if err != nil {
		return false, fmt.Errorf("insert extension: %w", err)
	}
	if existing != nil {
		return false, nil
	}

	var expires int64
	err = tx.QueryRowContext(ctx, `SELECT expires_at FROM jobs WHERE id = ?`, ext.JobID).Scan(&expires)
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("insert extension: job %q: %w", ext.JobID, record.ErrJobNotFound)
	}
	if err != nil {
		return false, fmt.Errorf("insert extension: select job: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO job_extensions
		(id, tx_ref, owner, job_id, days, payload, payload_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tx_ref) DO NOTHING
	`,
		rec.ID,
		rec.TxRef,
		rec.Owner,
		ext.JobID,
		ext.Days,
		string(payloadJSON),
		rec.PayloadHash,
		toNanos(rec.CreatedAt),
	)
	if err != nil {
		return false, fmt.Errorf("insert extension: %w", err)
	}
	inserted, err := affected(result, "insert extension")
	if err != nil || !inserted {
		return false, err
	}

	base := fromNanos(expires)
	if rec.CreatedAt.After(base) {
		base = rec.CreatedAt
	}
	newExpiry := base.Add(time.Duration(ext.Days) * day)

	if _, err := tx.ExecContext(ctx, `
		UPDATE jobs SET expires_at = ?, status = 'active' WHERE id = ?
	`, toNanos(newExpiry), ext.JobID); err != nil {
		return false, fmt.Errorf("insert extension: update job: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("insert extension: commit: %w", err)
	}
	return true, nil
}

type projectWriter struct{ s *Store }

func (w *projectWriter) FindByReference(ctx context.Context, ref string) (*record.Record, error) {
	return findByRef(ctx, w.s.db, payload.KindProject, ref)
}

// Insert writes a project whose funding closes FundingDays after CreatedAt.
func (w *projectWriter) Insert(ctx context.Context, rec record.Record) (bool, error) {
	proj, ok := rec.Payload.(payload.Project)
	if !ok {
		return false, fmt.Errorf("insert project: %w", record.ErrWrongKind)
	}
	payloadJSON, err := payload.Marshal(rec.Payload)
	if err != nil {
		return false, fmt.Errorf("insert project: %w", err)
	}

	result, err := w.s.db.ExecContext(ctx, `
		INSERT INTO projects
		(id, tx_ref, owner, name, currency, goal_amount, payload, payload_hash, created_at, deadline_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tx_ref) DO NOTHING
	`,
		rec.ID,
		rec.TxRef,
		rec.Owner,
		proj.Name,
		proj.Currency,
		proj.GoalAmount,
		string(payloadJSON),
		rec.PayloadHash,
		toNanos(rec.CreatedAt),
		toNanos(rec.CreatedAt.Add(time.Duration(proj.FundingDays)*day)),
	)
	if err != nil {
		return false, fmt.Errorf("insert project: %w", err)
	}
	return affected(result, "insert project")
}

type contributionWriter struct{ s *Store }

func (w *contributionWriter) FindByReference(ctx context.Context, ref string) (*record.Record, error) {
	return findByRef(ctx, w.s.db, payload.KindFunding, ref)
}

// Insert records the contribution and adds Amount to the project's raised
// total in one transaction.
func (w *contributionWriter) Insert(ctx context.Context, rec record.Record) (bool, error) {
	c, ok := rec.Payload.(payload.Contribution)
	if !ok {
		return false, fmt.Errorf("insert contribution: %w", record.ErrWrongKind)
	}
	payloadJSON, err := payload.Marshal(rec.Payload)
	if err != nil {
		return false, fmt.Errorf("insert contribution: %w", err)
	}

	tx, err := w.s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("insert contribution: begin tx: %w", err)
	}
	defer tx.Rollback()

	existing, err := findByRef(ctx, tx, payload.KindFunding, rec.TxRef)
	if err != nil {
		return false, fmt.Errorf("insert contribution: %w", err)
	}
	if existing != nil {
		return false, nil
	}

	var currency string
	err = tx.QueryRowContext(ctx, `SELECT currency FROM projects WHERE id = ?`, c.ProjectID).Scan(&currency)
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("insert contribution: project %q: %w", c.ProjectID, record.ErrProjectNotFound)
	}
	if err != nil {
		return false, fmt.Errorf("insert contribution: select project: %w", err)
	}
	if currency != c.Currency {
		return false, fmt.Errorf("insert contribution: %s vs %s: %w", c.Currency, currency, record.ErrCurrencyMismatch)
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO contributions
		(id, tx_ref, owner, project_id, amount, currency, payload, payload_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tx_ref) DO NOTHING
	`,
		rec.ID,
		rec.TxRef,
		rec.Owner,
		c.ProjectID,
		c.Amount,
		c.Currency,
		string(payloadJSON),
		rec.PayloadHash,
		toNanos(rec.CreatedAt),
	)
	if err != nil {
		return false, fmt.Errorf("insert contribution: %w", err)
	}
	inserted, err := affected(result, "insert contribution")
	if err != nil || !inserted {
		return false, err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE projects SET raised_amount = raised_amount + ? WHERE id = ?
	`, c.Amount, c.ProjectID); err != nil {
		return false, fmt.Errorf("insert contribution: update project: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("insert contribution: commit: %w", err)
	}
	return true, nil
}

func affected(result sql.Result, op string) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: rows affected: %w", op, err)
	}
	return n > 0, nil
}
