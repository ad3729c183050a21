package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/roach88/paywatch/internal/payload"
	"github.com/roach88/paywatch/internal/record"
)

const day = 24 * time.Hour

var tables = map[payload.Kind]string{
	payload.KindJob:     "jobs",
	payload.KindExtend:  "job_extensions",
	payload.KindProject: "projects",
	payload.KindFunding: "contributions",
}

// Writers returns the Postgres writer for every kind.
func (s *Store) Writers() map[payload.Kind]record.Writer {
	return map[payload.Kind]record.Writer{
		payload.KindJob:     &jobWriter{s: s},
		payload.KindExtend:  &extensionWriter{s: s},
		payload.KindProject: &projectWriter{s: s},
		payload.KindFunding: &contributionWriter{s: s},
	}
}

// querier is satisfied by *pgxpool.Pool and pgx.Tx.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func findByRef(ctx context.Context, q querier, kind payload.Kind, ref string) (*record.Record, error) {
	table, ok := tables[kind]
	if !ok {
		return nil, fmt.Errorf("find record: unknown kind %q", kind)
	}

	var (
		rec         = record.Record{Kind: kind, TxRef: ref}
		payloadJSON []byte
		created     time.Time
	)
	err := q.QueryRow(ctx, fmt.Sprintf(`
		SELECT id, owner, payload, payload_hash, created_at
		FROM %s
		WHERE tx_ref = $1
	`, table), ref).Scan(&rec.ID, &rec.Owner, &payloadJSON, &rec.PayloadHash, &created)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find %s record: %w", kind, err)
	}

	p, err := payload.Unmarshal(payloadJSON)
	if err != nil {
		return nil, fmt.Errorf("find %s record: %w", kind, err)
	}
	rec.Payload = p
	rec.CreatedAt = created.UTC()
	return &rec, nil
}

type jobWriter struct{ s *Store }

func (w *jobWriter) FindByReference(ctx context.Context, ref string) (*record.Record, error) {
	return findByRef(ctx, w.s.pool, payload.KindJob, ref)
}

func (w *jobWriter) Insert(ctx context.Context, rec record.Record) (bool, error) {
	job, ok := rec.Payload.(payload.JobPosting)
	if !ok {
		return false, fmt.Errorf("insert job: %w", record.ErrWrongKind)
	}
	payloadJSON, err := payload.Marshal(rec.Payload)
	if err != nil {
		return false, fmt.Errorf("insert job: %w", err)
	}

	tag, err := w.s.pool.Exec(ctx, `
		INSERT INTO jobs
		(id, tx_ref, owner, title, company, payload, payload_hash, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (tx_ref) DO NOTHING
	`, rec.ID, rec.TxRef, rec.Owner, job.Title, job.Company, string(payloadJSON), rec.PayloadHash,
		rec.CreatedAt, rec.CreatedAt.Add(time.Duration(job.ListingDays)*day))
	if err != nil {
		return false, fmt.Errorf("insert job: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

type extensionWriter struct{ s *Store }

func (w *extensionWriter) FindByReference(ctx context.Context, ref string) (*record.Record, error) {
	return findByRef(ctx, w.s.pool, payload.KindExtend, ref)
}

// Insert records the extension and moves the job's expiry in one
// transaction. The job row is locked so concurrent extensions add up.
func (w *extensionWriter) Insert(ctx context.Context, rec record.Record) (bool, error) {
	ext, ok := rec.Payload.(payload.JobExtension)
	if !ok {
		return false, fmt.Errorf("insert extension: %w", record.ErrWrongKind)
	}
	payloadJSON, err := payload.Marshal(rec.Payload)
	if err != nil {
		return false, fmt.Errorf("insert extension: %w", err)
	}

	tx, err := w.s.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("insert extension: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var expires time.Time
	err = tx.QueryRow(ctx, `SELECT expires_at FROM jobs WHERE id = $1 FOR UPDATE`, ext.JobID).Scan(&expires)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, fmt.Errorf("insert extension: job %q: %w", ext.JobID, record.ErrJobNotFound)
	}
	if err != nil {
		return false, fmt.Errorf("insert extension: select job: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO job_extensions
		(id, tx_ref, owner, job_id, days, payload, payload_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (tx_ref) DO NOTHING
	`, rec.ID, rec.TxRef, rec.Owner, ext.JobID, ext.Days, string(payloadJSON), rec.PayloadHash, rec.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("insert extension: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	base := expires
	if rec.CreatedAt.After(base) {
		base = rec.CreatedAt
	}
	if _, err := tx.Exec(ctx, `
		UPDATE jobs SET expires_at = $1, status = 'active' WHERE id = $2
	`, base.Add(time.Duration(ext.Days)*day), ext.JobID); err != nil {
		return false, fmt.Errorf("insert extension: update job: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("insert extension: commit: %w", err)
	}
	return true, nil
}

type projectWriter struct{ s *Store }

func (w *projectWriter) FindByReference(ctx context.Context, ref string) (*record.Record, error) {
	return findByRef(ctx, w.s.pool, payload.KindProject, ref)
}

func (w *projectWriter) Insert(ctx context.Context, rec record.Record) (bool, error) {
	proj, ok := rec.Payload.(payload.Project)
	if !ok {
		return false, fmt.Errorf("insert project: %w", record.ErrWrongKind)
	}
	payloadJSON, err := payload.Marshal(rec.Payload)
	if err != nil {
		return false, fmt.Errorf("insert project: %w", err)
	}

	tag, err := w.s.pool.Exec(ctx, `
		INSERT INTO projects
		(id, tx_ref, owner, name, currency, goal_amount, payload, payload_hash, created_at, deadline_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (tx_ref) DO NOTHING
	`, rec.ID, rec.TxRef, rec.Owner, proj.Name, proj.Currency, proj.GoalAmount, string(payloadJSON), rec.PayloadHash,
		rec.CreatedAt, rec.CreatedAt.Add(time.Duration(proj.FundingDays)*day))
	if err != nil {
		return false, fmt.Errorf("insert project: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

type contributionWriter struct{ s *Store }

func (w *contributionWriter) FindByReference(ctx context.Context, ref string) (*record.Record, error) {
	return findByRef(ctx, w.s.pool, payload.KindFunding, ref)
}

// Insert records the contribution and raises the project total together.
func (w *contributionWriter) Insert(ctx context.Context, rec record.Record) (bool, error) {
	c, ok := rec.Payload.(payload.Contribution)
	if !ok {
		return false, fmt.Errorf("insert contribution: %w", record.ErrWrongKind)
	}
	payloadJSON, err := payload.Marshal(rec.Payload)
	if err != nil {
		return false, fmt.Errorf("insert contribution: %w", err)
	}

	tx, err := w.s.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("insert contribution: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var currency string
	err = tx.QueryRow(ctx, `SELECT currency FROM projects WHERE id = $1 FOR UPDATE`, c.ProjectID).Scan(&currency)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, fmt.Errorf("insert contribution: project %q: %w", c.ProjectID, record.ErrProjectNotFound)
	}
	if err != nil {
		return false, fmt.Errorf("insert contribution: select project: %w", err)
	}
	if currency != c.Currency {
		return false, fmt.Errorf("insert contribution: %s vs %s: %w", c.Currency, currency, record.ErrCurrencyMismatch)
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO contributions
		(id, tx_ref, owner, project_id, amount, currency, payload, payload_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (tx_ref) DO NOTHING
	`, rec.ID, rec.TxRef, rec.Owner, c.ProjectID, c.Amount, c.Currency, string(payloadJSON), rec.PayloadHash, rec.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("insert contribution: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if _, err := tx.Exec(ctx, `
		UPDATE projects SET raised_amount = raised_amount + $1 WHERE id = $2
	`, c.Amount, c.ProjectID); err != nil {
		return false, fmt.Errorf("insert contribution: update project: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("insert contribution: commit: %w", err)
	}
	return true, nil
}
