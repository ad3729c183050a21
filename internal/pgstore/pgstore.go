// Package pgstore is the Postgres system of record. It implements the same
// record.Writer contract as the SQLite store, over a pgx connection pool,
// for deployments where several processes share one database server.
package pgstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store holds the connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to dsn and initializes the schema.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("init postgres schema: %w", err)
	}
	return s, nil
}

// Close releases the pool. Safe to call on a nil Store.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Ping checks that the server is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) initSchema(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS jobs (
  id           TEXT PRIMARY KEY,
  tx_ref       TEXT NOT NULL UNIQUE,
  owner        TEXT NOT NULL,
  title        TEXT NOT NULL,
  company      TEXT NOT NULL,
  payload      JSONB NOT NULL,
  payload_hash TEXT NOT NULL,
  status       TEXT NOT NULL DEFAULT 'active',
  created_at   TIMESTAMPTZ NOT NULL,
  expires_at   TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS job_extensions (
  id           TEXT PRIMARY KEY,
  tx_ref       TEXT NOT NULL UNIQUE,
  owner        TEXT NOT NULL,
  job_id       TEXT NOT NULL REFERENCES jobs(id),
  days         INT NOT NULL,
  payload      JSONB NOT NULL,
  payload_hash TEXT NOT NULL,
  created_at   TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS projects (
  id            TEXT PRIMARY KEY,
  tx_ref        TEXT NOT NULL UNIQUE,
  owner         TEXT NOT NULL,
  name          TEXT NOT NULL,
  currency      TEXT NOT NULL,
  goal_amount   BIGINT NOT NULL,
  raised_amount BIGINT NOT NULL DEFAULT 0,
  payload       JSONB NOT NULL,
  payload_hash  TEXT NOT NULL,
  created_at    TIMESTAMPTZ NOT NULL,
  deadline_at   TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS contributions (
  id           TEXT PRIMARY KEY,
  tx_ref       TEXT NOT NULL UNIQUE,
  owner        TEXT NOT NULL,
  project_id   TEXT NOT NULL REFERENCES projects(id),
  amount       BIGINT NOT NULL,
  currency     TEXT NOT NULL,
  payload      JSONB NOT NULL,
  payload_hash TEXT NOT NULL,
  created_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_job_extensions_job ON job_extensions(job_id);
CREATE INDEX IF NOT EXISTS idx_contributions_project ON contributions(project_id);
`
	_, err := s.pool.Exec(ctx, schema)
	return err
}
