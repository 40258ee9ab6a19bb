package store

import (
	"context"
	"database/sql"
)

const schemaVersion = 1

// Migrate brings the schema up to date. The version lives in
// PRAGMA user_version.
func Migrate(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var v int
	if err := tx.QueryRowContext(ctx, `PRAGMA user_version;`).Scan(&v); err != nil {
		return err
	}
	if v >= schemaVersion {
		return tx.Commit()
	}

	// ---- Schema v1: tables ----

	if _, err := tx.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS jobs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  dedup_key TEXT NOT NULL,
  external_id TEXT NOT NULL DEFAULT '',
  run_id TEXT NOT NULL DEFAULT '',
  title TEXT NOT NULL,
  organization TEXT NOT NULL,
  location TEXT NOT NULL DEFAULT '',
  work_model TEXT NOT NULL DEFAULT '',
  seniority TEXT NOT NULL DEFAULT '',
  salary_min INTEGER NOT NULL DEFAULT 0,
  salary_max INTEGER NOT NULL DEFAULT 0,
  salary_period TEXT NOT NULL DEFAULT '',
  salary_raw TEXT NOT NULL DEFAULT '',
  apply_link TEXT NOT NULL DEFAULT '',
  summary TEXT NOT NULL DEFAULT '',
  account_id TEXT NOT NULL DEFAULT '',
  method TEXT NOT NULL DEFAULT '',
  category TEXT NOT NULL DEFAULT '',
  collected_at TEXT NOT NULL
);
`); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS runs (
  run_id TEXT PRIMARY KEY,
  outcome TEXT NOT NULL,
  target INTEGER NOT NULL,
  collected INTEGER NOT NULL,
  accounts_used INTEGER NOT NULL,
  accounts_failed INTEGER NOT NULL,
  exhausted INTEGER NOT NULL,
  started_at TEXT NOT NULL,
  elapsed_ms INTEGER NOT NULL
);
`); err != nil {
		return err
	}

	// ---- Schema v1: indexes ----

	if _, err := tx.ExecContext(ctx, `
CREATE UNIQUE INDEX IF NOT EXISTS idx_jobs_dedup_key
ON jobs(dedup_key);
`); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
CREATE INDEX IF NOT EXISTS idx_jobs_run
ON jobs(run_id);
`); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
CREATE INDEX IF NOT EXISTS idx_jobs_collected_at
ON jobs(collected_at);
`); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `PRAGMA user_version = 1;`); err != nil {
		return err
	}
	return tx.Commit()
}
