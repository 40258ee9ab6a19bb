package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"jobsweep-engine/internal/aggregate"
)

var ErrRunNotFound = errors.New("run not found")

// SaveRun upserts the terminal summary of a run.
func SaveRun(ctx context.Context, db *sql.DB, s aggregate.Summary) error {
	_, err := db.ExecContext(ctx, `
INSERT INTO runs (run_id, outcome, target, collected, accounts_used, accounts_failed, exhausted, started_at, elapsed_ms)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(run_id) DO UPDATE SET
  outcome = excluded.outcome,
  collected = excluded.collected,
  accounts_used = excluded.accounts_used,
  accounts_failed = excluded.accounts_failed,
  exhausted = excluded.exhausted,
  elapsed_ms = excluded.elapsed_ms;`,
		s.RunID, string(s.Outcome), s.Target, s.TotalCollected, s.AccountsUsed, s.AccountsFailed, s.Exhausted,
		s.StartedAt.UTC().Format(time.RFC3339), s.Elapsed.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("save run %s: %w", s.RunID, err)
	}
	return nil
}

func GetRun(ctx context.Context, db *sql.DB, runID string) (aggregate.Summary, error) {
	var s aggregate.Summary
	var outcome, started string
	var elapsedMS int64
	err := db.QueryRowContext(ctx, `
SELECT run_id, outcome, target, collected, accounts_used, accounts_failed, exhausted, started_at, elapsed_ms
FROM runs WHERE run_id = ?;`, runID).Scan(
		&s.RunID, &outcome, &s.Target, &s.TotalCollected, &s.AccountsUsed, &s.AccountsFailed, &s.Exhausted, &started, &elapsedMS,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return aggregate.Summary{}, fmt.Errorf("%s: %w", runID, ErrRunNotFound)
	}
	if err != nil {
		return aggregate.Summary{}, err
	}
	s.Outcome = aggregate.Outcome(outcome)
	s.StartedAt, _ = time.Parse(time.RFC3339, started)
	s.Elapsed = time.Duration(elapsedMS) * time.Millisecond
	return s, nil
}
