package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"jobsweep-engine/internal/domain"
)

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// InsertJobIgnore stores rec unless a job with the same dedup key exists.
// added reports whether a row was written.
func InsertJobIgnore(ctx context.Context, db execer, runID string, rec domain.JobRecord) (added bool, err error) {
	res, err := db.ExecContext(ctx, `
INSERT OR IGNORE INTO jobs (dedup_key, external_id, run_id, title, organization, location, work_model, seniority,
  salary_min, salary_max, salary_period, salary_raw, apply_link, summary, account_id, method, category, collected_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		rec.Key, rec.ExternalID, runID, rec.Title, rec.Organization, rec.Location, rec.WorkModel, rec.Seniority,
		rec.Compensation.Min, rec.Compensation.Max, rec.Compensation.Period, rec.Compensation.Raw,
		rec.ApplyLink, rec.Summary, rec.Attribution.AccountID, string(rec.Attribution.Method),
		string(rec.Attribution.Category), rec.CollectedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return false, fmt.Errorf("insert job %s: %w", rec.Key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return true, nil
	}
	return n > 0, nil
}

// InsertJobs writes recs in one transaction and returns how many were new.
func InsertJobs(ctx context.Context, db *sql.DB, runID string, recs []domain.JobRecord) (int, error) {
	if len(recs) == 0 {
		return 0, nil
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	added := 0
	for _, r := range recs {
		ok, err := InsertJobIgnore(ctx, tx, runID, r)
		if err != nil {
			return 0, err
		}
		if ok {
			added++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return added, nil
}

type ListJobsOpts struct {
	RunID string // empty lists every run
	Sort  string // collected | organization | title | salary
	Limit int
}

func ListJobs(ctx context.Context, db *sql.DB, opts ListJobsOpts) ([]domain.JobRecord, error) {
	if opts.Limit <= 0 || opts.Limit > 5000 {
		opts.Limit = 500
	}

	// whitelist sort columns (prevents SQL injection)
	order := map[string]string{
		"collected":    "collected_at DESC, id DESC",
		"organization": "organization ASC, id ASC",
		"title":        "title ASC, id ASC",
		"salary":       "salary_max DESC, id ASC",
	}[opts.Sort]
	if order == "" {
		order = "id ASC"
	}

	where := ""
	args := []any{}
	if opts.RunID != "" {
		where = "WHERE run_id = ?"
		args = append(args, opts.RunID)
	}
	args = append(args, opts.Limit)

	query := fmt.Sprintf(`
SELECT dedup_key, external_id, title, organization, location, work_model, seniority,
  salary_min, salary_max, salary_period, salary_raw, apply_link, summary, account_id, method, category, collected_at
FROM jobs
%s
ORDER BY %s
LIMIT ?;
`, where, order)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.JobRecord
	for rows.Next() {
		var r domain.JobRecord
		var method, category, collected string
		if err := rows.Scan(
			&r.Key, &r.ExternalID, &r.Title, &r.Organization, &r.Location, &r.WorkModel, &r.Seniority,
			&r.Compensation.Min, &r.Compensation.Max, &r.Compensation.Period, &r.Compensation.Raw,
			&r.ApplyLink, &r.Summary, &r.Attribution.AccountID, &method, &category, &collected,
		); err != nil {
			return nil, err
		}
		r.Attribution.Method = domain.Method(method)
		r.Attribution.Category = domain.Category(category)
		r.CollectedAt, _ = time.Parse(time.RFC3339, collected)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// CleanupOldJobs deletes jobs collected before now-age.
func CleanupOldJobs(ctx context.Context, db *sql.DB, age time.Duration, now time.Time) (deleted int64, err error) {
	cutoff := now.Add(-age).UTC().Format(time.RFC3339)
	res, err := db.ExecContext(ctx, `DELETE FROM jobs WHERE collected_at < ?;`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup old jobs: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
