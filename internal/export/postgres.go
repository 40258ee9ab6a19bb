package export

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"jobsweep-engine/internal/aggregate"
	"jobsweep-engine/internal/domain"
)

// PostgresSink batch-inserts records into <schema>.jobsweep_jobs and
// upserts summaries into <schema>.jobsweep_runs.
type PostgresSink struct {
	pool   *pgxpool.Pool
	schema string
	batch  int
}

// OpenPostgres connects and makes sure the tables exist.
func OpenPostgres(ctx context.Context, dsn, schema string, maxConns int) (*PostgresSink, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres dsn: %w", err)
	}
	if maxConns <= 0 {
		maxConns = 2
	}
	cfg.MaxConns = int32(maxConns)
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	s := &PostgresSink{pool: pool, schema: schemaOrDefault(schema), batch: 200}
	if err := s.ensureTables(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func schemaOrDefault(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "public"
	}
	return s
}

func (p *PostgresSink) table(name string) string {
	return pgx.Identifier{p.schema, name}.Sanitize()
}

func (p *PostgresSink) ensureTables(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ` + p.table("jobsweep_jobs") + ` (
			dedup_key     text PRIMARY KEY,
			external_id   text NOT NULL DEFAULT '',
			run_id        text NOT NULL,
			title         text NOT NULL,
			organization  text NOT NULL,
			location      text NOT NULL DEFAULT '',
			work_model    text NOT NULL DEFAULT '',
			salary_min    integer,
			salary_max    integer,
			salary_raw    text NOT NULL DEFAULT '',
			apply_link    text NOT NULL DEFAULT '',
			account_id    text NOT NULL,
			method        text NOT NULL,
			category      text NOT NULL DEFAULT '',
			collected_at  timestamptz NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS ` + p.table("jobsweep_runs") + ` (
			run_id          text PRIMARY KEY,
			outcome         text NOT NULL,
			target          integer NOT NULL,
			collected       integer NOT NULL,
			accounts_used   integer NOT NULL,
			accounts_failed integer NOT NULL,
			started_at      timestamptz NOT NULL,
			elapsed_ms      bigint NOT NULL
		)`,
	}
	for _, q := range stmts {
		if _, err := p.pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("postgres schema: %w", err)
		}
	}
	return nil
}

func nullableInt(v int) *int {
	if v == 0 {
		return nil
	}
	return &v
}

// buildBatch queues one insert per record with a key.
func buildBatch(table, runID string, recs []domain.JobRecord) (*pgx.Batch, int) {
	b := &pgx.Batch{}
	count := 0
	for _, r := range recs {
		if strings.TrimSpace(r.Key) == "" {
			continue
		}
		b.Queue(
			`INSERT INTO `+table+`
			(dedup_key, external_id, run_id, title, organization, location, work_model,
			 salary_min, salary_max, salary_raw, apply_link, account_id, method, category, collected_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
			ON CONFLICT (dedup_key) DO NOTHING`,
			r.Key, r.ExternalID, runID, r.Title, r.Organization, r.Location, r.WorkModel,
			nullableInt(r.Compensation.Min), nullableInt(r.Compensation.Max), r.Compensation.Raw,
			r.ApplyLink, r.Attribution.AccountID, string(r.Attribution.Method), string(r.Attribution.Category),
			r.CollectedAt.UTC(),
		)
		count++
	}
	return b, count
}

func (p *PostgresSink) Name() string { return "postgres" }

func (p *PostgresSink) Write(ctx context.Context, runID string, recs []domain.JobRecord) error {
	table := p.table("jobsweep_jobs")
	for i := 0; i < len(recs); i += p.batch {
		j := min(i+p.batch, len(recs))
		b, count := buildBatch(table, runID, recs[i:j])
		if count == 0 {
			continue
		}
		br := p.pool.SendBatch(ctx, b)
		for k := 0; k < count; k++ {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return err
			}
		}
		if err := br.Close(); err != nil {
			return err
		}
	}
	return nil
}

func (p *PostgresSink) Finish(ctx context.Context, sum aggregate.Summary) error {
	_, err := p.pool.Exec(ctx, `INSERT INTO `+p.table("jobsweep_runs")+`
		(run_id, outcome, target, collected, accounts_used, accounts_failed, started_at, elapsed_ms)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (run_id) DO UPDATE SET
			outcome = EXCLUDED.outcome,
			collected = EXCLUDED.collected,
			accounts_used = EXCLUDED.accounts_used,
			accounts_failed = EXCLUDED.accounts_failed,
			elapsed_ms = EXCLUDED.elapsed_ms`,
		sum.RunID, string(sum.Outcome), sum.Target, sum.TotalCollected, sum.AccountsUsed, sum.AccountsFailed,
		sum.StartedAt.UTC(), sum.Elapsed.Milliseconds(),
	)
	return err
}

func (p *PostgresSink) Close() error {
	p.pool.Close()
	return nil
}
