package export

import (
	"context"

	"jobsweep-engine/internal/aggregate"
	"jobsweep-engine/internal/domain"
	"jobsweep-engine/internal/store"
)

// SQLiteSink persists into the local store. Postings already stored by an
// earlier run are skipped.
type SQLiteSink struct {
	db    *store.DB
	owned bool
}

// OpenSQLite opens the store at path; Close closes it.
func OpenSQLite(ctx context.Context, path string) (*SQLiteSink, error) {
	db, err := store.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	return &SQLiteSink{db: db, owned: true}, nil
}

// NewSQLiteSink wraps a store owned by the caller.
func NewSQLiteSink(db *store.DB) *SQLiteSink { return &SQLiteSink{db: db} }

func (s *SQLiteSink) Name() string { return "sqlite" }

func (s *SQLiteSink) DB() *store.DB { return s.db }

func (s *SQLiteSink) Write(ctx context.Context, runID string, recs []domain.JobRecord) error {
	_, err := store.InsertJobs(ctx, s.db.Pool, runID, recs)
	return err
}

func (s *SQLiteSink) Finish(ctx context.Context, sum aggregate.Summary) error {
	return store.SaveRun(ctx, s.db.Pool, sum)
}

func (s *SQLiteSink) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}
