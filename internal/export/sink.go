// Package export hands a finished run's records and summary to external
// storage.
package export

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"jobsweep-engine/internal/aggregate"
	"jobsweep-engine/internal/domain"
)

// Sink receives records in batches, then the terminal summary once.
type Sink interface {
	Name() string
	Write(ctx context.Context, runID string, recs []domain.JobRecord) error
	Finish(ctx context.Context, sum aggregate.Summary) error
	Close() error
}

// Fanout writes to every sink. A failing sink does not stop the others;
// their errors are joined.
type Fanout []Sink

func (f Fanout) Name() string { return "fanout" }

func (f Fanout) Write(ctx context.Context, runID string, recs []domain.JobRecord) error {
	var errs []error
	for _, s := range f {
		if err := s.Write(ctx, runID, recs); err != nil {
			logrus.Warnf("[export:%s] write run=%s: %v", s.Name(), runID, err)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (f Fanout) Finish(ctx context.Context, sum aggregate.Summary) error {
	var errs []error
	for _, s := range f {
		if err := s.Finish(ctx, sum); err != nil {
			logrus.Warnf("[export:%s] finish run=%s: %v", s.Name(), sum.RunID, err)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (f Fanout) Close() error {
	var errs []error
	for _, s := range f {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Deliver writes recs in chunks of batch and then the summary. A failed
// chunk does not stop later ones.
func Deliver(ctx context.Context, s Sink, recs []domain.JobRecord, sum aggregate.Summary, batch int) error {
	if batch <= 0 {
		batch = 200
	}
	var errs []error
	for i := 0; i < len(recs); i += batch {
		j := min(i+batch, len(recs))
		if err := s.Write(ctx, sum.RunID, recs[i:j]); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.Finish(ctx, sum); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	logrus.Infof("[export:%s] delivered run=%s records=%d", s.Name(), sum.RunID, len(recs))
	return nil
}
