// Package runs starts collection runs and keeps them addressable by id
// until the process exits.
package runs

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"jobsweep-engine/internal/accounts"
	"jobsweep-engine/internal/config"
	"jobsweep-engine/internal/dedup"
	"jobsweep-engine/internal/domain"
	"jobsweep-engine/internal/events"
	"jobsweep-engine/internal/filter"
	"jobsweep-engine/internal/ratelimit"
	"jobsweep-engine/internal/retry"
	"jobsweep-engine/internal/scheduler"
	"jobsweep-engine/internal/session"
	"jobsweep-engine/internal/source"
)

// Engine is what every run shares: settings, the loaded account pool and
// the way sessions are opened. Each run gets its own account store,
// session cache, governor and dedup index.
type Engine struct {
	Settings func() config.Config
	Accounts []domain.Account
	Provider session.Provider
	Events   events.Publisher
	// ProgressEvery is the interval of run.progress events; zero disables
	// them.
	ProgressEvery time.Duration
	// NewIndex overrides the configured dedup backend.
	NewIndex func(runID string) dedup.Index
}

// Request carries per-run overrides of the run section of the config.
type Request struct {
	Target      int    `json:"target"`
	Concurrency int    `json:"concurrency"`
	Mode        string `json:"mode"`
	Keyword     string `json:"keyword"`
	Category    string `json:"category"`
	Deadline    string `json:"deadline"` // Go duration, e.g. "10m"
}

func (e *Engine) PoolSize() int { return len(e.Accounts) }

// Params merges req over the configured defaults. A zero concurrency is
// sized with OptimalConcurrency.
func (e *Engine) Params(req Request) (scheduler.Params, error) {
	cfg := e.Settings()
	p := scheduler.Params{
		Target:      cfg.Run.Target,
		Concurrency: cfg.Run.Concurrency,
		Keyword:     cfg.Run.Keyword,
		Category:    domain.Category(cfg.Run.Category),
		Deadline:    cfg.Run.Deadline,
	}
	mode := cfg.Run.Mode

	if req.Target != 0 {
		p.Target = req.Target
	}
	if req.Concurrency != 0 {
		p.Concurrency = req.Concurrency
	}
	if m := strings.TrimSpace(req.Mode); m != "" {
		mode = m
	}
	if k := strings.TrimSpace(req.Keyword); k != "" {
		p.Keyword = k
	}
	if c := strings.TrimSpace(req.Category); c != "" {
		p.Category = domain.Category(c)
	}
	if req.Deadline != "" {
		d, err := time.ParseDuration(req.Deadline)
		if err != nil || d < 0 {
			return p, fmt.Errorf("%w: bad deadline %q", scheduler.ErrInvalidParams, req.Deadline)
		}
		p.Deadline = d
	}
	if p.Concurrency == 0 {
		p.Concurrency = scheduler.OptimalConcurrency(p.Target, mode, p.Keyword, e.PoolSize())
	}
	return p, nil
}

// built is one run's private wiring.
type built struct {
	coord *scheduler.Coordinator
	store *accounts.Store
	close func() error
}

func (e *Engine) build(runID string, log *logrus.Entry) *built {
	cfg := e.Settings()
	idx, closeIdx := e.index(cfg, runID)

	store := accounts.New(e.Accounts)
	gov := ratelimit.New(store, cfg.Rate.MinInterval)
	sources := source.NewSet(gov, source.Options{
		PageSize:        cfg.Source.PageSize,
		MaxPages:        cfg.Source.MaxPages,
		StructuredSorts: cfg.Source.StructuredSorts,
		FilterSettle:    cfg.Source.FilterSettle,
	})

	coord := scheduler.New(scheduler.Config{
		Store:    store,
		Sessions: session.NewCache(e.Provider),
		Sources:  sources,
		Index:    idx,
		Filters:  filter.FromConfig(cfg, ""),
		Retry: retry.Policy{
			MaxRetries: cfg.Retry.MaxRetries,
			BaseDelay:  cfg.Retry.BaseDelay,
			MaxDelay:   cfg.Retry.MaxDelay,
		},
		EmptyAffinity: cfg.Run.EmptyAffinityPolicy,
		Events:        e.Events,
		ProgressEvery: e.ProgressEvery,
		Log:           log,
	})
	return &built{coord: coord, store: store, close: closeIdx}
}

func (e *Engine) index(cfg config.Config, runID string) (dedup.Index, func() error) {
	nop := func() error { return nil }
	if e.NewIndex != nil {
		return e.NewIndex(runID), nop
	}
	switch cfg.Dedup.Backend {
	case "redis":
		r := dedup.NewRedis(cfg.Dedup.RedisAddr, cfg.Dedup.Prefix, runID, cfg.Dedup.TTL)
		return r, r.Close
	default:
		return dedup.NewMemory(), nop
	}
}
