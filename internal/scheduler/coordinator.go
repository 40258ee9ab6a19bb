// Package scheduler drives one collection run: it binds accounts to
// workers, feeds them tasks and stops at the target, when the pool runs
// dry, or when asked to.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"jobsweep-engine/internal/accounts"
	"jobsweep-engine/internal/aggregate"
	"jobsweep-engine/internal/dedup"
	"jobsweep-engine/internal/domain"
	"jobsweep-engine/internal/events"
	"jobsweep-engine/internal/filter"
	"jobsweep-engine/internal/metrics"
	"jobsweep-engine/internal/ratelimit"
	"jobsweep-engine/internal/retry"
	"jobsweep-engine/internal/session"
	"jobsweep-engine/internal/source"
)

var (
	ErrInvalidParams = errors.New("invalid run parameters")
	ErrNoEligible    = errors.New("no accounts configured")
)

// What to do when a title-filter task comes back empty.
const (
	EmptyComplete = "complete"
	EmptyFallback = "fallback"
)

type Params struct {
	RunID       string          `json:"run_id,omitempty"`
	Target      int             `json:"target"`
	Concurrency int             `json:"concurrency"`
	Keyword     string          `json:"keyword,omitempty"`
	Category    domain.Category `json:"category,omitempty"`
	// Deadline stops scheduling new tasks once elapsed. Zero means none.
	Deadline time.Duration `json:"deadline,omitempty"`
}

// Validate checks the parameters Run requires.
func (p Params) Validate() error {
	if p.Target <= 0 {
		return fmt.Errorf("%w: target must be positive, got %d", ErrInvalidParams, p.Target)
	}
	if p.Concurrency <= 0 {
		return fmt.Errorf("%w: concurrency must be positive, got %d", ErrInvalidParams, p.Concurrency)
	}
	return nil
}

// Config wires a coordinator. Store, Sessions, Sources and Index are
// required; the rest have usable zero values.
type Config struct {
	Store    *accounts.Store
	Sessions *session.Cache
	Sources  source.Set
	Index    dedup.Index
	// Filters holds location rules; the run keyword comes from Params.
	Filters       filter.Rules
	Retry         retry.Policy
	EmptyAffinity string
	Events        events.Publisher
	ProgressEvery time.Duration
	Log           *logrus.Entry
	Now           func() time.Time
}

type Coordinator struct {
	cfg Config
	log *logrus.Entry

	taskSeq atomic.Int64
	cur     atomic.Pointer[run]

	stopMu    sync.Mutex
	stopEarly bool
}

// run is the state of one Run call, discarded when it returns.
type run struct {
	params   Params
	rules    filter.Rules
	agg      *aggregate.Aggregator
	taskSize int

	stopOnce sync.Once
	stop     chan struct{}
}

func (r *run) requestStop() {
	r.stopOnce.Do(func() { close(r.stop) })
}

func (r *run) stopping() bool {
	select {
	case <-r.stop:
		return true
	default:
		return false
	}
}

// done is checked between tasks.
func (r *run) done(ctx context.Context) bool {
	return r.agg.TargetMet() || r.stopping() || ctx.Err() != nil
}

func New(cfg Config) *Coordinator {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.EmptyAffinity == "" {
		cfg.EmptyAffinity = EmptyComplete
	}
	log := cfg.Log
	if log == nil {
		log = logrus.WithField("component", "scheduler")
	}
	c := &Coordinator{cfg: cfg, log: log}
	cfg.Store.OnTransition(c.onTransition)
	return c
}

func (c *Coordinator) onTransition(id string, from, to domain.Status) {
	metrics.AccountTransitionsTotal.WithLabelValues(string(to)).Inc()
	c.log.WithFields(logrus.Fields{"account": id, "from": from, "to": to}).Debug("[scheduler] account status")
	r := c.cur.Load()
	runID := ""
	if r != nil {
		runID = r.params.RunID
	}
	c.publish(runID, events.AccountStatus, events.StatusChange{AccountID: id, From: string(from), To: string(to)})
}

func (c *Coordinator) publish(runID, typ string, data any) {
	if c.cfg.Events == nil {
		return
	}
	c.cfg.Events.Publish(events.MakeEvent(runID, typ, data))
}

// Stop asks the current run to stop scheduling tasks. In-flight tasks
// finish. A Stop before Run applies to the next run.
func (c *Coordinator) Stop() {
	c.stopMu.Lock()
	defer c.stopMu.Unlock()
	if r := c.cur.Load(); r != nil {
		r.requestStop()
		return
	}
	c.stopEarly = true
}

// Progress returns the current run's snapshot, if a run was started.
func (c *Coordinator) Progress() (aggregate.Snapshot, bool) {
	r := c.cur.Load()
	if r == nil {
		return aggregate.Snapshot{}, false
	}
	return r.agg.Snapshot(), true
}

// Records returns what the current or last run collected from index from.
func (c *Coordinator) Records(from int) []domain.JobRecord {
	r := c.cur.Load()
	if r == nil {
		return nil
	}
	return r.agg.Drain(from)
}

// Run collects until the target is met, no eligible account remains, or
// the run is stopped. Per-account failures never surface here; the only
// errors are bad parameters and an empty pool. Cancelling ctx aborts
// in-flight requests and ends the run as Stopped.
func (c *Coordinator) Run(ctx context.Context, p Params) (aggregate.Summary, error) {
	if err := p.Validate(); err != nil {
		return aggregate.Summary{}, err
	}
	pool := c.cfg.Store.Len()
	if pool == 0 {
		return aggregate.Summary{}, ErrNoEligible
	}
	conc := min(p.Concurrency, pool)

	rules := c.cfg.Filters
	rules.Keyword = p.Keyword
	r := &run{
		params:   p,
		rules:    rules,
		agg:      aggregate.NewAt(p.Target, c.cfg.Now),
		taskSize: TaskSize(p.Target, conc),
		stop:     make(chan struct{}),
	}
	c.stopMu.Lock()
	c.cur.Store(r)
	if c.stopEarly {
		c.stopEarly = false
		r.requestStop()
	}
	c.stopMu.Unlock()

	if p.Deadline > 0 {
		t := time.AfterFunc(p.Deadline, r.requestStop)
		defer t.Stop()
	}

	log := c.log.WithField("run", p.RunID)
	log.Infof("[scheduler] run start target=%d concurrency=%d pool=%d keyword=%q category=%q", p.Target, conc, pool, p.Keyword, p.Category)
	c.publish(p.RunID, events.RunStarted, p)

	progressCtx, stopProgress := context.WithCancel(ctx)
	progressDone := make(chan struct{})
	go func() {
		defer close(progressDone)
		Every(progressCtx, c.cfg.ProgressEvery, "scheduler:progress", func(context.Context) error {
			c.publish(p.RunID, events.RunProgress, r.agg.Snapshot())
			return nil
		})
	}()

	var g errgroup.Group
	g.SetLimit(conc)
	finished := make(chan struct{}, conc)
	running := 0

	for !r.done(ctx) {
		if running < conc {
			if acct, ok := c.cfg.Store.Claim(p.Category); ok {
				running++
				g.Go(func() error {
					defer func() { finished <- struct{}{} }()
					c.work(ctx, r, acct)
					return nil
				})
				continue
			}
			if running == 0 {
				break
			}
		}
		select {
		case <-finished:
			running--
		case <-r.stop:
		case <-ctx.Done():
		}
	}
	if running > 0 && !r.agg.TargetMet() {
		log.Infof("[scheduler] waiting for %d in-flight accounts", running)
	}
	// workers see the stop at their next task boundary
	_ = g.Wait()
	stopProgress()
	<-progressDone

	outcome := aggregate.PoolExhausted
	switch {
	case r.agg.TargetMet():
		outcome = aggregate.TargetMet
	case r.stopping() || ctx.Err() != nil:
		outcome = aggregate.Stopped
	}
	r.agg.Finish(outcome)

	sum := r.agg.Summary()
	sum.RunID = p.RunID
	c.publish(p.RunID, events.RunFinished, sum)
	log.Infof("[scheduler] run done outcome=%s collected=%d/%d accounts_used=%d failed=%d", sum.Outcome, sum.TotalCollected, sum.Target, sum.AccountsUsed, sum.AccountsFailed)
	return sum, nil
}

// methodCycle is the order in which an account's tasks rotate through the
// collection methods.
func methodCycle(acct domain.Account, category domain.Category) []domain.Method {
	if !acct.Affinity.Empty() || !category.Empty() {
		return []domain.Method{domain.MethodTitleFilter, domain.MethodPaginated, domain.MethodStructured}
	}
	return []domain.Method{domain.MethodPaginated, domain.MethodStructured}
}

// work drives one claimed account until the run is done or the account can
// no longer contribute.
func (c *Coordinator) work(ctx context.Context, r *run, acct domain.Account) {
	log := c.log.WithFields(logrus.Fields{"run": r.params.RunID, "account": acct.ID})
	r.agg.AccountStarted()
	metrics.AccountsInUse.Inc()
	defer func() {
		metrics.AccountsInUse.Dec()
		st, _ := c.cfg.Store.Get(acct.ID)
		r.agg.AccountFinished(st.Status)
	}()

	sess, err := c.open(ctx, acct, log)
	if err != nil {
		c.cfg.Store.Release(acct.ID)
		return
	}

	cycle := methodCycle(acct, r.params.Category)
	idle := 0
	for i := 0; ; i++ {
		if r.done(ctx) {
			c.cfg.Store.Release(acct.ID)
			return
		}
		if st, _ := c.cfg.Store.Get(acct.ID); st.Status.Terminal() {
			c.cfg.Store.Release(acct.ID)
			return
		}
		task := c.newTask(r, cycle[i%len(cycle)])
		res := c.runTask(ctx, r, sess, task, log)

		if res.err == nil && res.fetched == 0 && task.Method == domain.MethodTitleFilter && c.cfg.EmptyAffinity == EmptyFallback && !r.done(ctx) {
			log.Infof("[scheduler] title filter empty, falling back to structured listing")
			fb := c.newTask(r, domain.MethodStructured)
			fb.Category = ""
			res = c.runTask(ctx, r, sess, fb, log)
		}

		if res.err != nil {
			c.settle(ctx, acct.ID, res.err, log)
			c.cfg.Store.Release(acct.ID)
			return
		}
		if res.admitted == 0 {
			idle++
		} else {
			idle = 0
		}
		if idle >= len(cycle) {
			log.Infof("[scheduler] no new postings after %d tasks, retiring account", idle)
			c.cfg.Store.Retire(acct.ID, "feed drained")
			return
		}
	}
}

func (c *Coordinator) newTask(r *run, m domain.Method) domain.Task {
	return domain.Task{
		ID:       c.taskSeq.Add(1),
		Category: r.params.Category,
		Keyword:  r.params.Keyword,
		Method:   m,
		Want:     r.taskSize,
	}
}

// open authenticates the account, retrying network failures. Any other
// failure, or running out of retries, blocks the account.
func (c *Coordinator) open(ctx context.Context, acct domain.Account, log *logrus.Entry) (*session.Session, error) {
	if st, ok := c.cfg.Store.Get(acct.ID); ok && st.Status == domain.StatusAuthenticated {
		if s, ok := c.cfg.Sessions.Get(acct.ID); ok {
			return s, nil
		}
	}
	if err := c.cfg.Store.MarkStatus(acct.ID, domain.StatusAuthenticating); err != nil {
		log.Warnf("[scheduler] cannot authenticate: %v", err)
		c.cfg.Store.Retire(acct.ID, err.Error())
		return nil, err
	}

	pol := c.cfg.Retry
	pol.Retryable = session.IsRetryableAuth
	pol.OnRetry = func(attempt int, delay time.Duration, err error) {
		log.Warnf("[scheduler] login attempt %d failed, retrying in %s: %v", attempt, delay, err)
	}

	var sess *session.Session
	attempts, err := pol.Do(ctx, func(ctx context.Context, _ int) error {
		s, err := c.cfg.Sessions.Open(ctx, acct)
		if err != nil {
			return err
		}
		sess = s
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Warnf("[scheduler] login failed after %d attempts: %v", attempts, err)
		_ = c.cfg.Store.MarkStatusReason(acct.ID, domain.StatusBlocked, err.Error())
		return nil, err
	}
	if err := c.cfg.Store.MarkStatus(acct.ID, domain.StatusAuthenticated); err != nil {
		return nil, err
	}
	return sess, nil
}

type taskResult struct {
	fetched  int
	admitted int
	err      error
}

// runTask executes one task with the shared retry policy. A retried fetch
// starts over; duplicates from the earlier attempt are caught by the index.
func (c *Coordinator) runTask(ctx context.Context, r *run, sess *session.Session, task domain.Task, log *logrus.Entry) taskResult {
	id := sess.Account.ID
	strat, ok := c.cfg.Sources[task.Method]
	if !ok {
		return taskResult{err: fmt.Errorf("no strategy for method %q", task.Method)}
	}
	started := c.cfg.Now()
	metrics.RequestsTotal.WithLabelValues(string(task.Method)).Inc()
	defer metrics.ObserveFetch(string(task.Method), started)

	pol := c.cfg.Retry
	pol.Retryable = source.IsTransient
	pol.OnRetry = func(attempt int, delay time.Duration, err error) {
		if source.IsThrottled(err) {
			_ = c.cfg.Store.MarkStatusReason(id, domain.StatusRateLimited, "throttled by platform")
		}
		log.Warnf("[scheduler] task %d %s attempt %d failed, retrying in %s: %v", task.ID, task.Method, attempt, delay, err)
	}

	var res taskResult
	_, err := pol.Do(ctx, func(ctx context.Context, attempt int) error {
		c.resume(id)
		task.Attempt = attempt
		for cand, err := range strat.Fetch(ctx, sess, task) {
			if err != nil {
				return err
			}
			res.fetched++
			switch c.admit(ctx, r, sess.Account, task, cand, log) {
			case admitted:
				res.admitted++
			case full:
				return nil
			}
		}
		return nil
	})
	c.resume(id)
	res.err = err
	log.Debugf("[scheduler] task %d %s fetched=%d admitted=%d err=%v", task.ID, task.Method, res.fetched, res.admitted, err)
	return res
}

// resume returns a throttled account to service.
func (c *Coordinator) resume(id string) {
	if st, ok := c.cfg.Store.Get(id); ok && st.Status == domain.StatusRateLimited {
		_ = c.cfg.Store.MarkStatus(id, domain.StatusAuthenticated)
	}
}

// settle applies the status a failed task implies.
func (c *Coordinator) settle(ctx context.Context, id string, err error, log *logrus.Entry) {
	switch {
	case ctx.Err() != nil:
		return
	case ratelimit.IsBudgetExhausted(err):
		log.Infof("[scheduler] daily budget reached")
		_ = c.cfg.Store.MarkStatus(id, domain.StatusExhausted)
	case errors.Is(err, accounts.ErrTerminal):
		return
	default:
		log.Warnf("[scheduler] blocking account: %v", err)
		_ = c.cfg.Store.MarkStatusReason(id, domain.StatusBlocked, err.Error())
		c.cfg.Sessions.Drop(id)
	}
}

type verdict int

const (
	admitted verdict = iota
	duplicate
	filtered
	skipped
	full
)

func (c *Coordinator) admit(ctx context.Context, r *run, acct domain.Account, task domain.Task, cand domain.RawCandidate, log *logrus.Entry) verdict {
	if r.agg.TargetMet() {
		return full
	}
	if keep, _ := r.rules.Keep(cand); !keep {
		metrics.CandidatesTotal.WithLabelValues(metrics.Filtered).Inc()
		return filtered
	}
	key := dedup.Key(cand)
	ok, err := c.cfg.Index.Admit(ctx, key)
	if err != nil {
		log.Warnf("[scheduler] dedup admit %s: %v", key, err)
		return skipped
	}
	if !ok {
		metrics.CandidatesTotal.WithLabelValues(metrics.Duplicate).Inc()
		return duplicate
	}
	attr := domain.Attribution{
		AccountID:    acct.ID,
		AccountEmail: acct.Email,
		Method:       task.Method,
		Category:     task.Category,
	}
	if attr.Category.Empty() {
		attr.Category = acct.Affinity
	}
	if !r.agg.Append(source.Normalize(cand, key, attr, c.cfg.Now())) {
		return full
	}
	metrics.CandidatesTotal.WithLabelValues(metrics.Admitted).Inc()
	return admitted
}
