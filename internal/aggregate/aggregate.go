// Package aggregate collects admitted records for one run and keeps the
// counters behind its progress snapshot and terminal summary.
package aggregate

import (
	"sync"
	"sync/atomic"
	"time"

	"jobsweep-engine/internal/domain"
)

type Outcome string

const (
	Running       Outcome = "running"
	TargetMet     Outcome = "target_met"
	PoolExhausted Outcome = "pool_exhausted"
	Stopped       Outcome = "stopped"
)

// Snapshot is the pull-based progress view.
type Snapshot struct {
	Collected     int           `json:"collected"`
	Target        int           `json:"target"`
	Succeeded     int           `json:"succeeded"`
	Blocked       int           `json:"blocked"`
	Exhausted     int           `json:"exhausted"`
	Abandoned     int           `json:"abandoned"`
	AccountsInUse int           `json:"accounts_in_use"`
	AccountsUsed  int           `json:"accounts_used"`
	Elapsed       time.Duration `json:"elapsed"`
	Outcome       Outcome       `json:"outcome"`
}

// Summary is handed to export sinks once the run is terminal.
type Summary struct {
	RunID          string        `json:"run_id,omitempty"`
	TotalCollected int           `json:"total_collected"`
	Target         int           `json:"target"`
	AccountsUsed   int           `json:"accounts_used"`
	AccountsFailed int           `json:"accounts_failed"`
	Exhausted      int           `json:"exhausted"`
	Outcome        Outcome       `json:"outcome"`
	StartedAt      time.Time     `json:"started_at"`
	Elapsed        time.Duration `json:"elapsed"`
}

// Partial reports a run that ended below target.
func (s Summary) Partial() bool { return s.TotalCollected < s.Target }

type Aggregator struct {
	target  int
	started time.Time
	now     func() time.Time

	mu      sync.RWMutex
	records []domain.JobRecord
	outcome Outcome
	ended   time.Time

	collected atomic.Int64
	inUse     atomic.Int64
	used      atomic.Int64
	succeeded atomic.Int64
	blocked   atomic.Int64
	exhausted atomic.Int64
	abandoned atomic.Int64
}

func New(target int) *Aggregator {
	return NewAt(target, time.Now)
}

// NewAt is New with an injectable clock.
func NewAt(target int, now func() time.Time) *Aggregator {
	return &Aggregator{target: target, started: now(), now: now, outcome: Running}
}

func (a *Aggregator) Target() int { return a.target }

// Append stores an admitted record unless the target is already met. The
// collected count never passes the target.
func (a *Aggregator) Append(rec domain.JobRecord) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.target > 0 && len(a.records) >= a.target {
		return false
	}
	a.records = append(a.records, rec)
	a.collected.Store(int64(len(a.records)))
	return true
}

func (a *Aggregator) Collected() int { return int(a.collected.Load()) }

// TargetMet reports whether collection can stop.
func (a *Aggregator) TargetMet() bool {
	return a.target > 0 && a.Collected() >= a.target
}

// Records returns a copy of everything collected, in append order.
func (a *Aggregator) Records() []domain.JobRecord {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]domain.JobRecord, len(a.records))
	copy(out, a.records)
	return out
}

// Drain returns the records appended at or after index from. Callers keep
// their own cursor: next = from + len(result).
func (a *Aggregator) Drain(from int) []domain.JobRecord {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if from < 0 {
		from = 0
	}
	if from >= len(a.records) {
		return nil
	}
	out := make([]domain.JobRecord, len(a.records)-from)
	copy(out, a.records[from:])
	return out
}

// AccountStarted counts an account bound to a worker.
func (a *Aggregator) AccountStarted() {
	a.inUse.Add(1)
	a.used.Add(1)
}

// AccountFinished releases a worker's account and tallies how it ended.
// Exhausted accounts count as succeeded. An account the run let go before
// it ever authenticated is abandoned, not succeeded.
func (a *Aggregator) AccountFinished(final domain.Status) {
	a.inUse.Add(-1)
	switch final {
	case domain.StatusBlocked:
		a.blocked.Add(1)
	case domain.StatusExhausted:
		a.exhausted.Add(1)
		a.succeeded.Add(1)
	case domain.StatusIdle, domain.StatusAuthenticating:
		a.abandoned.Add(1)
	default:
		a.succeeded.Add(1)
	}
}

// Finish records the terminal outcome. Only the first call has effect.
func (a *Aggregator) Finish(o Outcome) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.outcome != Running {
		return
	}
	a.outcome = o
	a.ended = a.now()
}

func (a *Aggregator) Outcome() Outcome {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.outcome
}

func (a *Aggregator) elapsed() time.Duration {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if !a.ended.IsZero() {
		return a.ended.Sub(a.started)
	}
	return a.now().Sub(a.started)
}

func (a *Aggregator) Snapshot() Snapshot {
	return Snapshot{
		Collected:     a.Collected(),
		Target:        a.target,
		Succeeded:     int(a.succeeded.Load()),
		Blocked:       int(a.blocked.Load()),
		Exhausted:     int(a.exhausted.Load()),
		Abandoned:     int(a.abandoned.Load()),
		AccountsInUse: int(a.inUse.Load()),
		AccountsUsed:  int(a.used.Load()),
		Elapsed:       a.elapsed(),
		Outcome:       a.Outcome(),
	}
}

func (a *Aggregator) Summary() Summary {
	return Summary{
		TotalCollected: a.Collected(),
		Target:         a.target,
		AccountsUsed:   int(a.used.Load()),
		AccountsFailed: int(a.blocked.Load()),
		Exhausted:      int(a.exhausted.Load()),
		Outcome:        a.Outcome(),
		StartedAt:      a.started.UTC(),
		Elapsed:        a.elapsed(),
	}
}
