// Package accounts holds the live per-run state of every configured account.
// All reads and writes go through one mutex; nothing here performs I/O.
package accounts

import (
	"errors"
	"fmt"
	"sync"

	"jobsweep-engine/internal/domain"
)

var (
	ErrUnknownAccount  = errors.New("unknown account")
	ErrTerminal        = errors.New("account is in a terminal state")
	ErrBadTransition   = errors.New("illegal status transition")
	ErrBudgetExhausted = errors.New("daily request budget exhausted")
)

type record struct {
	acct     domain.Account
	status   domain.Status
	consumed int
	claimed  bool
	used     bool
	retired  bool
	reason   string
}

func (r *record) eligible() bool {
	return r.acct.Active && !r.retired && r.status.Schedulable() && r.consumed < r.acct.MaxDailyRequests
}

// State is a point-in-time view of one account.
type State struct {
	Account  domain.Account `json:"account"`
	Status   domain.Status  `json:"status"`
	Consumed int            `json:"consumed"`
	Claimed  bool           `json:"claimed"`
	Reason   string         `json:"reason,omitempty"`
}

type Tallies struct {
	Total         int `json:"total"`
	Eligible      int `json:"eligible"`
	InUse         int `json:"in_use"`
	Used          int `json:"used"`
	Authenticated int `json:"authenticated"`
	RateLimited   int `json:"rate_limited"`
	Blocked       int `json:"blocked"`
	Exhausted     int `json:"exhausted"`
}

// TransitionFunc observes every accepted status change.
type TransitionFunc func(id string, from, to domain.Status)

type Store struct {
	mu      sync.Mutex
	order   []string
	recs    map[string]*record
	onTrans TransitionFunc
}

// New builds a store with every account Idle and zero consumption. Later
// duplicates of an id are ignored.
func New(accts []domain.Account) *Store {
	s := &Store{recs: make(map[string]*record, len(accts))}
	for _, a := range accts {
		if _, dup := s.recs[a.ID]; dup {
			continue
		}
		s.order = append(s.order, a.ID)
		s.recs[a.ID] = &record{acct: a, status: domain.StatusIdle}
	}
	return s
}

// OnTransition registers an observer. Call before the store is shared.
func (s *Store) OnTransition(fn TransitionFunc) { s.onTrans = fn }

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// ListEligible returns copies of accounts that are active, in Idle or
// Authenticated, and under budget. With a non-empty affinity, accounts
// matching it come first; the rest keep load order.
func (s *Store) ListEligible(affinity domain.Category) []domain.Account {
	s.mu.Lock()
	defer s.mu.Unlock()

	var preferred, rest []domain.Account
	for _, id := range s.order {
		r := s.recs[id]
		if !r.eligible() {
			continue
		}
		if r.acct.Affinity.Matches(affinity) {
			preferred = append(preferred, r.acct)
		} else {
			rest = append(rest, r.acct)
		}
	}
	return append(preferred, rest...)
}

// Claim atomically picks an eligible, unclaimed account and marks it claimed.
// An account whose affinity matches is preferred; otherwise the first
// eligible one in load order is taken.
func (s *Store) Claim(affinity domain.Category) (domain.Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var fallback *record
	for _, id := range s.order {
		r := s.recs[id]
		if r.claimed || !r.eligible() {
			continue
		}
		if r.acct.Affinity.Matches(affinity) {
			r.claimed, r.used = true, true
			return r.acct, true
		}
		if fallback == nil {
			fallback = r
		}
	}
	if fallback == nil {
		return domain.Account{}, false
	}
	fallback.claimed, fallback.used = true, true
	return fallback.acct, true
}

func (s *Store) Release(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.recs[id]; ok {
		r.claimed = false
	}
}

// Retire releases an account and keeps it from being claimed again this
// run. Its status is left as is.
func (s *Store) Retire(id string, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.recs[id]; ok {
		r.claimed = false
		r.retired = true
		if reason != "" {
			r.reason = reason
		}
	}
}

// MarkStatus is the only way to change an account's status.
func (s *Store) MarkStatus(id string, to domain.Status) error {
	return s.mark(id, to, "")
}

// MarkStatusReason is MarkStatus with a human-readable cause kept for views.
func (s *Store) MarkStatusReason(id string, to domain.Status, reason string) error {
	return s.mark(id, to, reason)
}

func (s *Store) mark(id string, to domain.Status, reason string) error {
	s.mu.Lock()
	r, ok := s.recs[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("mark %s: %w", id, ErrUnknownAccount)
	}
	from := r.status
	if from.Terminal() {
		s.mu.Unlock()
		return fmt.Errorf("mark %s %s->%s: %w", id, from, to, ErrTerminal)
	}
	if !domain.CanTransition(from, to) {
		s.mu.Unlock()
		return fmt.Errorf("mark %s %s->%s: %w", id, from, to, ErrBadTransition)
	}
	r.status = to
	if reason != "" {
		r.reason = reason
	}
	fn := s.onTrans
	s.mu.Unlock()

	if fn != nil && from != to {
		fn(id, from, to)
	}
	return nil
}

// Charge records one outbound request. The counter never passes the
// account's cap: at the cap the account moves to Exhausted, and charging an
// exhausted account fails without incrementing.
func (s *Store) Charge(id string) (consumed int, exhausted bool, err error) {
	s.mu.Lock()
	r, ok := s.recs[id]
	if !ok {
		s.mu.Unlock()
		return 0, false, fmt.Errorf("charge %s: %w", id, ErrUnknownAccount)
	}
	if r.status == domain.StatusExhausted || r.consumed >= r.acct.MaxDailyRequests {
		s.mu.Unlock()
		return r.consumed, true, fmt.Errorf("charge %s: %w", id, ErrBudgetExhausted)
	}
	if r.status == domain.StatusBlocked {
		s.mu.Unlock()
		return r.consumed, false, fmt.Errorf("charge %s: %w", id, ErrTerminal)
	}

	r.consumed++
	consumed = r.consumed
	from := r.status
	if r.consumed < r.acct.MaxDailyRequests {
		s.mu.Unlock()
		return consumed, false, nil
	}

	if domain.CanTransition(from, domain.StatusExhausted) {
		r.status = domain.StatusExhausted
		r.reason = "daily request budget reached"
	}
	fn := s.onTrans
	to := r.status
	s.mu.Unlock()

	if fn != nil && from != to {
		fn(id, from, to)
	}
	return consumed, true, nil
}

func (s *Store) Get(id string) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.recs[id]
	if !ok {
		return State{}, false
	}
	return r.state(), true
}

// States returns every account in load order.
func (s *Store) States() []State {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]State, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.recs[id].state())
	}
	return out
}

func (s *Store) Tallies() Tallies {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := Tallies{Total: len(s.order)}
	for _, id := range s.order {
		r := s.recs[id]
		if r.eligible() {
			t.Eligible++
		}
		if r.claimed {
			t.InUse++
		}
		if r.used {
			t.Used++
		}
		switch r.status {
		case domain.StatusAuthenticated:
			t.Authenticated++
		case domain.StatusRateLimited:
			t.RateLimited++
		case domain.StatusBlocked:
			t.Blocked++
		case domain.StatusExhausted:
			t.Exhausted++
		}
	}
	return t
}

func (r *record) state() State {
	return State{
		Account:  r.acct,
		Status:   r.status,
		Consumed: r.consumed,
		Claimed:  r.claimed,
		Reason:   r.reason,
	}
}
