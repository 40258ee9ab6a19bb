// Package ratelimit paces each account's requests and enforces its daily
// budget. Accounts are paced independently of one another.
package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"jobsweep-engine/internal/accounts"
	"jobsweep-engine/internal/session"
)

var ErrBudgetExhausted = accounts.ErrBudgetExhausted

// Ledger is the part of the account store the governor charges against.
type Ledger interface {
	Charge(id string) (consumed int, exhausted bool, err error)
}

// Governor keeps one limiter per account with burst 1 so consecutive
// requests on a session are at least MinInterval apart. Requests the
// session sent on its own, such as login, count toward the spacing.
type Governor struct {
	ledger      Ledger
	defaultWait time.Duration

	mu sync.Mutex
	m  map[string]*rate.Limiter
}

// New builds a governor. minInterval applies to accounts that carry no
// override of their own.
func New(ledger Ledger, minInterval time.Duration) *Governor {
	return &Governor{
		ledger:      ledger,
		defaultWait: minInterval,
		m:           make(map[string]*rate.Limiter),
	}
}

func (g *Governor) intervalFor(s *session.Session) time.Duration {
	if s.Account.MinInterval > 0 {
		return s.Account.MinInterval
	}
	return g.defaultWait
}

func (g *Governor) limiterFor(s *session.Session) *rate.Limiter {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := s.Account.ID
	if lim, ok := g.m[id]; ok {
		return lim
	}
	interval := g.intervalFor(s)
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	lim := rate.NewLimiter(limit, 1)
	g.m[id] = lim
	return lim
}

// Acquire blocks until the session may send its next request, or ctx ends.
func (g *Governor) Acquire(ctx context.Context, s *session.Session) error {
	if last := s.LastRequest(); !last.IsZero() {
		if wait := g.intervalFor(s) - time.Since(last); wait > 0 {
			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}
	}
	if err := g.limiterFor(s).Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	s.Touch(time.Now())
	return nil
}

// Charge counts one request against the account's daily budget. exhausted
// is true once the cap is reached; a charge past the cap returns
// ErrBudgetExhausted and is not counted.
func (g *Governor) Charge(accountID string) (exhausted bool, err error) {
	_, exhausted, err = g.ledger.Charge(accountID)
	return exhausted, err
}

// Take is Acquire followed by Charge, the gate every platform call passes.
func (g *Governor) Take(ctx context.Context, s *session.Session) (exhausted bool, err error) {
	if err := g.Acquire(ctx, s); err != nil {
		return false, err
	}
	return g.Charge(s.Account.ID)
}

// IsBudgetExhausted reports whether err means the account hit its cap.
func IsBudgetExhausted(err error) bool {
	return errors.Is(err, ErrBudgetExhausted)
}
