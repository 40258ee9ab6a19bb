package session

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"jobsweep-engine/internal/domain"
)

// Cache wraps a Provider so that each account authenticates at most once
// per run. Concurrent opens for the same account share one login; failures
// are not memoized so a retry policy can call Open again.
type Cache struct {
	p Provider
	g singleflight.Group

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewCache(p Provider) *Cache {
	return &Cache{p: p, sessions: make(map[string]*Session)}
}

func (c *Cache) Open(ctx context.Context, acct domain.Account) (*Session, error) {
	if s, ok := c.Get(acct.ID); ok {
		return s, nil
	}

	v, err, _ := c.g.Do(acct.ID, func() (any, error) {
		if s, ok := c.Get(acct.ID); ok {
			return s, nil
		}
		s, err := c.p.Open(ctx, acct)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.sessions[acct.ID] = s
		c.mu.Unlock()
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

func (c *Cache) Get(id string) (*Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[id]
	return s, ok
}

// Drop forgets a session, e.g. after the account is blocked.
func (c *Cache) Drop(id string) {
	c.mu.Lock()
	delete(c.sessions, id)
	c.mu.Unlock()
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}
