// Package dedup decides which candidates are new within a run.
package dedup

import (
	"context"
	"sync"

	"jobsweep-engine/internal/domain"
	"jobsweep-engine/internal/util"
)

// Index admits each key at most once. Concurrent Admit calls with the same
// key see exactly one true.
type Index interface {
	Admit(ctx context.Context, key string) (bool, error)
}

// Key is the deduplication key of a candidate: its external id when the
// platform supplied one, else organization, title and location. All parts
// are case-folded with whitespace collapsed, so Key is idempotent over
// already-normalized input.
func Key(c domain.RawCandidate) string {
	if id := util.Fold(c.ExternalID); id != "" {
		return "id:" + id
	}
	return "otl:" + util.Fold(c.Company) + "|" + util.Fold(c.Title) + "|" + util.Fold(c.Location)
}

// Memory is an in-process Index.
type Memory struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewMemory() *Memory {
	return &Memory{seen: make(map[string]struct{})}
}

func (m *Memory) Admit(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.seen[key]; ok {
		return false, nil
	}
	m.seen[key] = struct{}{}
	return true, nil
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.seen)
}
