package aggregate

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"jobsweep-engine/internal/domain"
)

func rec(i int) domain.JobRecord {
	return domain.JobRecord{Key: fmt.Sprintf("id:%d", i), Title: "t"}
}

func TestAppendNeverPassesTarget(t *testing.T) {
	a := New(50)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				a.Append(rec(w*100 + i))
			}
		}(w)
	}
	wg.Wait()

	if a.Collected() != 50 || len(a.Records()) != 50 {
		t.Fatalf("expected exactly 50 records, got %d/%d", a.Collected(), len(a.Records()))
	}
	if !a.TargetMet() {
		t.Fatal("expected target met")
	}
	if a.Append(rec(9999)) {
		t.Fatal("append past target accepted")
	}
}

func TestDrainIsIncremental(t *testing.T) {
	a := New(10)
	for i := 0; i < 3; i++ {
		a.Append(rec(i))
	}
	first := a.Drain(0)
	if len(first) != 3 {
		t.Fatalf("expected 3, got %d", len(first))
	}
	a.Append(rec(3))
	next := a.Drain(len(first))
	if len(next) != 1 || next[0].Key != "id:3" {
		t.Fatalf("unexpected drain: %+v", next)
	}
	if got := a.Drain(10); got != nil {
		t.Fatalf("expected nil past end, got %v", got)
	}
}

func TestSnapshotAndSummary(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	a := NewAt(5, clock)

	for i := 0; i < 3; i++ {
		a.AccountStarted()
	}
	a.AccountFinished(domain.StatusBlocked)
	a.AccountFinished(domain.StatusExhausted)
	a.Append(rec(1))

	now = now.Add(90 * time.Second)
	snap := a.Snapshot()
	if snap.AccountsInUse != 1 || snap.AccountsUsed != 3 || snap.Blocked != 1 || snap.Exhausted != 1 || snap.Succeeded != 1 {
		t.Fatalf("unexpected tallies: %+v", snap)
	}
	if snap.Elapsed != 90*time.Second || snap.Outcome != Running {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}

	a.AccountFinished(domain.StatusAuthenticated)
	a.Finish(PoolExhausted)
	a.Finish(TargetMet)
	now = now.Add(time.Hour)

	sum := a.Summary()
	if sum.Outcome != PoolExhausted || !sum.Partial() {
		t.Fatalf("unexpected summary: %+v", sum)
	}
	if sum.AccountsUsed != 3 || sum.AccountsFailed != 1 || sum.TotalCollected != 1 {
		t.Fatalf("unexpected summary counts: %+v", sum)
	}
	if sum.Elapsed != 90*time.Second {
		t.Fatalf("elapsed kept running after finish: %v", sum.Elapsed)
	}
}

func TestUnauthenticatedAccountsAreAbandoned(t *testing.T) {
	a := New(5)
	for _, st := range []domain.Status{domain.StatusAuthenticating, domain.StatusIdle, domain.StatusAuthenticated, domain.StatusRateLimited} {
		a.AccountStarted()
		a.AccountFinished(st)
	}
	snap := a.Snapshot()
	if snap.Abandoned != 2 || snap.Succeeded != 2 || snap.AccountsInUse != 0 {
		t.Fatalf("unexpected tallies: %+v", snap)
	}
}
