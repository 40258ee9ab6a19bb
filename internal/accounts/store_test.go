package accounts

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"jobsweep-engine/internal/domain"
)

func acct(id string, affinity domain.Category, maxDaily int) domain.Account {
	return domain.Account{ID: id, Email: id + "@a.com", Affinity: affinity, Active: true, MaxDailyRequests: maxDaily}
}

func TestListEligibleFiltersAndOrdersByAffinity(t *testing.T) {
	s := New([]domain.Account{
		acct("a", "Data Scientist", 5),
		acct("b", "Software Engineer", 5),
		acct("c", "", 5),
		acct("d", "software engineer", 5),
		{ID: "inactive", Active: false, MaxDailyRequests: 5},
	})
	if err := s.MarkStatus("c", domain.StatusBlocked); err != nil {
		t.Fatalf("MarkStatus: %v", err)
	}

	got := s.ListEligible("Software Engineer")
	var ids []string
	for _, a := range got {
		ids = append(ids, a.ID)
	}
	want := []string{"b", "d", "a"}
	if len(ids) != len(want) {
		t.Fatalf("expected %v, got %v", want, ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, ids)
		}
	}
}

func TestMarkStatusRejectsLeavingTerminal(t *testing.T) {
	s := New([]domain.Account{acct("a", "", 5)})
	for _, st := range []domain.Status{domain.StatusAuthenticating, domain.StatusAuthenticated, domain.StatusExhausted} {
		if err := s.MarkStatus("a", st); err != nil {
			t.Fatalf("MarkStatus(%s): %v", st, err)
		}
	}
	if err := s.MarkStatus("a", domain.StatusAuthenticated); !errors.Is(err, ErrTerminal) {
		t.Fatalf("expected ErrTerminal, got %v", err)
	}
	if err := s.MarkStatus("missing", domain.StatusIdle); !errors.Is(err, ErrUnknownAccount) {
		t.Fatalf("expected ErrUnknownAccount, got %v", err)
	}

	s2 := New([]domain.Account{acct("b", "", 5)})
	if err := s2.MarkStatus("b", domain.StatusExhausted); !errors.Is(err, ErrBadTransition) {
		t.Fatalf("expected ErrBadTransition for idle->exhausted, got %v", err)
	}
}

func TestChargeNeverPassesCap(t *testing.T) {
	const maxDaily = 7
	s := New([]domain.Account{acct("a", "", maxDaily)})
	_ = s.MarkStatus("a", domain.StatusAuthenticating)
	_ = s.MarkStatus("a", domain.StatusAuthenticated)

	var transitions []domain.Status
	s.OnTransition(func(_ string, _, to domain.Status) { transitions = append(transitions, to) })

	var ok, refused int64
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := s.Charge("a"); err == nil {
				atomic.AddInt64(&ok, 1)
			} else if errors.Is(err, ErrBudgetExhausted) {
				atomic.AddInt64(&refused, 1)
			}
		}()
	}
	wg.Wait()

	st, _ := s.Get("a")
	if st.Consumed != maxDaily {
		t.Fatalf("expected consumed=%d, got %d", maxDaily, st.Consumed)
	}
	if ok != maxDaily || refused != 50-maxDaily {
		t.Fatalf("expected %d accepted and %d refused charges, got %d/%d", maxDaily, 50-maxDaily, ok, refused)
	}
	if st.Status != domain.StatusExhausted {
		t.Fatalf("expected exhausted, got %s", st.Status)
	}
	if len(transitions) != 1 || transitions[0] != domain.StatusExhausted {
		t.Fatalf("expected one exhausted transition, got %v", transitions)
	}
	if len(s.ListEligible("")) != 0 {
		t.Fatal("exhausted account must not be eligible")
	}
}

func TestClaimIsExclusive(t *testing.T) {
	s := New([]domain.Account{acct("a", "", 5), acct("b", "", 5), acct("c", "", 5)})

	var mu sync.Mutex
	claimed := map[string]int{}
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if a, ok := s.Claim(""); ok {
				mu.Lock()
				claimed[a.ID]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(claimed) != 3 {
		t.Fatalf("expected all 3 accounts claimed, got %v", claimed)
	}
	for id, n := range claimed {
		if n != 1 {
			t.Fatalf("account %s claimed %d times", id, n)
		}
	}
	if _, ok := s.Claim(""); ok {
		t.Fatal("expected no free account")
	}
	s.Release("b")
	if a, ok := s.Claim(""); !ok || a.ID != "b" {
		t.Fatalf("expected released account b to be claimable, got %+v ok=%v", a, ok)
	}
	if tl := s.Tallies(); tl.InUse != 3 || tl.Used != 3 {
		t.Fatalf("unexpected tallies: %+v", tl)
	}
}

func TestClaimPrefersAffinity(t *testing.T) {
	s := New([]domain.Account{acct("general", "", 5), acct("ds", "Data Scientist", 5)})

	a, ok := s.Claim("Data Scientist")
	if !ok || a.ID != "ds" {
		t.Fatalf("expected affinity account ds, got %+v ok=%v", a, ok)
	}
	a, ok = s.Claim("Data Scientist")
	if !ok || a.ID != "general" {
		t.Fatalf("expected fallback to general, got %+v ok=%v", a, ok)
	}
}

func TestRetireRemovesFromPool(t *testing.T) {
	s := New([]domain.Account{acct("a", "", 5)})
	if _, ok := s.Claim(""); !ok {
		t.Fatal("expected claim")
	}
	s.Retire("a", "feed drained")
	if len(s.ListEligible("")) != 0 {
		t.Fatal("retired account still eligible")
	}
	if _, ok := s.Claim(""); ok {
		t.Fatal("retired account claimed again")
	}
	st, _ := s.Get("a")
	if st.Status != domain.StatusIdle || st.Claimed || st.Reason != "feed drained" {
		t.Fatalf("unexpected state: %+v", st)
	}
}
