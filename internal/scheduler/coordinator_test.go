package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang/mock/gomock"

	"jobsweep-engine/internal/accounts"
	"jobsweep-engine/internal/aggregate"
	"jobsweep-engine/internal/dedup"
	"jobsweep-engine/internal/domain"
	"jobsweep-engine/internal/events"
	"jobsweep-engine/internal/fakeplatform"
	"jobsweep-engine/internal/filter"
	"jobsweep-engine/internal/mocks"
	"jobsweep-engine/internal/ratelimit"
	"jobsweep-engine/internal/retry"
	"jobsweep-engine/internal/session"
	"jobsweep-engine/internal/source"
)

type recorder struct {
	mu   sync.Mutex
	evts []events.Event
}

func (r *recorder) Publish(s string) {
	var e events.Event
	if err := json.Unmarshal([]byte(s), &e); err != nil {
		return
	}
	r.mu.Lock()
	r.evts = append(r.evts, e)
	r.mu.Unlock()
}

func (r *recorder) statuses(id string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.evts {
		if e.Type != events.AccountStatus {
			continue
		}
		var sc events.StatusChange
		if json.Unmarshal(e.Data, &sc) == nil && sc.AccountID == id {
			out = append(out, sc.To)
		}
	}
	return out
}

func noSleep(context.Context, time.Duration) error { return nil }

type harness struct {
	store  *accounts.Store
	coord  *Coordinator
	events *recorder
}

func newHarness(t *testing.T, h http.Handler, accts []domain.Account, mutate func(*Config)) *harness {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	provider := &session.HTTPProvider{
		BaseURL: srv.URL,
		Resolve: func(ref string) (string, error) { return ref, nil },
	}
	return newHarnessWithProvider(t, provider, accts, mutate)
}

func newHarnessWithProvider(t *testing.T, p session.Provider, accts []domain.Account, mutate func(*Config)) *harness {
	t.Helper()
	store := accounts.New(accts)
	rec := &recorder{}
	cfg := Config{
		Store:    store,
		Sessions: session.NewCache(p),
		Sources:  source.NewSet(ratelimit.New(store, 0), source.Options{}),
		Index:    dedup.NewMemory(),
		Filters:  filter.Rules{RemoteOK: true},
		Retry:    retry.Policy{MaxRetries: 2, BaseDelay: time.Millisecond, Sleep: noSleep},
		Events:   rec,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return &harness{store: store, coord: New(cfg), events: rec}
}

func pool(n, budget int) []domain.Account {
	out := make([]domain.Account, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, domain.Account{
			ID:               fmt.Sprintf("acct-%d", i),
			Email:            fmt.Sprintf("user%d@example.com", i),
			CredentialRef:    "pw",
			Active:           true,
			MaxDailyRequests: budget,
		})
	}
	return out
}

func openFake(catalog int) *fakeplatform.Server {
	return fakeplatform.New(fakeplatform.Catalog(catalog, 42), true)
}

func assertUniqueKeys(t *testing.T, recs []domain.JobRecord) {
	t.Helper()
	seen := make(map[string]bool, len(recs))
	for _, r := range recs {
		if seen[r.Key] {
			t.Fatalf("duplicate key admitted: %s", r.Key)
		}
		seen[r.Key] = true
	}
}

func TestRunStopsExactlyAtTarget(t *testing.T) {
	h := newHarness(t, openFake(500), pool(4, 100), nil)

	sum, err := h.coord.Run(context.Background(), Params{RunID: "r1", Target: 30, Concurrency: 4})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Outcome != aggregate.TargetMet || sum.TotalCollected != 30 || sum.Partial() {
		t.Fatalf("unexpected summary: %+v", sum)
	}
	recs := h.coord.Records(0)
	if len(recs) != 30 {
		t.Fatalf("expected 30 records, got %d", len(recs))
	}
	assertUniqueKeys(t, recs)
	if tl := h.store.Tallies(); tl.InUse != 0 {
		t.Fatalf("accounts left claimed: %+v", tl)
	}
}

func TestRunNeverAdmitsDuplicates(t *testing.T) {
	// small catalog, many accounts: every account sees the same postings
	h := newHarness(t, openFake(45), pool(6, 100), nil)

	sum, err := h.coord.Run(context.Background(), Params{Target: 1000, Concurrency: 6})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	recs := h.coord.Records(0)
	assertUniqueKeys(t, recs)
	if len(recs) != 45 || sum.TotalCollected != 45 {
		t.Fatalf("expected the whole catalog once, got %d", len(recs))
	}
	if sum.Outcome != aggregate.PoolExhausted {
		t.Fatalf("expected pool exhausted once feeds drained, got %s", sum.Outcome)
	}
}

func TestRunRespectsBudgets(t *testing.T) {
	fake := openFake(500)
	h := newHarness(t, fake, pool(3, 2), nil)

	sum, err := h.coord.Run(context.Background(), Params{Target: 1000, Concurrency: 3})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, st := range h.store.States() {
		if st.Consumed > st.Account.MaxDailyRequests {
			t.Fatalf("%s consumed %d of %d", st.Account.ID, st.Consumed, st.Account.MaxDailyRequests)
		}
		if st.Status != domain.StatusExhausted {
			t.Fatalf("%s ended %s, expected exhausted", st.Account.ID, st.Status)
		}
	}
	sent := fake.Hits("/swan/recommend/landing/jobs") + fake.Hits("/swan/recommend/list/jobs")
	if sent != 6 {
		t.Fatalf("expected 6 platform requests, got %d", sent)
	}
	if sum.Outcome != aggregate.PoolExhausted || sum.AccountsFailed != 0 || sum.Exhausted != 3 {
		t.Fatalf("exhausted accounts should count as success: %+v", sum)
	}
}

func TestRunPartialWhenEveryLoginFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	prov := mocks.NewMockProvider(ctrl)
	prov.EXPECT().Open(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, a domain.Account) (*session.Session, error) {
		return nil, &session.AuthFailure{AccountID: a.ID, Reason: session.ReasonInvalidCredential, Err: errors.New("Incorrect password")}
	}).Times(5)

	h := newHarnessWithProvider(t, prov, pool(5, 100), nil)
	sum, err := h.coord.Run(context.Background(), Params{Target: 50, Concurrency: 2})
	if err != nil {
		t.Fatalf("per-account failures must not fail the run: %v", err)
	}
	if sum.Outcome != aggregate.PoolExhausted || sum.TotalCollected != 0 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
	if sum.AccountsUsed != 5 || sum.AccountsFailed != 5 {
		t.Fatalf("expected 5 used and failed, got %+v", sum)
	}
	for _, st := range h.store.States() {
		if st.Status != domain.StatusBlocked {
			t.Fatalf("%s ended %s", st.Account.ID, st.Status)
		}
	}
}

func TestRunRetriesNetworkLoginFailuresThenBlocks(t *testing.T) {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	prov := mocks.NewMockProvider(ctrl)
	prov.EXPECT().Open(gomock.Any(), gomock.Any()).
		Return(nil, &session.AuthFailure{AccountID: "acct-0", Reason: session.ReasonNetwork, Err: errors.New("timeout")}).
		Times(3)

	h := newHarnessWithProvider(t, prov, pool(1, 100), nil)
	sum, err := h.coord.Run(context.Background(), Params{Target: 10, Concurrency: 1})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	st, _ := h.store.Get("acct-0")
	if st.Status != domain.StatusBlocked {
		t.Fatalf("expected blocked after retries, got %s", st.Status)
	}
	if got := h.events.statuses("acct-0"); strings.Join(got, ",") != "authenticating,blocked" {
		t.Fatalf("unexpected transitions: %v", got)
	}
	if sum.AccountsFailed != 1 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
}

func TestRunPrefersAffinityAccounts(t *testing.T) {
	accts := pool(2, 100)
	accts[1].Affinity = "Data Scientist"
	h := newHarness(t, openFake(300), accts, nil)

	sum, err := h.coord.Run(context.Background(), Params{Target: 5, Concurrency: 1, Category: "data  scientist"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Outcome != aggregate.TargetMet {
		t.Fatalf("unexpected outcome %s", sum.Outcome)
	}
	for _, r := range h.coord.Records(0) {
		if r.Attribution.AccountID != "acct-1" || r.Attribution.Method != domain.MethodTitleFilter {
			t.Fatalf("record not from the affinity account: %+v", r.Attribution)
		}
		if !strings.Contains(strings.ToLower(r.Title), "data scientist") {
			t.Fatalf("title filter not applied: %q", r.Title)
		}
	}
	if st, _ := h.store.Get("acct-0"); st.Status != domain.StatusIdle {
		t.Fatalf("fallback account should not have been used: %s", st.Status)
	}
}

func TestRunAppliesKeywordFilter(t *testing.T) {
	h := newHarness(t, openFake(300), pool(2, 100), nil)

	_, err := h.coord.Run(context.Background(), Params{Target: 20, Concurrency: 2, Keyword: "Engineer"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	recs := h.coord.Records(0)
	if len(recs) != 20 {
		t.Fatalf("expected 20 records, got %d", len(recs))
	}
	for _, r := range recs {
		if !strings.Contains(strings.ToLower(r.Title+" "+r.Summary), "engineer") {
			t.Fatalf("keyword filter let %q through", r.Title)
		}
	}
}

func TestEmptyAffinityPolicy(t *testing.T) {
	cases := []struct {
		policy string
		want   domain.Method
	}{
		{EmptyComplete, domain.MethodPaginated},
		{EmptyFallback, domain.MethodStructured},
	}
	for _, tc := range cases {
		accts := pool(1, 100)
		accts[0].Affinity = "Zookeeper"
		h := newHarness(t, openFake(200), accts, func(c *Config) { c.EmptyAffinity = tc.policy })

		if _, err := h.coord.Run(context.Background(), Params{Target: 5, Concurrency: 1}); err != nil {
			t.Fatalf("%s: Run: %v", tc.policy, err)
		}
		recs := h.coord.Records(0)
		if len(recs) != 5 || recs[0].Attribution.Method != tc.want {
			t.Fatalf("%s: expected records from %s, got %d records", tc.policy, tc.want, len(recs))
		}
	}
}

func TestRunRecoversFromThrottling(t *testing.T) {
	fake := openFake(200)
	var throttled atomic.Bool
	h := newHarness(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/swan/recommend/landing/jobs" && throttled.CompareAndSwap(false, true) {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fake.ServeHTTP(w, r)
	}), pool(1, 100), nil)

	sum, err := h.coord.Run(context.Background(), Params{Target: 10, Concurrency: 1})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Outcome != aggregate.TargetMet || sum.AccountsFailed != 0 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
	got := strings.Join(h.events.statuses("acct-0"), ",")
	if got != "authenticating,authenticated,rate_limited,authenticated" {
		t.Fatalf("unexpected transitions: %s", got)
	}
}

func TestRunBlocksAfterTransientFetchRetries(t *testing.T) {
	fake := openFake(200)
	var landing atomic.Int32
	h := newHarness(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/swan/recommend/landing/jobs" {
			landing.Add(1)
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fake.ServeHTTP(w, r)
	}), pool(1, 100), nil)

	sum, err := h.coord.Run(context.Background(), Params{Target: 10, Concurrency: 1})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// MaxRetries is 2 in the harness
	if got := landing.Load(); got != 3 {
		t.Fatalf("expected 3 fetch attempts, got %d", got)
	}
	st, _ := h.store.Get("acct-0")
	if st.Status != domain.StatusBlocked || st.Consumed != 3 {
		t.Fatalf("unexpected account state: %+v", st)
	}
	if sum.Outcome != aggregate.PoolExhausted || sum.AccountsFailed != 1 || sum.TotalCollected != 0 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
}

func TestRunBlocksOnRejection(t *testing.T) {
	fake := fakeplatform.New(fakeplatform.Catalog(200, 1), false)
	fake.AddUser(fakeplatform.User{Email: "user0@example.com", Password: "pw", RejectAfter: 1})
	fake.AddUser(fakeplatform.User{Email: "user1@example.com", Password: "pw"})
	h := newHarness(t, fake, pool(2, 100), nil)

	sum, err := h.coord.Run(context.Background(), Params{Target: 60, Concurrency: 1})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	st, _ := h.store.Get("acct-0")
	if st.Status != domain.StatusBlocked {
		t.Fatalf("expected rejected account blocked, got %s", st.Status)
	}
	if sum.Outcome != aggregate.TargetMet || sum.AccountsFailed != 1 || sum.AccountsUsed != 2 {
		t.Fatalf("expected the second account to finish the run: %+v", sum)
	}
}

func TestStopEndsRunBetweenTasks(t *testing.T) {
	fake := openFake(500)
	var coord atomic.Pointer[Coordinator]
	h := newHarness(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/swan/recommend/landing/jobs" {
			coord.Load().Stop()
		}
		fake.ServeHTTP(w, r)
	}), pool(1, 100), nil)
	coord.Store(h.coord)

	sum, err := h.coord.Run(context.Background(), Params{Target: 1000, Concurrency: 1})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Outcome != aggregate.Stopped {
		t.Fatalf("expected stopped, got %s", sum.Outcome)
	}
	// the in-flight task runs to its page ceiling
	if sum.TotalCollected != 60 {
		t.Fatalf("expected the in-flight task to finish, got %d", sum.TotalCollected)
	}
}

func TestStopBeforeRunApplies(t *testing.T) {
	h := newHarness(t, openFake(50), pool(2, 100), nil)
	h.coord.Stop()

	sum, err := h.coord.Run(context.Background(), Params{Target: 10, Concurrency: 2})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Outcome != aggregate.Stopped || sum.AccountsUsed != 0 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
}

func TestCancelledContextStopsRun(t *testing.T) {
	h := newHarness(t, openFake(10), pool(2, 100), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sum, err := h.coord.Run(ctx, Params{Target: 5, Concurrency: 2})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Outcome != aggregate.Stopped || sum.AccountsUsed != 0 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
}

func TestCancelDuringLoginIsNotASuccess(t *testing.T) {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	prov := mocks.NewMockProvider(ctrl)
	prov.EXPECT().Open(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, a domain.Account) (*session.Session, error) {
		cancel()
		return nil, &session.AuthFailure{AccountID: a.ID, Reason: session.ReasonNetwork, Err: errors.New("timeout")}
	}).Times(1)

	h := newHarnessWithProvider(t, prov, pool(1, 100), nil)
	sum, err := h.coord.Run(ctx, Params{Target: 10, Concurrency: 1})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Outcome != aggregate.Stopped || sum.AccountsFailed != 0 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
	snap, _ := h.coord.Progress()
	if snap.Succeeded != 0 || snap.Abandoned != 1 {
		t.Fatalf("interrupted login tallied wrong: %+v", snap)
	}
}

func TestRunRejectsBadParams(t *testing.T) {
	h := newHarness(t, openFake(10), pool(1, 10), nil)
	for _, p := range []Params{{Target: 0, Concurrency: 1}, {Target: 5, Concurrency: 0}} {
		if _, err := h.coord.Run(context.Background(), p); !errors.Is(err, ErrInvalidParams) {
			t.Fatalf("%+v: expected ErrInvalidParams, got %v", p, err)
		}
	}

	empty := newHarness(t, openFake(10), nil, nil)
	if _, err := empty.coord.Run(context.Background(), Params{Target: 5, Concurrency: 1}); !errors.Is(err, ErrNoEligible) {
		t.Fatalf("expected ErrNoEligible, got %v", err)
	}
}

func TestRunPublishesLifecycleEvents(t *testing.T) {
	h := newHarness(t, openFake(100), pool(1, 100), nil)
	if _, err := h.coord.Run(context.Background(), Params{RunID: "run-9", Target: 5, Concurrency: 1}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	h.events.mu.Lock()
	defer h.events.mu.Unlock()
	first, last := h.events.evts[0], h.events.evts[len(h.events.evts)-1]
	if first.Type != events.RunStarted || last.Type != events.RunFinished || last.RunID != "run-9" {
		t.Fatalf("unexpected lifecycle: first=%s last=%s", first.Type, last.Type)
	}
	var sum aggregate.Summary
	if err := json.Unmarshal(last.Data, &sum); err != nil || sum.TotalCollected != 5 {
		t.Fatalf("bad finish payload %s: %v", last.Data, err)
	}
}
