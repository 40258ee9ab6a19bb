package session

import (
	"context"
	"errors"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"jobsweep-engine/internal/domain"
	"jobsweep-engine/internal/fakeplatform"
)

func newTestProvider(t *testing.T) (*HTTPProvider, *fakeplatform.Server) {
	t.Helper()
	fake := fakeplatform.New(fakeplatform.Catalog(10, 1), false)
	fake.AddUser(fakeplatform.User{Email: "ok@a.com", Password: "pw"})
	fake.AddUser(fakeplatform.User{Email: "locked@a.com", Password: "pw", Locked: true})
	fake.AddUser(fakeplatform.User{Email: "flaky@a.com", Password: "pw", FailLogins: 1})
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	return &HTTPProvider{
		BaseURL: srv.URL,
		Resolve: func(ref string) (string, error) { return ref, nil },
	}, fake
}

func TestHTTPProviderOpen(t *testing.T) {
	p, fake := newTestProvider(t)

	sess, err := p.Open(context.Background(), domain.Account{ID: "ok", Email: "ok@a.com", CredentialRef: "pw"})
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	if sess.UserID == "" {
		t.Fatal("expected user id from login result")
	}
	if sess.LastRequest().IsZero() {
		t.Fatal("expected last request to be stamped")
	}
	for _, path := range []string{"/swan/auth/newinfo", "/swan/user-settings/get", "/swan/ab/user"} {
		if fake.Hits(path) != 1 {
			t.Fatalf("expected one onboarding hit on %s, got %d", path, fake.Hits(path))
		}
	}
}

func TestHTTPProviderFailureReasons(t *testing.T) {
	p, _ := newTestProvider(t)

	cases := []struct {
		acct      domain.Account
		reason    Reason
		retryable bool
	}{
		{domain.Account{ID: "bad", Email: "ok@a.com", CredentialRef: "wrong"}, ReasonInvalidCredential, false},
		{domain.Account{ID: "ghost", Email: "ghost@a.com", CredentialRef: "pw"}, ReasonInvalidCredential, false},
		{domain.Account{ID: "locked", Email: "locked@a.com", CredentialRef: "pw"}, ReasonLocked, false},
		{domain.Account{ID: "flaky", Email: "flaky@a.com", CredentialRef: "pw"}, ReasonNetwork, true},
	}
	for _, tc := range cases {
		_, err := p.Open(context.Background(), tc.acct)
		var af *AuthFailure
		if !errors.As(err, &af) {
			t.Fatalf("%s: expected *AuthFailure, got %v", tc.acct.ID, err)
		}
		if af.Reason != tc.reason || af.Retryable() != tc.retryable {
			t.Fatalf("%s: got reason=%s retryable=%v", tc.acct.ID, af.Reason, af.Retryable())
		}
		if IsRetryableAuth(err) != tc.retryable {
			t.Fatalf("%s: IsRetryableAuth mismatch", tc.acct.ID)
		}
	}

	// flaky only fails its first login
	if _, err := p.Open(context.Background(), domain.Account{ID: "flaky", Email: "flaky@a.com", CredentialRef: "pw"}); err != nil {
		t.Fatalf("expected second flaky login to succeed, got %v", err)
	}
}

func TestHTTPProviderUnresolvableCredential(t *testing.T) {
	p, _ := newTestProvider(t)
	p.Resolve = func(string) (string, error) { return "", errors.New("not in keychain") }

	_, err := p.Open(context.Background(), domain.Account{ID: "ok", Email: "ok@a.com"})
	var af *AuthFailure
	if !errors.As(err, &af) || af.Reason != ReasonInvalidCredential {
		t.Fatalf("expected invalid credential failure, got %v", err)
	}
}

type countingProvider struct {
	calls int64
	gate  chan struct{}
}

func (c *countingProvider) Open(ctx context.Context, acct domain.Account) (*Session, error) {
	atomic.AddInt64(&c.calls, 1)
	<-c.gate
	return &Session{Account: acct}, nil
}

func TestCacheOpensOncePerAccount(t *testing.T) {
	cp := &countingProvider{gate: make(chan struct{})}
	c := NewCache(cp)
	acct := domain.Account{ID: "a"}

	var wg sync.WaitGroup
	results := make([]*Session, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := c.Open(context.Background(), acct)
			if err != nil {
				t.Errorf("Open: %v", err)
				return
			}
			results[i] = s
		}(i)
	}
	close(cp.gate)
	wg.Wait()

	if _, err := c.Open(context.Background(), acct); err != nil {
		t.Fatalf("Open after warmup: %v", err)
	}
	if n := atomic.LoadInt64(&cp.calls); n != 1 {
		t.Fatalf("expected one provider call, got %d", n)
	}
	for _, s := range results {
		if s != results[0] {
			t.Fatal("expected every caller to share one session")
		}
	}
	c.Drop("a")
	if c.Len() != 0 {
		t.Fatal("expected session dropped")
	}
}
