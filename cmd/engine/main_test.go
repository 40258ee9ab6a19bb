package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"jobsweep-engine/internal/config"
	"jobsweep-engine/internal/domain"
	"jobsweep-engine/internal/session"
)

func TestShutdownHandlerGuards(t *testing.T) {
	srv := &http.Server{}
	h := shutdownHandler("tok", srv)

	cases := []struct {
		name   string
		method string
		remote string
		token  string
		want   int
	}{
		{"wrong method", http.MethodGet, "127.0.0.1:1", "tok", http.StatusMethodNotAllowed},
		{"remote caller", http.MethodPost, "192.0.2.1:1", "tok", http.StatusForbidden},
		{"bad token", http.MethodPost, "127.0.0.1:1", "nope", http.StatusUnauthorized},
		{"ok", http.MethodPost, "127.0.0.1:1", "tok", http.StatusOK},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, "/shutdown", nil)
		req.RemoteAddr = tc.remote
		req.Header.Set("X-Shutdown-Token", tc.token)
		rec := httptest.NewRecorder()
		h(rec, req)
		if rec.Code != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.want, rec.Code)
		}
	}
}

func TestOpenSinksDefaultsToSQLite(t *testing.T) {
	cfg := config.Default()
	sinks, db, err := openSinks(context.Background(), cfg, t.TempDir())
	if err != nil {
		t.Fatalf("open sinks: %v", err)
	}
	defer sinks.Close()
	if len(sinks) != 1 || sinks[0].Name() != "sqlite" || db == nil {
		t.Fatalf("expected a single sqlite sink, got %d", len(sinks))
	}

	cfg.Export.SQLitePath = ""
	sinks, db, err = openSinks(context.Background(), cfg, t.TempDir())
	if err != nil || len(sinks) != 0 || db != nil {
		t.Fatalf("expected no sinks, got %d %v", len(sinks), err)
	}
}

func TestMockProviderLogsIn(t *testing.T) {
	cfg := config.Default()
	cfg.Platform.Provider = "mock"
	acct := domain.Account{ID: "a", Email: "a@example.com", CredentialRef: "plain:x", Active: true, MaxDailyRequests: 5}

	p, closeFn, err := newProvider(cfg, []domain.Account{acct})
	if err != nil {
		t.Fatalf("provider: %v", err)
	}
	defer closeFn()

	sess, err := p.Open(context.Background(), acct)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if sess.Account.ID != "a" {
		t.Fatalf("unexpected session: %+v", sess.Account)
	}
	if _, ok := p.(*session.HTTPProvider); !ok {
		t.Fatalf("expected an HTTP provider, got %T", p)
	}
}
