package main

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"jobsweep-engine/internal/config"
	"jobsweep-engine/internal/domain"
	"jobsweep-engine/internal/export"
	"jobsweep-engine/internal/fakeplatform"
	"jobsweep-engine/internal/httpapi"
	"jobsweep-engine/internal/runs"
	"jobsweep-engine/internal/secrets"
	"jobsweep-engine/internal/session"
	"jobsweep-engine/internal/store"
)

// newProvider returns the session provider for platform.provider. The mock
// provider serves a generated catalog from an in-process listener.
func newProvider(cfg config.Config, accts []domain.Account) (session.Provider, func(), error) {
	p := &session.HTTPProvider{
		BaseURL:        cfg.Platform.BaseURL,
		UserAgent:      cfg.Platform.UserAgent,
		Timeout:        cfg.Platform.Timeout,
		OnboardingStep: cfg.Platform.OnboardingStep,
		Resolve:        secrets.Resolve,
	}
	if cfg.Platform.Provider != "mock" {
		return p, func() {}, nil
	}

	fake := fakeplatform.New(fakeplatform.Catalog(max(2000, cfg.Run.Target*3), time.Now().UnixNano()), true)
	fake.PageSize = cfg.Source.PageSize
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, nil, err
	}
	srv := &http.Server{Handler: fake, ReadHeaderTimeout: 5 * time.Second}
	go func() { _ = srv.Serve(ln) }()
	logrus.Infof("[engine] mock platform on http://%s serving %d accounts", ln.Addr(), len(accts))

	p.BaseURL = "http://" + ln.Addr().String()
	p.OnboardingStep = 0
	p.Resolve = func(ref string) (string, error) {
		if pw, err := secrets.Resolve(ref); err == nil {
			return pw, nil
		}
		return "mock", nil
	}
	return p, func() { _ = srv.Close() }, nil
}

// openSinks opens every configured export target. The returned store is
// the SQLite database, or nil when sqlite_path is empty.
func openSinks(ctx context.Context, cfg config.Config, dataDir string) (export.Fanout, *store.DB, error) {
	var (
		sinks export.Fanout
		db    *store.DB
	)
	if cfg.Export.SQLitePath != "" {
		s, err := export.OpenSQLite(ctx, config.ResolvePath(dataDir, cfg.Export.SQLitePath))
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, s)
		db = s.DB()
	}
	if cfg.Export.KafkaBroker != "" {
		sinks = append(sinks, export.NewKafkaSink(cfg.Export.KafkaBroker, cfg.Export.KafkaTopic))
	}
	if cfg.Export.PostgresDSN != "" {
		pg, err := export.OpenPostgres(ctx, cfg.Export.PostgresDSN, cfg.Export.PostgresSchema, 4)
		if err != nil {
			_ = sinks.Close()
			return nil, nil, err
		}
		sinks = append(sinks, pg)
	}
	return sinks, db, nil
}

func writeRecords(path string, r *runs.Run) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r.Records(0)); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// shutdownHandler lets a local supervisor stop the engine with the token
// written next to the database.
func shutdownHandler(token string, srv *http.Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			httpapi.WriteError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
			return
		}

		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		if host != "127.0.0.1" && host != "::1" && host != "localhost" {
			httpapi.WriteError(w, r, http.StatusForbidden, "forbidden", "forbidden")
			return
		}

		got := r.Header.Get("X-Shutdown-Token")
		if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			httpapi.WriteError(w, r, http.StatusUnauthorized, "unauthorized", "unauthorized")
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("shutting down\n"))

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logrus.Warnf("[engine] shutdown: %v", err)
			}
		}()
	}
}
