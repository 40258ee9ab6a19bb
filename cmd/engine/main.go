package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/sirupsen/logrus"

	"jobsweep-engine/internal/config"
	"jobsweep-engine/internal/events"
	"jobsweep-engine/internal/httpapi"
	"jobsweep-engine/internal/logging"
	"jobsweep-engine/internal/runs"
	"jobsweep-engine/internal/scheduler"
	"jobsweep-engine/internal/store"
)

type options struct {
	configPath   string
	accountsPath string
	serve        bool
	out          string
	req          runs.Request
}

func parseFlags() options {
	var o options
	flag.StringVar(&o.configPath, "config", "", "config file (default <data_dir>/config.yml)")
	flag.StringVar(&o.accountsPath, "accounts", "", "accounts file (overrides accounts_file)")
	flag.IntVar(&o.req.Target, "target", 0, "postings to collect (overrides run.target)")
	flag.IntVar(&o.req.Concurrency, "concurrency", 0, "accounts to drive at once; 0 sizes from -mode")
	flag.StringVar(&o.req.Mode, "mode", "", "conservative | balanced | aggressive | hybrid")
	flag.StringVar(&o.req.Keyword, "keyword", "", "keep only postings mentioning this keyword")
	flag.StringVar(&o.req.Category, "category", "", "job category to prefer")
	flag.StringVar(&o.req.Deadline, "deadline", "", "stop scheduling after this long, e.g. 20m")
	flag.BoolVar(&o.serve, "serve", false, "serve the HTTP API instead of a single run")
	flag.StringVar(&o.out, "out", "", "write collected postings as JSON to this file")
	flag.Parse()
	return o
}

func main() {
	if err := run(parseFlags()); err != nil {
		logrus.Fatalf("[engine] %v", err)
	}
}

func run(o options) error {
	dataDir := config.DataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return err
	}

	userCfgPath := o.configPath
	if userCfgPath == "" {
		p, err := config.EnsureUserConfig(dataDir, filepath.Join("config", "config.yml"))
		if err != nil {
			return fmt.Errorf("config bootstrap failed: %w", err)
		}
		userCfgPath = p
	}
	loadCfg := func() (config.Config, error) {
		cfg, err := config.Load(userCfgPath)
		if err != nil {
			return cfg, err
		}
		cfg, vr := config.NormalizeAndValidate(cfg)
		for _, w := range vr.Warnings {
			logrus.Warnf("[config] %s", w)
		}
		if !vr.OK() {
			return cfg, fmt.Errorf("invalid config %s: %v", userCfgPath, vr.Errors)
		}
		return cfg, nil
	}
	cfg, err := loadCfg()
	if err != nil {
		return err
	}
	logging.Setup(cfg.App.LogLevel, cfg.App.LogFormat)
	log := logging.For("engine")

	lock := flock.New(filepath.Join(dataDir, "jobsweep.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("lock data dir: %w", err)
	}
	if !locked {
		return errors.New("another engine is using " + dataDir)
	}
	defer lock.Unlock()

	accountsPath := o.accountsPath
	if accountsPath == "" {
		accountsPath = config.ResolvePath(dataDir, cfg.AccountsFile)
	}
	accts, err := config.LoadAccounts(accountsPath, cfg)
	if err != nil {
		if len(accts) == 0 {
			return err
		}
		log.Warnf("[engine] some accounts were skipped: %v", err)
	}
	log.Infof("[engine] loaded %d accounts from %s", len(accts), accountsPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, closeProvider, err := newProvider(cfg, accts)
	if err != nil {
		return err
	}
	defer closeProvider()

	sinks, db, err := openSinks(ctx, cfg, dataDir)
	if err != nil {
		return err
	}
	defer func() {
		if err := sinks.Close(); err != nil {
			log.Warnf("[engine] close sinks: %v", err)
		}
	}()

	var cfgVal atomic.Value
	cfgVal.Store(cfg)
	hub := events.NewHub()
	engine := &runs.Engine{
		Settings:      func() config.Config { return cfgVal.Load().(config.Config) },
		Accounts:      accts,
		Provider:      provider,
		Events:        hub,
		ProgressEvery: 2 * time.Second,
	}
	mgr := runs.NewManager(engine, sinks)

	if db != nil && cfg.Export.Retention > 0 {
		go scheduler.Every(ctx, 24*time.Hour, "store:cleanup", func(ctx context.Context) error {
			n, err := store.CleanupOldJobs(ctx, db.Pool, cfg.Export.Retention, time.Now())
			if err == nil && n > 0 {
				log.Infof("[engine] pruned %d stored jobs", n)
			}
			return err
		})
	}

	if o.serve {
		deps := httpapi.Deps{
			Hub:         hub,
			Runs:        mgr,
			CfgVal:      &cfgVal,
			UserCfgPath: userCfgPath,
			LoadCfg:     loadCfg,
		}
		if db != nil {
			deps.DB = db.Pool
		}
		return serve(ctx, cfg, dataDir, deps)
	}
	return runOnce(ctx, mgr, o)
}

// runOnce drives a single run to completion. The first interrupt stops
// scheduling; collection in flight gets a grace period before it is
// cancelled.
func runOnce(ctx context.Context, mgr *runs.Manager, o options) error {
	log := logging.For("engine")
	r, err := mgr.Start(ctx, o.req)
	if err != nil {
		return err
	}
	st := r.Status()
	log.Infof("[engine] run %s started target=%d concurrency=%d", r.ID, st.Params.Target, st.Params.Concurrency)

	select {
	case <-r.Done():
	case <-ctx.Done():
		log.Warnf("[engine] interrupted, stopping run %s", r.ID)
		grace, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		mgr.Close(grace)
		cancel()
	}

	sum, err := r.Wait(context.Background())
	if err != nil && sum.RunID == "" {
		return err
	}
	if err != nil {
		log.Errorf("[engine] export incomplete: %v", err)
	}
	if sum.Partial() {
		log.Warnf("[engine] run ended %s with %d of %d postings", sum.Outcome, sum.TotalCollected, sum.Target)
	}

	if o.out != "" {
		if err := writeRecords(o.out, r); err != nil {
			return err
		}
		log.Infof("[engine] wrote %s", o.out)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(sum)
}

func serve(ctx context.Context, cfg config.Config, dataDir string, deps httpapi.Deps) error {
	log := logging.For("engine")

	token, err := randomToken(16)
	if err != nil {
		return err
	}
	tokenPath := filepath.Join(dataDir, "shutdown.token")
	if err := os.WriteFile(tokenPath, []byte(token), 0o600); err != nil {
		return fmt.Errorf("write shutdown token: %w", err)
	}
	defer os.Remove(tokenPath)

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.App.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	mux := httpapi.NewMux(deps)
	srv := &http.Server{ReadHeaderTimeout: 5 * time.Second}
	mux.HandleFunc("/shutdown", shutdownHandler(token, srv))
	srv.Handler = httpapi.Chain(mux, httpapi.RequestID, httpapi.Recover, httpapi.AccessLog, httpapi.Cors)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	log.Infof("[engine] listening on http://%s", addr)

	select {
	case err = <-errCh:
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = srv.Shutdown(shutCtx)
		cancel()
	}
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}

	grace, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	deps.Runs.Close(grace)
	return err
}
