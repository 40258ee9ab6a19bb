package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

func Validate(cfg Config) error {
	var errs []string

	if cfg.App.Port <= 0 || cfg.App.Port > 65535 {
		errs = append(errs, "app.port must be 1..65535")
	}
	switch cfg.Platform.Provider {
	case "http", "mock":
	default:
		errs = append(errs, fmt.Sprintf("platform.provider must be http or mock, got %q", cfg.Platform.Provider))
	}
	if cfg.Platform.Provider == "http" && strings.TrimSpace(cfg.Platform.BaseURL) == "" {
		errs = append(errs, "platform.base_url is required when platform.provider=http")
	}
	if cfg.Run.Target <= 0 {
		errs = append(errs, "run.target must be > 0")
	}
	if cfg.Run.Concurrency < 0 {
		errs = append(errs, "run.concurrency must be >= 0 (0 picks a value from run.mode)")
	}
	switch cfg.Run.Mode {
	case "conservative", "balanced", "aggressive", "hybrid":
	default:
		errs = append(errs, fmt.Sprintf("run.mode %q is not one of conservative, balanced, aggressive, hybrid", cfg.Run.Mode))
	}
	switch cfg.Run.EmptyAffinityPolicy {
	case "complete", "fallback":
	default:
		errs = append(errs, fmt.Sprintf("run.empty_affinity_policy must be complete or fallback, got %q", cfg.Run.EmptyAffinityPolicy))
	}
	if cfg.Rate.MinInterval < 0 {
		errs = append(errs, "rate.min_interval must be >= 0")
	}
	if cfg.Rate.MaxDailyRequests <= 0 {
		errs = append(errs, "rate.max_daily_requests must be > 0")
	}
	if cfg.Retry.MaxRetries < 0 {
		errs = append(errs, "retry.max_retries must be >= 0")
	}
	if cfg.Source.PageSize <= 0 {
		errs = append(errs, "source.page_size must be > 0")
	}
	if cfg.Source.MaxPages <= 0 {
		errs = append(errs, "source.max_pages must be > 0")
	}
	switch cfg.Dedup.Backend {
	case "memory":
	case "redis":
		if strings.TrimSpace(cfg.Dedup.RedisAddr) == "" {
			errs = append(errs, "dedup.redis_addr is required when dedup.backend=redis")
		}
	default:
		errs = append(errs, fmt.Sprintf("dedup.backend must be memory or redis, got %q", cfg.Dedup.Backend))
	}
	if cfg.Export.KafkaBroker != "" && cfg.Export.KafkaTopic == "" {
		errs = append(errs, "export.kafka_topic is required when export.kafka_broker is set")
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n- " + joinLines(errs))
	}
	return nil
}

func SaveAtomic(path string, cfg Config) error {
	if err := Validate(cfg); err != nil {
		return err
	}

	b, err := yaml.Marshal(&cfg)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp := path + ".tmp"
	bak := path + ".bak"

	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}

	_ = os.Remove(bak)
	_ = os.Rename(path, bak)

	return os.Rename(tmp, path)
}

func joinLines(lines []string) string {
	return strings.Join(lines, "\n- ")
}
