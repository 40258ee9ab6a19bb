package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		Port      int    `yaml:"port"`
		DataDir   string `yaml:"data_dir"`
		LogLevel  string `yaml:"log_level"`
		LogFormat string `yaml:"log_format"`
	} `yaml:"app"`

	Platform struct {
		BaseURL        string        `yaml:"base_url"`
		Provider       string        `yaml:"provider"` // http | mock
		UserAgent      string        `yaml:"user_agent"`
		Timeout        time.Duration `yaml:"timeout"`
		OnboardingStep time.Duration `yaml:"onboarding_step"`
	} `yaml:"platform"`

	Run struct {
		Target              int           `yaml:"target"`
		Concurrency         int           `yaml:"concurrency"`
		Mode                string        `yaml:"mode"` // conservative | balanced | aggressive | hybrid
		Keyword             string        `yaml:"keyword"`
		Category            string        `yaml:"category"`
		Deadline            time.Duration `yaml:"deadline"`
		EmptyAffinityPolicy string        `yaml:"empty_affinity_policy"` // complete | fallback
	} `yaml:"run"`

	Rate struct {
		MinInterval      time.Duration `yaml:"min_interval"`
		MaxDailyRequests int           `yaml:"max_daily_requests"`
	} `yaml:"rate"`

	Retry struct {
		MaxRetries int           `yaml:"max_retries"`
		BaseDelay  time.Duration `yaml:"base_delay"`
		MaxDelay   time.Duration `yaml:"max_delay"`
	} `yaml:"retry"`

	Source struct {
		PageSize        int           `yaml:"page_size"`
		MaxPages        int           `yaml:"max_pages"`
		StructuredSorts []int         `yaml:"structured_sorts"`
		FilterSettle    time.Duration `yaml:"filter_settle"`
	} `yaml:"source"`

	Filters struct {
		RemoteOK       bool     `yaml:"remote_ok"`
		LocationsAllow []string `yaml:"locations_allow"`
		LocationsBlock []string `yaml:"locations_block"`
	} `yaml:"filters"`

	Dedup struct {
		Backend   string        `yaml:"backend"` // memory | redis
		RedisAddr string        `yaml:"redis_addr"`
		Prefix    string        `yaml:"prefix"`
		TTL       time.Duration `yaml:"ttl"`
	} `yaml:"dedup"`

	Export struct {
		SQLitePath     string `yaml:"sqlite_path"`
		KafkaBroker    string `yaml:"kafka_broker"`
		KafkaTopic     string `yaml:"kafka_topic"`
		PostgresDSN    string `yaml:"postgres_dsn"`
		PostgresSchema string `yaml:"postgres_schema"`
		// Retention prunes locally stored jobs older than this; zero keeps
		// everything.
		Retention time.Duration `yaml:"retention"`
	} `yaml:"export"`

	Categories   []string `yaml:"categories"`
	AccountsFile string   `yaml:"accounts_file"`
}

// Default returns the built-in settings that a config file overrides.
func Default() Config {
	var cfg Config
	cfg.App.Port = 38471
	cfg.App.DataDir = "."
	cfg.App.LogLevel = "info"
	cfg.App.LogFormat = "text"

	cfg.Platform.BaseURL = "https://jobright.ai"
	cfg.Platform.Provider = "http"
	cfg.Platform.UserAgent = "Mozilla/5.0 (iPhone; CPU iPhone OS 18_6 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/26.0 Mobile/15E148 Safari/604.1"
	cfg.Platform.Timeout = 15 * time.Second
	cfg.Platform.OnboardingStep = 500 * time.Millisecond

	cfg.Run.Target = 100
	cfg.Run.Mode = "balanced"
	cfg.Run.EmptyAffinityPolicy = "complete"

	cfg.Rate.MinInterval = time.Second
	cfg.Rate.MaxDailyRequests = 100

	cfg.Retry.MaxRetries = 2
	cfg.Retry.BaseDelay = 500 * time.Millisecond
	cfg.Retry.MaxDelay = 5 * time.Second

	cfg.Source.PageSize = 20
	cfg.Source.MaxPages = 3
	cfg.Source.StructuredSorts = []int{0}
	cfg.Source.FilterSettle = 2 * time.Second

	cfg.Filters.RemoteOK = true

	cfg.Dedup.Backend = "memory"
	cfg.Dedup.Prefix = "jobsweep:seen:"
	cfg.Dedup.TTL = 24 * time.Hour

	cfg.Export.SQLitePath = "jobsweep.db"
	cfg.Export.PostgresSchema = "public"
	cfg.AccountsFile = "accounts.yml"
	return cfg
}

func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	err = yaml.Unmarshal(b, &cfg)
	return cfg, err
}
