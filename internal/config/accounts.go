package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"jobsweep-engine/internal/domain"
)

// AccountEntry is one record of the accounts file. Both the native field
// names (id, credential, affinity) and the legacy JSON export names (name,
// password, job_title) are accepted; JSON is valid YAML so either format
// loads through the same decoder.
type AccountEntry struct {
	ID               string        `yaml:"id"`
	Name             string        `yaml:"name"`
	Email            string        `yaml:"email"`
	Credential       string        `yaml:"credential"`
	Password         string        `yaml:"password"`
	Affinity         string        `yaml:"affinity"`
	JobTitle         string        `yaml:"job_title"`
	Active           *bool         `yaml:"active"`
	MaxDailyRequests int           `yaml:"max_daily_requests"`
	MinInterval      time.Duration `yaml:"min_interval"`
}

type AccountsFile struct {
	Accounts []AccountEntry `yaml:"accounts"`
}

// AccountError reports a malformed account record. It never aborts loading
// of the remaining records.
type AccountError struct {
	Index  int
	ID     string
	Reason string
}

func (e *AccountError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("accounts[%d] (%s): %s", e.Index, e.ID, e.Reason)
	}
	return fmt.Sprintf("accounts[%d]: %s", e.Index, e.Reason)
}

// LoadAccounts reads the accounts file at path. Valid active records are
// returned; each malformed record produces an *AccountError joined into the
// returned error. A non-nil error with a non-empty slice is a partial load.
func LoadAccounts(path string, cfg Config) ([]domain.Account, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read accounts %s: %w", path, err)
	}

	var af AccountsFile
	if err := yaml.Unmarshal(b, &af); err != nil {
		return nil, fmt.Errorf("parse accounts %s: %w", path, err)
	}
	return BuildAccounts(af.Accounts, cfg)
}

// BuildAccounts converts file entries into accounts, applying run-wide
// defaults for fields an entry leaves unset.
func BuildAccounts(entries []AccountEntry, cfg Config) ([]domain.Account, error) {
	known := map[string]bool{}
	for _, c := range cfg.Categories {
		known[domain.Category(c).Key()] = true
	}

	var (
		out  []domain.Account
		errs []error
		seen = map[string]bool{}
	)
	for i, e := range entries {
		id := strings.TrimSpace(e.ID)
		if id == "" {
			id = strings.TrimSpace(e.Name)
		}
		email := strings.TrimSpace(e.Email)
		if id == "" {
			id = email
		}

		cred := strings.TrimSpace(e.Credential)
		if cred == "" && e.Password != "" {
			cred = "plain:" + e.Password
		}

		affinity := domain.Category(strings.TrimSpace(e.Affinity))
		if affinity.Empty() {
			affinity = domain.Category(strings.TrimSpace(e.JobTitle))
		}

		bad := func(reason string) {
			errs = append(errs, &AccountError{Index: i, ID: id, Reason: reason})
		}
		switch {
		case id == "":
			bad("missing id, name and email")
			continue
		case email == "" || !strings.Contains(email, "@"):
			bad("missing or malformed email")
			continue
		case cred == "":
			bad("missing credential")
			continue
		case e.MaxDailyRequests < 0:
			bad("max_daily_requests must be > 0")
			continue
		case e.MinInterval < 0:
			bad("min_interval must be >= 0")
			continue
		case seen[id]:
			bad("duplicate id")
			continue
		case len(known) > 0 && !affinity.Empty() && !known[affinity.Key()]:
			bad(fmt.Sprintf("unknown affinity %q", affinity))
			continue
		}
		seen[id] = true

		if e.Active != nil && !*e.Active {
			continue
		}

		maxDaily := e.MaxDailyRequests
		if maxDaily == 0 {
			maxDaily = cfg.Rate.MaxDailyRequests
		}
		interval := e.MinInterval
		if interval == 0 {
			interval = cfg.Rate.MinInterval
		}

		out = append(out, domain.Account{
			ID:               id,
			Email:            email,
			CredentialRef:    cred,
			Affinity:         affinity,
			Active:           true,
			MaxDailyRequests: maxDaily,
			MinInterval:      interval,
		})
	}
	return out, errors.Join(errs...)
}
