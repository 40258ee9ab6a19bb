package domain

import (
	"strings"
	"time"
)

// Status is the lifecycle state of an account within one run.
type Status string

const (
	StatusIdle           Status = "idle"
	StatusAuthenticating Status = "authenticating"
	StatusAuthenticated  Status = "authenticated"
	StatusRateLimited    Status = "rate_limited"
	StatusBlocked        Status = "blocked"
	StatusExhausted      Status = "exhausted"
)

// Terminal reports whether no further transition is possible this run.
func (s Status) Terminal() bool {
	return s == StatusBlocked || s == StatusExhausted
}

// Schedulable reports whether an account in this state may receive a task.
func (s Status) Schedulable() bool {
	return s == StatusIdle || s == StatusAuthenticated
}

var transitions = map[Status][]Status{
	StatusIdle:           {StatusAuthenticating, StatusBlocked},
	StatusAuthenticating: {StatusAuthenticated, StatusBlocked},
	StatusAuthenticated:  {StatusRateLimited, StatusBlocked, StatusExhausted},
	StatusRateLimited:    {StatusAuthenticated, StatusBlocked, StatusExhausted},
}

// CanTransition reports whether from -> to is a legal move. Re-entering the
// current non-terminal state is allowed and treated as a no-op.
func CanTransition(from, to Status) bool {
	if from.Terminal() {
		return false
	}
	if from == to {
		return true
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Category is a job-title affinity such as "Software Engineer".
type Category string

// Key is the comparison form: case-folded, whitespace collapsed.
func (c Category) Key() string {
	return strings.ToLower(strings.Join(strings.Fields(string(c)), " "))
}

func (c Category) Empty() bool { return c.Key() == "" }

func (c Category) Matches(o Category) bool {
	return !c.Empty() && c.Key() == o.Key()
}

// Account is the configured, immutable part of an account record. Live
// status and request counters are owned by the accounts store.
type Account struct {
	ID               string        `json:"id"`
	Email            string        `json:"email"`
	CredentialRef    string        `json:"-"`
	Affinity         Category      `json:"affinity,omitempty"`
	Active           bool          `json:"active"`
	MaxDailyRequests int           `json:"max_daily_requests"`
	MinInterval      time.Duration `json:"min_interval,omitempty"`
}
