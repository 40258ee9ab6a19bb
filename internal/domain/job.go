package domain

import "time"

// Method names a job source strategy.
type Method string

const (
	MethodPaginated   Method = "paginated"
	MethodStructured  Method = "structured"
	MethodTitleFilter Method = "title_filter"
)

func (m Method) Valid() bool {
	switch m {
	case MethodPaginated, MethodStructured, MethodTitleFilter:
		return true
	}
	return false
}

// Task is one unit of collection work handed to a single account.
type Task struct {
	ID       int64    `json:"id"`
	Category Category `json:"category,omitempty"`
	Keyword  string   `json:"keyword,omitempty"`
	Method   Method   `json:"method"`
	Want     int      `json:"want"`
	Attempt  int      `json:"attempt"`
}

// RawCandidate is a posting as the platform returned it, before
// normalization or admission.
type RawCandidate struct {
	ExternalID       string
	Title            string
	Company          string
	CompanySize      string
	Location         string
	WorkModel        string
	Salary           string
	Seniority        string
	EmploymentType   string
	Remote           bool
	Summary          string
	Responsibilities string
	MinExperience    string
	ApplyLink        string
	Published        string
	Page             int
	Position         int
}

type Compensation struct {
	Min    int    `json:"min,omitempty"`
	Max    int    `json:"max,omitempty"`
	Period string `json:"period,omitempty"`
	Raw    string `json:"raw,omitempty"`
}

func (c Compensation) Known() bool { return c.Min > 0 || c.Max > 0 }

type Attribution struct {
	AccountID    string   `json:"account_id"`
	AccountEmail string   `json:"account_email"`
	Method       Method   `json:"method"`
	Category     Category `json:"category,omitempty"`
}

// JobRecord is an admitted, normalized posting.
type JobRecord struct {
	Key            string       `json:"key"`
	ExternalID     string       `json:"external_id,omitempty"`
	Title          string       `json:"title"`
	Organization   string       `json:"organization"`
	CompanySize    string       `json:"company_size,omitempty"`
	Location       string       `json:"location"`
	WorkModel      string       `json:"work_model"`
	Seniority      string       `json:"seniority,omitempty"`
	EmploymentType string       `json:"employment_type,omitempty"`
	Compensation   Compensation `json:"compensation"`
	Summary        string       `json:"summary,omitempty"`
	ApplyLink      string       `json:"apply_link,omitempty"`
	Published      string       `json:"published,omitempty"`
	Attribution    Attribution  `json:"attribution"`
	CollectedAt    time.Time    `json:"collected_at"`
}
