// Package source implements the ways an authenticated session can pull
// postings from the platform. Each strategy yields a lazy, finite,
// single-use sequence of raw candidates.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"time"

	"jobsweep-engine/internal/domain"
	"jobsweep-engine/internal/session"
	"jobsweep-engine/internal/util"
)

var (
	// ErrRejected means the platform refused the session outright. The
	// account should not be used again this run.
	ErrRejected = errors.New("platform rejected request")
	// ErrTransient is a failure that may clear on retry.
	ErrTransient = errors.New("transient platform error")
	// ErrThrottled is a transient failure caused by platform rate limiting.
	ErrThrottled = fmt.Errorf("platform throttled: %w", ErrTransient)
)

func IsRejected(err error) bool  { return errors.Is(err, ErrRejected) }
func IsTransient(err error) bool { return errors.Is(err, ErrTransient) }
func IsThrottled(err error) bool { return errors.Is(err, ErrThrottled) }

// Strategy fetches candidates for one task. A retry calls Fetch again; the
// returned sequence is not restartable.
type Strategy interface {
	Method() domain.Method
	Fetch(ctx context.Context, s *session.Session, task domain.Task) iter.Seq2[domain.RawCandidate, error]
}

// Pacer gates every platform call: rate spacing plus budget charge.
type Pacer interface {
	Take(ctx context.Context, s *session.Session) (exhausted bool, err error)
}

type Options struct {
	PageSize        int
	MaxPages        int
	StructuredSorts []int
	// FilterSettle is how long to wait after updating filters before
	// listing, giving the platform time to apply them.
	FilterSettle time.Duration
}

func (o Options) withDefaults() Options {
	if o.PageSize <= 0 {
		o.PageSize = 20
	}
	if o.MaxPages <= 0 {
		o.MaxPages = 3
	}
	if len(o.StructuredSorts) == 0 {
		o.StructuredSorts = []int{0}
	}
	return o
}

// client is the shared request path of every strategy.
type client struct {
	pacer Pacer
	opts  Options
}

type envelope struct {
	Success  bool   `json:"success"`
	ErrorMsg string `json:"errorMsg"`
	Result   struct {
		JobList []jobEntry `json:"jobList"`
	} `json:"result"`
}

type jobEntry struct {
	JobResult struct {
		JobID                util.FlexString `json:"jobId"`
		JobTitle             util.FlexString `json:"jobTitle"`
		JobLocation          util.FlexString `json:"jobLocation"`
		WorkModel            util.FlexString `json:"workModel"`
		SalaryDesc           util.FlexString `json:"salaryDesc"`
		JobSeniority         util.FlexString `json:"jobSeniority"`
		EmploymentType       util.FlexString `json:"employmentType"`
		IsRemote             util.FlexString `json:"isRemote"`
		JobSummary           util.FlexString `json:"jobSummary"`
		CoreResponsibilities util.FlexString `json:"coreResponsibilities"`
		MinYearsOfExperience util.FlexString `json:"minYearsOfExperience"`
		ApplyLink            util.FlexString `json:"applyLink"`
		PublishTimeDesc      util.FlexString `json:"publishTimeDesc"`
	} `json:"jobResult"`
	CompanyResult struct {
		CompanyName util.FlexString `json:"companyName"`
		CompanySize util.FlexString `json:"companySize"`
	} `json:"companyResult"`
}

func (e jobEntry) candidate(page, position int) domain.RawCandidate {
	jr, cr := e.JobResult, e.CompanyResult
	company := string(cr.CompanyName)
	if company == "" {
		company = "Company Not Listed"
	}
	return domain.RawCandidate{
		ExternalID:       string(jr.JobID),
		Title:            string(jr.JobTitle),
		Company:          company,
		CompanySize:      string(cr.CompanySize),
		Location:         string(jr.JobLocation),
		WorkModel:        string(jr.WorkModel),
		Salary:           string(jr.SalaryDesc),
		Seniority:        string(jr.JobSeniority),
		EmploymentType:   string(jr.EmploymentType),
		Remote:           jr.IsRemote.Bool(),
		Summary:          string(jr.JobSummary),
		Responsibilities: string(jr.CoreResponsibilities),
		MinExperience:    string(jr.MinYearsOfExperience),
		ApplyLink:        string(jr.ApplyLink),
		Published:        string(jr.PublishTimeDesc),
		Page:             page,
		Position:         position,
	}
}

// call sends one paced, charged request and decodes the platform envelope.
func (c *client) call(ctx context.Context, s *session.Session, method, path string, body any) (*envelope, error) {
	if _, err := c.pacer.Take(ctx, s); err != nil {
		return nil, err
	}

	req, err := s.NewRequest(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	resp, err := s.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%s %s: %w: %w", method, path, ErrTransient, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%s %s: %w", method, path, ErrThrottled)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%s %s: status %s: %w", method, path, resp.Status, ErrRejected)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%s %s: status %s: %w", method, path, resp.Status, ErrTransient)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%s %s: status %s: %w", method, path, resp.Status, ErrRejected)
	}

	var env envelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, 8<<20)).Decode(&env); err != nil {
		return nil, fmt.Errorf("%s %s: decode: %w: %w", method, path, ErrTransient, err)
	}
	if !env.Success {
		return nil, fmt.Errorf("%s %s: %q: %w", method, path, env.ErrorMsg, ErrRejected)
	}
	return &env, nil
}

// pages walks position-paged listings built by pathFor until a page comes
// back empty, the page ceiling is hit, or want candidates were yielded.
func (c *client) pages(ctx context.Context, s *session.Session, want int, pathFor func(position int) string, yield func(domain.RawCandidate, error) bool) (yielded int, ok bool) {
	for page := 0; page < c.opts.MaxPages; page++ {
		env, err := c.call(ctx, s, http.MethodGet, pathFor(page*c.opts.PageSize), nil)
		if err != nil {
			yield(domain.RawCandidate{}, err)
			return yielded, false
		}
		list := env.Result.JobList
		if len(list) == 0 {
			return yielded, true
		}
		for i, e := range list {
			if e.JobResult.JobTitle == "" {
				continue
			}
			if !yield(e.candidate(page+1, i+1), nil) {
				return yielded, false
			}
			yielded++
		}
		if want > 0 && yielded >= want {
			return yielded, true
		}
	}
	return yielded, true
}

// Set maps methods to strategies.
type Set map[domain.Method]Strategy

// NewSet builds all three strategies over one pacer.
func NewSet(pacer Pacer, opts Options) Set {
	c := &client{pacer: pacer, opts: opts.withDefaults()}
	return Set{
		domain.MethodPaginated:   &Paginated{c: c},
		domain.MethodStructured:  &Structured{c: c},
		domain.MethodTitleFilter: &TitleFilter{c: c},
	}
}
