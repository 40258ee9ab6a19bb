package source

import (
	"context"
	"fmt"
	"iter"
	"net/http"
	"time"

	"jobsweep-engine/internal/domain"
	"jobsweep-engine/internal/session"
	"jobsweep-engine/internal/util"
)

const (
	landingPath = "/swan/recommend/landing/jobs"
	listPath    = "/swan/recommend/list/jobs"
	filterPath  = "/swan/filter/update/filter-v2"
)

// Paginated walks the personalized landing feed page by page.
type Paginated struct{ c *client }

func (p *Paginated) Method() domain.Method { return domain.MethodPaginated }

func (p *Paginated) Fetch(ctx context.Context, s *session.Session, task domain.Task) iter.Seq2[domain.RawCandidate, error] {
	return func(yield func(domain.RawCandidate, error) bool) {
		p.c.pages(ctx, s, task.Want, func(position int) string {
			if position == 0 {
				return landingPath
			}
			return fmt.Sprintf("%s?position=%d", landingPath, position)
		}, yield)
	}
}

// Structured queries the list endpoint once per configured sort condition.
type Structured struct{ c *client }

func (st *Structured) Method() domain.Method { return domain.MethodStructured }

func (st *Structured) Fetch(ctx context.Context, s *session.Session, task domain.Task) iter.Seq2[domain.RawCandidate, error] {
	return func(yield func(domain.RawCandidate, error) bool) {
		total := 0
		for _, sort := range st.c.opts.StructuredSorts {
			n, ok := st.c.pages(ctx, s, task.Want-total, listPathFor(sort), yield)
			total += n
			if !ok || (task.Want > 0 && total >= task.Want) {
				return
			}
		}
	}
}

func listPathFor(sort int) func(position int) string {
	return func(position int) string {
		return fmt.Sprintf("%s?refresh=true&sortCondition=%d&position=%d", listPath, sort, position)
	}
}

// TitleFilter narrows the account's feed to a job title, then lists it.
// The title is the task's category, else the account's affinity; with
// neither the filter update is skipped.
type TitleFilter struct{ c *client }

func (tf *TitleFilter) Method() domain.Method { return domain.MethodTitleFilter }

type filterLocation struct {
	City        string `json:"city"`
	RadiusRange int    `json:"radiusRange"`
}

type taxonomy struct {
	Title      string `json:"title"`
	TaxonomyID string `json:"taxonomyId"`
}

type filterPayload struct {
	Filters struct {
		JobTitle        string           `json:"jobTitle"`
		JobTaxonomyList []taxonomy       `json:"jobTaxonomyList"`
		JobTypes        []int            `json:"jobTypes"`
		WorkModel       []int            `json:"workModel"`
		Locations       []filterLocation `json:"locations"`
		Seniority       []int            `json:"seniority"`
	} `json:"filters"`
}

func newFilterPayload(title string) filterPayload {
	var p filterPayload
	p.Filters.JobTitle = title
	p.Filters.JobTaxonomyList = []taxonomy{{Title: title, TaxonomyID: "00-00-00"}}
	p.Filters.JobTypes = []int{1}
	p.Filters.WorkModel = []int{1, 2, 3}
	p.Filters.Locations = []filterLocation{{City: "Within US", RadiusRange: 25}}
	p.Filters.Seniority = []int{5, 6}
	return p
}

func (tf *TitleFilter) Fetch(ctx context.Context, s *session.Session, task domain.Task) iter.Seq2[domain.RawCandidate, error] {
	return func(yield func(domain.RawCandidate, error) bool) {
		title := task.Category
		if title.Empty() {
			title = s.Account.Affinity
		}
		if !title.Empty() {
			if _, err := tf.c.call(ctx, s, http.MethodPost, filterPath, newFilterPayload(util.CleanText(string(title)))); err != nil {
				yield(domain.RawCandidate{}, err)
				return
			}
			if !sleepCtx(ctx, tf.c.opts.FilterSettle) {
				yield(domain.RawCandidate{}, ctx.Err())
				return
			}
		}
		tf.c.pages(ctx, s, task.Want, listPathFor(1), yield)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
