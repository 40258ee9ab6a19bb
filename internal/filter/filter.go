// Package filter decides which fetched candidates a run keeps.
package filter

import (
	"strings"

	"jobsweep-engine/internal/config"
	"jobsweep-engine/internal/domain"
	"jobsweep-engine/internal/util"
)

// Rules is the per-run view of the filter settings.
type Rules struct {
	Keyword  string
	RemoteOK bool
	Allow    []string
	Block    []string
}

// FromConfig builds rules from the filters section plus the run keyword.
func FromConfig(cfg config.Config, keyword string) Rules {
	return Rules{
		Keyword:  keyword,
		RemoteOK: cfg.Filters.RemoteOK,
		Allow:    cfg.Filters.LocationsAllow,
		Block:    cfg.Filters.LocationsBlock,
	}
}

// Reasons reported by Keep.
const (
	ReasonLocation = "location"
	ReasonKeyword  = "no_keyword_match"
)

// Keep reports whether c passes the location rules and, when a keyword is
// set, mentions it in its title, summary or responsibilities.
func (r Rules) Keep(c domain.RawCandidate) (keep bool, reason string) {
	if !r.passesLocation(c) {
		return false, ReasonLocation
	}
	if !r.matchesKeyword(c) {
		return false, ReasonKeyword
	}
	return true, ""
}

func (r Rules) passesLocation(c domain.RawCandidate) bool {
	loc := util.Fold(c.Location)
	title := util.Fold(c.Title)

	isRemote := c.Remote || strings.Contains(loc, "remote") || strings.Contains(util.Fold(c.WorkModel), "remote")

	// blocklist wins
	for _, b := range r.Block {
		b = util.Fold(b)
		if b == "" {
			continue
		}
		if strings.Contains(loc, b) || strings.Contains(title, b) {
			return false
		}
	}

	if isRemote {
		return r.RemoteOK
	}

	if len(r.Allow) == 0 {
		return true
	}
	for _, a := range r.Allow {
		a = util.Fold(a)
		if a == "" {
			continue
		}
		if strings.Contains(loc, a) {
			return true
		}
	}
	return false
}

func (r Rules) matchesKeyword(c domain.RawCandidate) bool {
	kw := util.Fold(r.Keyword)
	if kw == "" {
		return true
	}
	for _, field := range []string{c.Title, c.Summary, c.Responsibilities} {
		if strings.Contains(util.Fold(field), kw) {
			return true
		}
	}
	return false
}
