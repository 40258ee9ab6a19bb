package filter

import (
	"testing"

	"jobsweep-engine/internal/config"
	"jobsweep-engine/internal/domain"
)

func TestKeywordMatchesAnyTextField(t *testing.T) {
	r := Rules{Keyword: "Kubernetes", RemoteOK: true}

	cases := []struct {
		name string
		c    domain.RawCandidate
		keep bool
	}{
		{"title", domain.RawCandidate{Title: "Kubernetes Engineer"}, true},
		{"summary", domain.RawCandidate{Title: "SRE", Summary: "runs KUBERNETES clusters"}, true},
		{"responsibilities", domain.RawCandidate{Title: "SRE", Responsibilities: "Own kubernetes | on-call"}, true},
		{"miss", domain.RawCandidate{Title: "SRE", Summary: "runs VMs"}, false},
	}
	for _, tc := range cases {
		keep, reason := r.Keep(tc.c)
		if keep != tc.keep {
			t.Fatalf("%s: keep=%v reason=%q", tc.name, keep, reason)
		}
		if !keep && reason != ReasonKeyword {
			t.Fatalf("%s: unexpected reason %q", tc.name, reason)
		}
	}
}

func TestEmptyKeywordKeepsEverything(t *testing.T) {
	r := Rules{RemoteOK: true}
	if keep, _ := r.Keep(domain.RawCandidate{Title: "Anything", Location: "Austin, TX"}); !keep {
		t.Fatal("expected candidate to be kept")
	}
}

func TestLocationRules(t *testing.T) {
	r := Rules{RemoteOK: false, Allow: []string{"Austin"}, Block: []string{"Seattle"}}

	cases := []struct {
		c    domain.RawCandidate
		keep bool
	}{
		{domain.RawCandidate{Title: "SRE", Location: "Austin, TX"}, true},
		{domain.RawCandidate{Title: "SRE", Location: "Denver, CO"}, false},
		{domain.RawCandidate{Title: "SRE", Location: "Seattle, WA"}, false},
		{domain.RawCandidate{Title: "SRE", Location: "Remote, US"}, false},
		{domain.RawCandidate{Title: "SRE", Location: "Austin, TX", Remote: true}, false},
	}
	for _, tc := range cases {
		keep, reason := r.Keep(tc.c)
		if keep != tc.keep {
			t.Fatalf("%+v: keep=%v reason=%q", tc.c, keep, reason)
		}
		if !keep && reason != ReasonLocation {
			t.Fatalf("%+v: unexpected reason %q", tc.c, reason)
		}
	}
}

func TestFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Filters.LocationsBlock = []string{"Mars"}
	r := FromConfig(cfg, "go")
	if r.Keyword != "go" || !r.RemoteOK || len(r.Block) != 1 {
		t.Fatalf("unexpected rules: %+v", r)
	}
}
