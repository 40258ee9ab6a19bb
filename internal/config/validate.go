package config

import (
	"fmt"
	"strings"
	"time"
)

type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (v *Validation) addErr(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}
func (v *Validation) addWarn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}
func (v Validation) OK() bool { return len(v.Errors) == 0 }

// NormalizeAndValidate returns a normalized copy plus everything Validate
// would reject and a set of non-fatal warnings.
func NormalizeAndValidate(cfg Config) (Config, Validation) {
	var out = cfg
	var res Validation

	trimList := func(xs []string) []string {
		seen := map[string]bool{}
		var ys []string
		for _, x := range xs {
			x = strings.TrimSpace(x)
			if x == "" {
				continue
			}
			key := strings.ToLower(x)
			if seen[key] {
				continue
			}
			seen[key] = true
			ys = append(ys, x)
		}
		return ys
	}

	out.Filters.LocationsAllow = trimList(out.Filters.LocationsAllow)
	out.Filters.LocationsBlock = trimList(out.Filters.LocationsBlock)
	out.Categories = trimList(out.Categories)
	out.Platform.BaseURL = strings.TrimRight(strings.TrimSpace(out.Platform.BaseURL), "/")
	out.Run.Mode = strings.ToLower(strings.TrimSpace(out.Run.Mode))
	out.Run.Keyword = strings.TrimSpace(out.Run.Keyword)

	if err := Validate(out); err != nil {
		for _, line := range strings.Split(err.Error(), "\n- ")[1:] {
			res.addErr("%s", line)
		}
	}

	if out.Rate.MinInterval > 0 && out.Rate.MinInterval < 500*time.Millisecond {
		res.addWarn("rate.min_interval is very low (%s) and may get accounts throttled.", out.Rate.MinInterval)
	}
	if out.Run.Concurrency > 80 {
		res.addWarn("run.concurrency=%d exceeds the 80-account ceiling and will be clamped.", out.Run.Concurrency)
	}
	if out.Run.Category != "" && len(out.Categories) > 0 && !containsFold(out.Categories, out.Run.Category) {
		res.addWarn("run.category %q is not in categories; no account will have affinity for it.", out.Run.Category)
	}
	if out.Retry.MaxDelay > 0 && out.Retry.BaseDelay > out.Retry.MaxDelay {
		res.addWarn("retry.base_delay (%s) exceeds retry.max_delay (%s).", out.Retry.BaseDelay, out.Retry.MaxDelay)
	}
	if !out.Filters.RemoteOK && len(out.Filters.LocationsAllow) == 0 {
		res.addWarn("remote_ok is false and locations_allow is empty; you may filter out almost everything.")
	}

	blockSet := map[string]bool{}
	for _, b := range out.Filters.LocationsBlock {
		blockSet[strings.ToLower(b)] = true
	}
	for _, a := range out.Filters.LocationsAllow {
		if blockSet[strings.ToLower(a)] {
			res.addWarn("location appears in both allow and block: %q", a)
		}
	}

	return out, res
}

func containsFold(xs []string, s string) bool {
	for _, x := range xs {
		if strings.EqualFold(strings.TrimSpace(x), strings.TrimSpace(s)) {
			return true
		}
	}
	return false
}
