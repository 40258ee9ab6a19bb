package domain

import (
	"regexp"
	"strconv"
	"strings"
)

var amountRe = regexp.MustCompile(`\$\s*([\d,]+(?:\.\d+)?)\s*([kKmM])?`)

// ParseCompensation extracts a min/max range from salary text such as
// "$120K/yr - $150K/yr". Raw is always kept; Min/Max stay zero when no
// dollar amount is present.
func ParseCompensation(raw string) Compensation {
	c := Compensation{Raw: strings.TrimSpace(raw)}
	if c.Raw == "" {
		return c
	}

	var vals []int
	for _, m := range amountRe.FindAllStringSubmatch(c.Raw, 2) {
		f, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
		if err != nil {
			continue
		}
		switch strings.ToLower(m[2]) {
		case "k":
			f *= 1_000
		case "m":
			f *= 1_000_000
		}
		vals = append(vals, int(f))
	}
	switch len(vals) {
	case 0:
		return c
	case 1:
		c.Min, c.Max = vals[0], vals[0]
	default:
		c.Min, c.Max = vals[0], vals[1]
		if c.Min > c.Max {
			c.Min, c.Max = c.Max, c.Min
		}
	}

	low := strings.ToLower(c.Raw)
	switch {
	case strings.Contains(low, "/hr") || strings.Contains(low, "hour"):
		c.Period = "hour"
	case strings.Contains(low, "/mo") || strings.Contains(low, "month"):
		c.Period = "month"
	case strings.Contains(low, "/yr") || strings.Contains(low, "year") || strings.Contains(low, "annual"):
		c.Period = "year"
	}
	return c
}
