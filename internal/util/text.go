package util

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

func CleanText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimSpace(s)
}

// Fold is CleanText plus case folding; the comparison form for keys.
func Fold(s string) string {
	return strings.ToLower(CleanText(s))
}

func NormalizeLocation(loc string) string {
	loc = CleanText(loc)
	if loc == "" {
		return ""
	}

	loc = strings.TrimPrefix(loc, "Location:")
	loc = strings.TrimSpace(loc)

	parts := strings.Split(loc, ",")
	seen := map[string]bool{}
	var out []string
	for _, p := range parts {
		p = CleanText(p)
		if p == "" {
			continue
		}
		k := strings.ToLower(p)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, p)
	}
	return strings.Join(out, ", ")
}

// WorkModel maps the platform's free-form work model plus the remote flag
// to Remote, Hybrid, Onsite or Unknown.
func WorkModel(raw string, remote bool, location string) string {
	blob := strings.ToLower(raw + " " + location)

	switch {
	case strings.Contains(blob, "hybrid"):
		return "Hybrid"
	case remote || strings.Contains(blob, "remote"):
		return "Remote"
	case strings.Contains(blob, "on-site") || strings.Contains(blob, "onsite") || strings.Contains(blob, "on site"):
		return "Onsite"
	default:
		return "Unknown"
	}
}

// HTMLText flattens an HTML fragment to plain text. Input without markup is
// only cleaned.
func HTMLText(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return CleanText(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return CleanText(s)
	}
	doc.Find("br, p, li").Each(func(_ int, sel *goquery.Selection) {
		sel.AppendHtml(" ")
	})
	return CleanText(doc.Text())
}
