package util

import (
	"encoding/json"
	"testing"
)

func TestFlexStringDecodesMixedShapes(t *testing.T) {
	var v struct {
		ID     FlexString `json:"id"`
		Tags   FlexString `json:"tags"`
		Remote FlexString `json:"remote"`
		Empty  FlexString `json:"empty"`
		Title  FlexString `json:"title"`
	}
	body := `{"id": 1234567890, "tags": ["Go", null, "Kafka"], "remote": true, "empty": null, "title": "SRE"}`
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v.ID != "1234567890" {
		t.Fatalf("expected literal id, got %q", v.ID)
	}
	if v.Tags != "Go | Kafka" {
		t.Fatalf("expected joined tags, got %q", v.Tags)
	}
	if !v.Remote.Bool() || v.Empty != "" || v.Title != "SRE" {
		t.Fatalf("unexpected decode: %+v", v)
	}
}

func TestHTMLText(t *testing.T) {
	got := HTMLText("<p>Build <b>fast</b> systems</p><ul><li>Go</li><li>SQL</li></ul>")
	if got != "Build fast systems Go SQL" {
		t.Fatalf("unexpected text: %q", got)
	}
	if got := HTMLText("  plain  text "); got != "plain text" {
		t.Fatalf("unexpected plain text: %q", got)
	}
}

func TestWorkModel(t *testing.T) {
	if got := WorkModel("", true, "Austin, TX"); got != "Remote" {
		t.Fatalf("expected Remote, got %s", got)
	}
	if got := WorkModel("Hybrid", false, ""); got != "Hybrid" {
		t.Fatalf("expected Hybrid, got %s", got)
	}
	if got := WorkModel("", false, ""); got != "Unknown" {
		t.Fatalf("expected Unknown, got %s", got)
	}
}

func TestNormalizeLocation(t *testing.T) {
	if got := NormalizeLocation("Location: Austin,  TX, austin"); got != "Austin, TX" {
		t.Fatalf("unexpected location: %q", got)
	}
}
