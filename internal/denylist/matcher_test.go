package denylist

import (
	"testing"

	"github.com/dataset-commons/dc-pipeline/internal/model"
)

func TestHardRedSubstringMatch(t *testing.T) {
	dl := model.Denylist{
		Patterns: []model.Pattern{
			{Type: model.PatternSubstring, Value: "sci-hub", Fields: []string{"id"}, Severity: model.SeverityHardRed},
		},
	}
	m, err := NewMatcher(dl)
	if err != nil {
		t.Fatal(err)
	}
	target := &model.Target{ID: "sci-hub-mirror"}
	hits := m.Match(target)
	if len(hits) != 1 {
		t.Fatalf("expected one hit, got %d", len(hits))
	}
	if !model.AnyHardRed(hits) {
		t.Fatalf("expected hard_red severity")
	}
	if hits[0].RuleID != "denylist.substring.sci-hub" {
		t.Fatalf("unexpected rule id: %s", hits[0].RuleID)
	}
}

func TestDomainPatternSubdomainMatch(t *testing.T) {
	dl := model.Denylist{
		DomainPatterns: []model.DomainPattern{
			{Domain: "blocked.example", Severity: model.SeverityForceYellow},
		},
	}
	m, _ := NewMatcher(dl)
	target := &model.Target{
		Download: model.DownloadPlan{URL: "https://mirror.blocked.example/data.zip"},
	}
	hits := m.Match(target)
	if len(hits) != 1 {
		t.Fatalf("expected subdomain to match, got %d hits", len(hits))
	}
}

func TestPublisherPatternNoMatch(t *testing.T) {
	dl := model.Denylist{
		PublisherPatterns: []model.PublisherPattern{
			{Publisher: "BadCo", Severity: model.SeverityHardRed},
		},
	}
	m, _ := NewMatcher(dl)
	target := &model.Target{Publisher: "GoodCo Research"}
	if hits := m.Match(target); len(hits) != 0 {
		t.Fatalf("expected no hits, got %+v", hits)
	}
}
