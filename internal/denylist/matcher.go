// Package denylist implements the three pattern families:
// generic field patterns (substring/regex/domain), domain patterns
// matched against extracted hostnames, and publisher substring patterns.
package denylist

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/dataset-commons/dc-pipeline/internal/model"
)

// Matcher evaluates a model.Denylist against a Target's haystack.
type Matcher struct {
	dl           model.Denylist
	compiledRegex map[string]*regexp.Regexp
}

// NewMatcher compiles regex patterns up front so Match is allocation-
// light and never returns a regex compile error at match time.
func NewMatcher(dl model.Denylist) (*Matcher, error) {
	m := &Matcher{dl: dl, compiledRegex: map[string]*regexp.Regexp{}}
	for _, p := range dl.Patterns {
		if p.Type == model.PatternRegex {
			re, err := regexp.Compile(p.Value)
			if err != nil {
				return nil, fmt.Errorf("denylist pattern %q: %w", p.Value, err)
			}
			m.compiledRegex[p.Value] = re
		}
	}
	return m, nil
}

// fieldValue extracts a named field's string value from a target for
// generic pattern matching. Unknown field names yield "".
func fieldValue(t *model.Target, field string) string {
	switch field {
	case "id":
		return t.ID
	case "name":
		return t.Name
	case "publisher":
		return t.Publisher
	case "evidence_url":
		return t.LicenseEvidence.URL
	case "spdx_hint":
		return t.LicenseEvidence.SPDXHint
	default:
		return ""
	}
}

// urlFields returns every URL-bearing field on the target, for domain
// pattern matching.
func urlFields(t *model.Target) []string {
	urls := append([]string{}, t.Download.URLList()...)
	if t.LicenseEvidence.URL != "" {
		urls = append(urls, t.LicenseEvidence.URL)
	}
	return urls
}

// Match runs every pattern family against the target and returns all
// hits (a hard_red hit anywhere dominates the final bucket decision).
func (m *Matcher) Match(t *model.Target) []model.Hit {
	var hits []model.Hit

	for _, p := range m.dl.Patterns {
		for _, field := range p.Fields {
			val := fieldValue(t, field)
			if val == "" {
				continue
			}
			matched := false
			switch p.Type {
			case model.PatternSubstring:
				matched = strings.Contains(strings.ToLower(val), strings.ToLower(p.Value))
			case model.PatternRegex:
				if re := m.compiledRegex[p.Value]; re != nil {
					matched = re.MatchString(val)
				}
			case model.PatternDomain:
				matched = domainMatches(extractHost(val), p.Value)
			}
			if matched {
				hits = append(hits, model.Hit{
					RuleID:   fmt.Sprintf("denylist.%s.%s", p.Type, p.Value),
					RuleType: "denylist_pattern",
					Severity: p.Severity,
					Field:    field,
					Pattern:  p.Value,
					Reason:   fmt.Sprintf("%s pattern %q matched field %q", p.Type, p.Value, field),
					Link:     p.Link,
				})
			}
		}
	}

	for _, dp := range m.dl.DomainPatterns {
		for _, u := range urlFields(t) {
			host := extractHost(u)
			if host == "" {
				continue
			}
			if domainMatches(host, dp.Domain) {
				hits = append(hits, model.Hit{
					RuleID:   fmt.Sprintf("denylist.domain.%s", dp.Domain),
					RuleType: "denylist_domain",
					Severity: dp.Severity,
					Field:    "url",
					Pattern:  dp.Domain,
					Reason:   fmt.Sprintf("host %q matches denylisted domain %q", host, dp.Domain),
					Link:     dp.Link,
				})
				break
			}
		}
	}

	if t.Publisher != "" {
		for _, pp := range m.dl.PublisherPatterns {
			if strings.Contains(strings.ToLower(t.Publisher), strings.ToLower(pp.Publisher)) {
				hits = append(hits, model.Hit{
					RuleID:   fmt.Sprintf("denylist.publisher.%s", pp.Publisher),
					RuleType: "denylist_publisher",
					Severity: pp.Severity,
					Field:    "publisher",
					Pattern:  pp.Publisher,
					Reason:   fmt.Sprintf("publisher %q matches denylisted publisher %q", t.Publisher, pp.Publisher),
					Link:     pp.Link,
				})
			}
		}
	}

	return hits
}

func extractHost(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSuffix(u.Hostname(), "."))
}

// domainMatches reports whether host equals domain, or is a subdomain
// of it (dotted-suffix match), case-insensitively.
func domainMatches(host, domain string) bool {
	if host == "" || domain == "" {
		return false
	}
	host = strings.ToLower(host)
	domain = strings.ToLower(domain)
	return host == domain || strings.HasSuffix(host, "."+domain)
}
