package model

// Severity is the escalation level a denylist hit carries.
type Severity string

const (
	SeverityHardRed     Severity = "hard_red"
	SeverityForceYellow Severity = "force_yellow"
)

// PatternType names the matching mode of a generic denylist Pattern.
type PatternType string

const (
	PatternSubstring PatternType = "substring"
	PatternRegex     PatternType = "regex"
	PatternDomain    PatternType = "domain"
)

// Pattern is a generic denylist entry matched against one or more target
// metadata fields (by name, e.g. "id", "name", "publisher").
type Pattern struct {
	Type     PatternType `json:"type" yaml:"type"`
	Value    string      `json:"value" yaml:"value"`
	Fields   []string    `json:"fields" yaml:"fields"`
	Severity Severity    `json:"severity" yaml:"severity"`
	Link     string      `json:"link,omitempty" yaml:"link,omitempty"`
	Rationale string     `json:"rationale,omitempty" yaml:"rationale,omitempty"`
}

// DomainPattern matches against hostnames extracted from a target's URL
// fields (download URLs and the evidence URL), exact or dotted-suffix.
type DomainPattern struct {
	Domain    string   `json:"domain" yaml:"domain"`
	Severity  Severity `json:"severity" yaml:"severity"`
	Link      string   `json:"link,omitempty" yaml:"link,omitempty"`
	Rationale string   `json:"rationale,omitempty" yaml:"rationale,omitempty"`
}

// PublisherPattern is a substring match against a target's Publisher field.
type PublisherPattern struct {
	Publisher string   `json:"publisher" yaml:"publisher"`
	Severity  Severity `json:"severity" yaml:"severity"`
	Link      string   `json:"link,omitempty" yaml:"link,omitempty"`
	Rationale string   `json:"rationale,omitempty" yaml:"rationale,omitempty"`
}

// Denylist is the full set of patterns evaluated against a target during
// classification.
type Denylist struct {
	Patterns         []Pattern          `json:"patterns,omitempty" yaml:"patterns,omitempty"`
	DomainPatterns   []DomainPattern    `json:"domain_patterns,omitempty" yaml:"domain_patterns,omitempty"`
	PublisherPatterns []PublisherPattern `json:"publisher_patterns,omitempty" yaml:"publisher_patterns,omitempty"`
}

// Hit is one matched denylist entry, already in RuleFired-compatible shape.
type Hit struct {
	RuleID    string   `json:"rule_id"`
	RuleType  string   `json:"rule_type"`
	Severity  Severity `json:"severity"`
	Field     string   `json:"field,omitempty"`
	Pattern   string   `json:"pattern,omitempty"`
	Reason    string   `json:"reason"`
	Link      string   `json:"link,omitempty"`
}

// AnyHardRed reports whether any hit carries hard_red severity.
func AnyHardRed(hits []Hit) bool {
	for _, h := range hits {
		if h.Severity == SeverityHardRed {
			return true
		}
	}
	return false
}

// AnyForceYellow reports whether any hit carries force_yellow severity.
func AnyForceYellow(hits []Hit) bool {
	for _, h := range hits {
		if h.Severity == SeverityForceYellow {
			return true
		}
	}
	return false
}
