package classify

import (
	"strings"

	"github.com/dataset-commons/dc-pipeline/internal/hashutil"
	"github.com/dataset-commons/dc-pipeline/internal/model"
)

// unknownHints are spdx_hint values treated as "not concrete" — the
// classifier falls through to normalization-rule resolution for these.
var unknownHints = map[string]bool{
	"":        true,
	"UNKNOWN": true,
	"MIXED":   true,
}

// ResolvedSPDX is the outcome of SpdxResolve: the resolved identifier,
// a confidence in [0,1], and which path produced it.
type ResolvedSPDX struct {
	SPDX       string
	Confidence float64
	Source     string // "hint", "normalization_rule", "no_rule_hit"
}

// SpdxResolve implements the SPDX resolution algorithm.
//
// Step 1: a concrete spdx_hint always wins with confidence 1.0.
//
// Step 2: otherwise the LicenseMap's normalization rules are tried in
// declared order; the first rule whose MatchAny phrase occurs
// (case-insensitive, whitespace-collapsed) wins. Confidence is the
// deterministic function this module documents: an exact full-text
// match of the whole normalized evidence
// (the phrase equals the entire normalized text) scores 1.0; any other
// substring occurrence scores 0.6 plus up to 0.3 more, scaled by how
// much of the evidence text the matched phrase covers — so a long,
// specific phrase scores close to 0.9 while a short, generic one stays
// near 0.6. The scaling is intentionally monotone in match length and
// bounded to [0.6, 0.9) so it never collides with the hint path's 1.0
// or the no-hit path's 0.0.
//
// Step 3: no rule matches -> ("UNKNOWN", 0.0, "no_rule_hit").
func SpdxResolve(hint, evidenceText string, rules []model.NormalizationRule) ResolvedSPDX {
	if !unknownHints[strings.ToUpper(strings.TrimSpace(hint))] {
		return ResolvedSPDX{SPDX: hint, Confidence: 1.0, Source: "hint"}
	}

	normalized := hashutil.CollapseWhitespace(evidenceText)
	lowerText := strings.ToLower(normalized)

	for _, rule := range rules {
		for _, phrase := range rule.MatchAny {
			p := strings.ToLower(hashutil.CollapseWhitespace(phrase))
			if p == "" {
				continue
			}
			if lowerText == p {
				return ResolvedSPDX{SPDX: rule.SPDX, Confidence: 1.0, Source: "normalization_rule"}
			}
			if strings.Contains(lowerText, p) {
				return ResolvedSPDX{SPDX: rule.SPDX, Confidence: confidenceForPartialMatch(p, lowerText), Source: "normalization_rule"}
			}
		}
	}

	return ResolvedSPDX{SPDX: "UNKNOWN", Confidence: 0.0, Source: "no_rule_hit"}
}

// confidenceForPartialMatch implements the monotone function documented
// above: 0.6 + 0.3 * min(1, len(phrase)/len(text)), clamped below 0.9.
func confidenceForPartialMatch(phrase, text string) float64 {
	if len(text) == 0 {
		return 0.6
	}
	ratio := float64(len(phrase)) / float64(len(text))
	if ratio > 1 {
		ratio = 1
	}
	c := 0.6 + 0.3*ratio
	if c >= 0.9 {
		c = 0.899999
	}
	return c
}
