// Package hashutil implements the content-hashing and evidence-text
// normalization rules shared by every stage: whitespace-collapsed
// SHA-256 content hashing, and the closed,
// ordered normalizer the classifier's evidence-change detection depends
// on for reproducibility across reimplementations.
package hashutil

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

// CollapseWhitespace replaces every run of whitespace (ASCII space, \t,
// \n, \r, \v, \f, plus U+00A0, U+2028 and U+2029; other Unicode spaces are
// kept) with a single space and trims the result, so that "a\t\tb\n" and
// "a b" produce identical output.
func CollapseWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastWasSpace := false
	for _, r := range s {
		if isSpace(r) {
			if !lastWasSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			lastWasSpace = true
			continue
		}
		lastWasSpace = false
		b.WriteRune(r)
	}
	out := b.String()
	return strings.TrimSuffix(out, " ")
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\v', '\f', 0x00A0, 0x2028, 0x2029:
		return true
	}
	return false
}

// ContentSHA256 returns the SHA-256 digest, as lowercase hex, of the
// whitespace-collapsed form of text. Two texts differing only in
// whitespace runs hash identically.
func ContentSHA256(text string) string {
	collapsed := CollapseWhitespace(text)
	sum := sha256.Sum256([]byte(collapsed))
	return hex.EncodeToString(sum[:])
}

// RawSHA256 returns the SHA-256 digest of the untransformed byte slice,
// used for EvidenceSnapshot.RawSHA256.
func RawSHA256(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// normalizeRules is the closed, ordered list of substitutions applied by
// NormalizeEvidenceText, documented here so two reimplementations of this
// implementation agree on results, which would otherwise be nondeterministic.
//
// Order matters: timestamps are stripped before querystrings so that a
// timestamp embedded in a querystring value (?updated=2024-01-02T00:00:00Z)
// is removed by the timestamp rule first, leaving a clean "?updated=" that
// the querystring rule then strips entirely.
var normalizeRules = []*regexp.Regexp{
	// ISO-8601 timestamp, with optional fractional seconds and Z/offset.
	regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}(\.\d+)?(Z|[+-]\d{2}:?\d{2})?\b`),
	// RFC-1123-ish date: "Mon, 02 Jan 2006 15:04:05 GMT"
	regexp.MustCompile(`\b(Mon|Tue|Wed|Thu|Fri|Sat|Sun), \d{2} (Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec) \d{4} \d{2}:\d{2}:\d{2} \w+\b`),
	// Bare ISO date.
	regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`),
	// US-style date.
	regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{2,4}\b`),
	// URL querystring.
	regexp.MustCompile(`\?[^\s"'<>]*`),
	// URL fragment.
	regexp.MustCompile(`#[^\s"'<>]*`),
}

// NormalizeEvidenceText applies the closed rule list above in order, then
// collapses whitespace. It is the text an EvidenceSnapshot's
// NormalizedSHA256 is computed over.
func NormalizeEvidenceText(raw string) string {
	s := raw
	for _, re := range normalizeRules {
		s = re.ReplaceAllString(s, "")
	}
	return CollapseWhitespace(s)
}
