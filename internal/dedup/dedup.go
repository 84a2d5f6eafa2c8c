// Package dedup implements near-duplicate detection for the screen
// stage: add a document's text, then query
// whether it is a near-duplicate of anything already added.
//
// Two backends share one result shape so callers never branch on
// which is wired in: MinHashLSH approximates Jaccard similarity with
// banded MinHash signatures behind a bloom-filter pre-check, and
// Jaccard computes exact token-set similarity by brute force. Both are
// always compiled into this binary; New picks one by name, so
// "library available vs. fallback" is a config choice here, not a
// build one.
package dedup

import (
	"strings"
	"time"
)

// QueryResult is the outcome of testing one document's text against
// everything previously added to a Detector.
type QueryResult struct {
	IsDuplicate       bool
	Score             float64
	MatchID           string
	Backend           string
	ElapsedMs         float64
	CandidatesChecked int
}

// Detector is the near-duplicate detection contract both backends
// satisfy.
type Detector interface {
	Add(docID, text string) error
	Query(text string) (QueryResult, error)
}

// Options configures either backend. The zero value resolves to the
// defaults below via withDefaults.
type Options struct {
	Permutations  int     // MinHash signature width, default 128
	Threshold     float64 // similarity considered a duplicate, default 0.85
	ShingleSize   int     // word-shingle width, default 3
	MaxCandidates int     // LSH bucket fan-out cap, default 50
	MaxTokens     int     // longest text considered, in tokens, default 2000
}

func (o Options) withDefaults() Options {
	if o.Permutations <= 0 {
		o.Permutations = 128
	}
	if o.Threshold <= 0 {
		o.Threshold = 0.85
	}
	if o.ShingleSize <= 0 {
		o.ShingleSize = 3
	}
	if o.MaxCandidates <= 0 {
		o.MaxCandidates = 50
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = 2000
	}
	return o
}

// New selects a backend by name. "minhash", "lsh", and "minhash-lsh"
// all select MinHashLSH; anything else, including "jaccard" and "",
// falls back to the in-memory Jaccard backend.
func New(backend string, opts Options) Detector {
	opts = opts.withDefaults()
	switch strings.ToLower(backend) {
	case "minhash", "lsh", "minhash-lsh":
		return NewMinHashLSH(opts)
	default:
		return NewJaccard(opts)
	}
}

// shingles splits text into word shingles of the given size, after
// truncating to maxTokens words. A text shorter than one shingle
// becomes its own single shingle so short documents still compare.
func shingles(text string, size int, maxTokens int) []string {
	tokens := strings.Fields(text)
	if len(tokens) > maxTokens {
		tokens = tokens[:maxTokens]
	}
	if len(tokens) == 0 {
		return nil
	}
	if len(tokens) < size {
		return []string{strings.Join(tokens, " ")}
	}
	out := make([]string, 0, len(tokens)-size+1)
	for i := 0; i+size <= len(tokens); i++ {
		out = append(out, strings.Join(tokens[i:i+size], " "))
	}
	return out
}

func elapsedMs(start time.Time) float64 {
	return float64(time.Since(start)) / float64(time.Millisecond)
}
