package dedup

import (
	"math"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/spaolacci/murmur3"
)

// MinHashLSH approximates Jaccard similarity with fixed-width MinHash
// signatures, banded into LSH buckets for sublinear candidate lookup,
// with a bloom filter of every shingle ever added in front as a cheap
// reject: a query whose shingles are all novel cannot be a duplicate
// of anything in the index, so the signature/banding machinery never
// runs for it.
type MinHashLSH struct {
	opts  Options
	bands int
	rows  int

	mu      sync.RWMutex
	seen    *bloom.BloomFilter
	sigs    map[string][]uint32
	buckets []map[uint64][]string // one bucket map per band
}

func NewMinHashLSH(opts Options) *MinHashLSH {
	opts = opts.withDefaults()
	bands, rows := bandingFor(opts.Permutations, opts.Threshold)
	buckets := make([]map[uint64][]string, bands)
	for i := range buckets {
		buckets[i] = make(map[uint64][]string)
	}
	return &MinHashLSH{
		opts:    opts,
		bands:   bands,
		rows:    rows,
		seen:    bloom.NewWithEstimates(100000, 0.01),
		sigs:    make(map[string][]uint32),
		buckets: buckets,
	}
}

// bandingFor splits permutations into (bands, rows) whose LSH
// "s-curve" inflection point (1/bands)^(1/rows) lands as close as
// possible to threshold, the standard MinHash-LSH tuning rule.
func bandingFor(permutations int, threshold float64) (bands, rows int) {
	bestBands, bestRows := permutations, 1
	bestDelta := math.MaxFloat64
	for r := 1; r <= permutations; r++ {
		if permutations%r != 0 {
			continue
		}
		b := permutations / r
		est := math.Pow(1.0/float64(b), 1.0/float64(r))
		if delta := math.Abs(est - threshold); delta < bestDelta {
			bestDelta = delta
			bestBands, bestRows = b, r
		}
	}
	return bestBands, bestRows
}

func signatureFromShingles(shingleList []string, permutations int) []uint32 {
	sig := make([]uint32, permutations)
	for i := range sig {
		sig[i] = math.MaxUint32
	}
	for _, sh := range shingleList {
		b := []byte(sh)
		for i := 0; i < permutations; i++ {
			if h := murmur3.Sum32WithSeed(b, uint32(i)); h < sig[i] {
				sig[i] = h
			}
		}
	}
	return sig
}

func (m *MinHashLSH) bandKey(sig []uint32, band int) uint64 {
	buf := make([]byte, m.rows*4)
	for r := 0; r < m.rows; r++ {
		v := sig[band*m.rows+r]
		buf[r*4] = byte(v)
		buf[r*4+1] = byte(v >> 8)
		buf[r*4+2] = byte(v >> 16)
		buf[r*4+3] = byte(v >> 24)
	}
	return murmur3.Sum64WithSeed(buf, uint32(band))
}

func (m *MinHashLSH) Add(docID, text string) error {
	shingleList := shingles(text, m.opts.ShingleSize, m.opts.MaxTokens)
	sig := signatureFromShingles(shingleList, m.opts.Permutations)

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sh := range shingleList {
		m.seen.Add([]byte(sh))
	}
	m.sigs[docID] = sig
	for band := 0; band < m.bands; band++ {
		key := m.bandKey(sig, band)
		m.buckets[band][key] = append(m.buckets[band][key], docID)
	}
	return nil
}

func (m *MinHashLSH) Query(text string) (QueryResult, error) {
	start := time.Now()
	shingleList := shingles(text, m.opts.ShingleSize, m.opts.MaxTokens)

	m.mu.RLock()
	defer m.mu.RUnlock()

	anySeen := false
	for _, sh := range shingleList {
		if m.seen.Test([]byte(sh)) {
			anySeen = true
			break
		}
	}
	if !anySeen {
		return QueryResult{Backend: "minhash_lsh", ElapsedMs: elapsedMs(start)}, nil
	}

	sig := signatureFromShingles(shingleList, m.opts.Permutations)

	candidates := make(map[string]struct{})
	for band := 0; band < m.bands && len(candidates) < m.opts.MaxCandidates; band++ {
		key := m.bandKey(sig, band)
		for _, id := range m.buckets[band][key] {
			candidates[id] = struct{}{}
			if len(candidates) >= m.opts.MaxCandidates {
				break
			}
		}
	}

	var best string
	var bestScore float64
	checked := 0
	for id := range candidates {
		checked++
		if score := estimateSimilarity(sig, m.sigs[id]); score > bestScore {
			bestScore = score
			best = id
		}
	}

	result := QueryResult{
		Score:             bestScore,
		Backend:           "minhash_lsh",
		ElapsedMs:         elapsedMs(start),
		CandidatesChecked: checked,
	}
	if bestScore >= m.opts.Threshold {
		result.IsDuplicate = true
		result.MatchID = best
	}
	return result, nil
}

// estimateSimilarity returns the fraction of matching signature slots,
// MinHash's unbiased estimator of Jaccard similarity between the two
// underlying shingle sets.
func estimateSimilarity(a, b []uint32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	matches := 0
	for i := range a {
		if a[i] == b[i] {
			matches++
		}
	}
	return float64(matches) / float64(len(a))
}
