package dedup

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSelectsBackendByName(t *testing.T) {
	assert.IsType(t, &MinHashLSH{}, New("minhash", Options{}))
	assert.IsType(t, &MinHashLSH{}, New("lsh", Options{}))
	assert.IsType(t, &Jaccard{}, New("jaccard", Options{}))
	assert.IsType(t, &Jaccard{}, New("", Options{}))
	assert.IsType(t, &Jaccard{}, New("not-a-backend", Options{}))
}

func TestShinglesShortTextBecomesOneShingle(t *testing.T) {
	assert.Equal(t, []string{"a b"}, shingles("a b", 3, 2000))
	assert.Nil(t, shingles("", 3, 2000))
}

func TestShinglesSlidesWindowOverTokens(t *testing.T) {
	got := shingles("the quick brown fox jumps", 3, 2000)
	assert.Equal(t, []string{"the quick brown", "quick brown fox", "brown fox jumps"}, got)
}

func TestShinglesTruncatesAtMaxTokens(t *testing.T) {
	var tokens []string
	for i := 0; i < 10; i++ {
		tokens = append(tokens, fmt.Sprintf("w%d", i))
	}
	text := ""
	for _, tok := range tokens {
		text += tok + " "
	}
	got := shingles(text, 3, 4)
	require.NotEmpty(t, got)
	assert.Equal(t, "w0 w1 w2", got[0])
	assert.Len(t, got, 2) // 4 tokens, shingle size 3 -> 2 windows
}

func runDuplicateDetectionSuite(t *testing.T, d Detector, backend string) {
	t.Helper()
	base := "the quick brown fox jumps over the lazy dog near the river bank today"
	nearDup := "the quick brown fox jumps over the lazy dog near the river bank yesterday"
	unrelated := "completely different content about astrophysics and distant galaxies forming"

	require.NoError(t, d.Add("doc-1", base))

	dup, err := d.Query(nearDup)
	require.NoError(t, err)
	assert.True(t, dup.IsDuplicate, "expected near-duplicate text to match, score=%f", dup.Score)
	assert.Equal(t, "doc-1", dup.MatchID)
	assert.Equal(t, backend, dup.Backend)

	notDup, err := d.Query(unrelated)
	require.NoError(t, err)
	assert.False(t, notDup.IsDuplicate)
}

func TestJaccardDetectsNearDuplicates(t *testing.T) {
	runDuplicateDetectionSuite(t, NewJaccard(Options{Threshold: 0.6}), "jaccard")
}

func TestMinHashLSHDetectsNearDuplicates(t *testing.T) {
	runDuplicateDetectionSuite(t, NewMinHashLSH(Options{Permutations: 64, Threshold: 0.6}), "minhash_lsh")
}

func TestMinHashLSHBloomPreFilterRejectsNovelTextWithoutCandidates(t *testing.T) {
	m := NewMinHashLSH(Options{Permutations: 32})
	require.NoError(t, m.Add("doc-1", "alpha beta gamma delta epsilon"))

	result, err := m.Query("zeta eta theta iota kappa")
	require.NoError(t, err)
	assert.False(t, result.IsDuplicate)
	assert.Equal(t, 0, result.CandidatesChecked)
}

func TestJaccardQueryAgainstEmptyIndexIsNotDuplicate(t *testing.T) {
	j := NewJaccard(Options{})
	result, err := j.Query("anything at all")
	require.NoError(t, err)
	assert.False(t, result.IsDuplicate)
	assert.Equal(t, 0, result.CandidatesChecked)
}

func TestOptionsWithDefaultsFillsZeroValues(t *testing.T) {
	o := Options{}.withDefaults()
	assert.Equal(t, 128, o.Permutations)
	assert.Equal(t, 0.85, o.Threshold)
	assert.Equal(t, 3, o.ShingleSize)
	assert.Equal(t, 50, o.MaxCandidates)
	assert.Equal(t, 2000, o.MaxTokens)
}

func TestBandingForApproximatesThreshold(t *testing.T) {
	bands, rows := bandingFor(128, 0.85)
	assert.Equal(t, 128, bands*rows)
	assert.Greater(t, bands, 0)
	assert.Greater(t, rows, 0)
}
