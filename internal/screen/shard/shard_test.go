package shard

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRecord struct {
	ID string `json:"id"`
}

func TestSharderWritesAndCompletesAShard(t *testing.T) {
	dir := t.TempDir()
	s, err := NewSharder(Options{Dir: dir, Prefix: "yellow_shard", MaxRecordsPerShard: 10})
	require.NoError(t, err)

	require.NoError(t, s.Append(testRecord{ID: "a"}))
	require.NoError(t, s.Append(testRecord{ID: "b"}))
	require.NoError(t, s.Close())

	shardPath := filepath.Join(dir, "yellow_shard_00000.jsonl")
	_, err = os.Stat(shardPath)
	assert.NoError(t, err)
	_, err = os.Stat(shardPath + ".complete")
	assert.NoError(t, err)

	f, err := os.Open(shardPath)
	require.NoError(t, err)
	defer f.Close()
	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	assert.Len(t, lines, 2)

	var marker CompletionMarker
	mb, err := os.ReadFile(shardPath + ".complete")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(mb, &marker))
	assert.Equal(t, 2, marker.RecordCount)
	assert.Equal(t, shardPath, marker.ShardPath)
}

func TestSharderRotatesAtMaxRecords(t *testing.T) {
	dir := t.TempDir()
	s, err := NewSharder(Options{Dir: dir, Prefix: "shard", MaxRecordsPerShard: 2})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Append(testRecord{ID: string(rune('a' + i))}))
	}
	require.NoError(t, s.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var shards int
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".jsonl" {
			shards++
		}
	}
	assert.Equal(t, 3, shards) // 2 + 2 + 1
}

func TestSharderDiscardsEmptyShardOnClose(t *testing.T) {
	dir := t.TempDir()
	s, err := NewSharder(Options{Dir: dir, Prefix: "empty"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSharderCloseIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	s, err := NewSharder(Options{Dir: dir, Prefix: "idempotent"})
	require.NoError(t, err)
	require.NoError(t, s.Append(testRecord{ID: "a"}))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}

func TestSharderWritesGzipWhenCompressionEnabled(t *testing.T) {
	dir := t.TempDir()
	s, err := NewSharder(Options{Dir: dir, Prefix: "gz", Compression: true})
	require.NoError(t, err)
	require.NoError(t, s.Append(testRecord{ID: "a"}))
	require.NoError(t, s.Close())

	shardPath := filepath.Join(dir, "gz_00000.jsonl.gz")
	f, err := os.Open(shardPath)
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	defer gz.Close()
	var rec testRecord
	require.NoError(t, json.NewDecoder(gz).Decode(&rec))
	assert.Equal(t, "a", rec.ID)
}
