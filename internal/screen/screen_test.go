package screen

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataset-commons/dc-pipeline/internal/dedup"
	"github.com/dataset-commons/dc-pipeline/internal/model"
)

func writeJSONLFile(t *testing.T, path string, rows []map[string]interface{}) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	for _, r := range rows {
		b, err := json.Marshal(r)
		require.NoError(t, err)
		_, err = f.Write(append(b, '\n'))
		require.NoError(t, err)
	}
}

func writeQueueFile(t *testing.T, path string, rows []model.QueueRow) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	for _, r := range rows {
		b, err := json.Marshal(r)
		require.NoError(t, err)
		_, err = f.Write(append(b, '\n'))
		require.NoError(t, err)
	}
}

func TestScreenRunAcceptsAndPitchesRecords(t *testing.T) {
	root := t.TempDir()
	row := model.QueueRow{
		ID:             "ds-1",
		Name:           "Dataset One",
		ResolvedSPDX:   "CC0-1.0",
		Bucket:         model.BucketYellow,
		LicenseProfile: model.ProfilePermissive,
		OutputPool:     model.PoolPermissive,
		Enabled:        true,
		RoutingDomain:  "standard",
	}
	writeQueueFile(t, filepath.Join(root, "queues", "yellow_pipeline.jsonl"), []model.QueueRow{row})

	rawDir := filepath.Join(root, "dataset", string(model.BucketYellow), "permissive", "ds-1")
	writeJSONLFile(t, filepath.Join(rawDir, "part-0.jsonl"), []map[string]interface{}{
		{"id": "r1", "text": "hello"},
		{"id": "r2", "text": ""}, // rejected: empty_text
	})

	s := &Screen{Config: Config{
		DatasetRoot: filepath.Join(root, "dataset"),
		LedgerRoot:  filepath.Join(root, "ledger"),
		PitchRoot:   filepath.Join(root, "pitch"),
		RunID:       "run-test",
	}}

	summary, err := s.Run(context.Background(), filepath.Join(root, "queues", "yellow_pipeline.jsonl"))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Total)
	assert.Equal(t, 1, summary.Accepted)
	assert.Equal(t, 1, summary.Pitched)

	shardDir := filepath.Join(root, "dataset", "screened_yellow", "permissive", "shards")
	entries, err := os.ReadDir(shardDir)
	require.NoError(t, err)
	var foundShard, foundMarker bool
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".jsonl" {
			foundShard = true
		}
		if filepath.Ext(e.Name()) == ".complete" {
			foundMarker = true
		}
	}
	assert.True(t, foundShard)
	assert.True(t, foundMarker)
}

func TestScreenRunSkipsRowMissingRequiredSignoff(t *testing.T) {
	root := t.TempDir()
	row := model.QueueRow{
		ID:         "ds-2",
		Bucket:     model.BucketYellow,
		OutputPool:     model.PoolPermissive,
		Enabled:    true,
		Signals:    map[string]interface{}{"require_yellow_signoff": true},
	}
	writeQueueFile(t, filepath.Join(root, "queues", "yellow_pipeline.jsonl"), []model.QueueRow{row})

	s := &Screen{Config: Config{
		DatasetRoot: filepath.Join(root, "dataset"),
		LedgerRoot:  filepath.Join(root, "ledger"),
		PitchRoot:   filepath.Join(root, "pitch"),
		RunID:       "run-test",
	}}

	summary, err := s.Run(context.Background(), filepath.Join(root, "queues", "yellow_pipeline.jsonl"))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Skipped)
	require.Len(t, summary.Targets, 1)
	assert.Equal(t, "yellow_signoff_missing", summary.Targets[0].Reason)
}

func TestScreenRunPitchesNearDuplicateRecords(t *testing.T) {
	root := t.TempDir()
	row := model.QueueRow{
		ID:             "ds-4",
		Name:           "Dataset Four",
		ResolvedSPDX:   "CC0-1.0",
		Bucket:         model.BucketYellow,
		LicenseProfile: model.ProfilePermissive,
		OutputPool:     model.PoolPermissive,
		Enabled:        true,
		RoutingDomain:  "nlp",
	}
	writeQueueFile(t, filepath.Join(root, "queues", "yellow_pipeline.jsonl"), []model.QueueRow{row})

	rawDir := filepath.Join(root, "dataset", string(model.BucketYellow), "permissive", "ds-4")
	base := "the quick brown fox jumps over the lazy dog near the river bank today"
	nearDup := "the quick brown fox jumps over the lazy dog near the river bank tomorrow"
	writeJSONLFile(t, filepath.Join(rawDir, "part-0.jsonl"), []map[string]interface{}{
		{"id": "r1", "text": base},
		{"id": "r2", "text": nearDup},
	})

	s := &Screen{Config: Config{
		DatasetRoot:  filepath.Join(root, "dataset"),
		LedgerRoot:   filepath.Join(root, "ledger"),
		PitchRoot:    filepath.Join(root, "pitch"),
		RunID:        "run-test",
		DedupBackend: "jaccard",
		DedupOptions: dedup.Options{Threshold: 0.6},
	}}

	summary, err := s.Run(context.Background(), filepath.Join(root, "queues", "yellow_pipeline.jsonl"))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Accepted)
	assert.Equal(t, 1, summary.Pitched)
}

func TestScreenRunToleratesMissingRawDirectory(t *testing.T) {
	root := t.TempDir()
	row := model.QueueRow{
		ID:         "ds-3",
		Bucket:     model.BucketYellow,
		OutputPool:     model.PoolPermissive,
		Enabled:    true,
		RoutingDomain: "standard",
	}
	writeQueueFile(t, filepath.Join(root, "queues", "yellow_pipeline.jsonl"), []model.QueueRow{row})

	s := &Screen{Config: Config{
		DatasetRoot: filepath.Join(root, "dataset"),
		LedgerRoot:  filepath.Join(root, "ledger"),
		PitchRoot:   filepath.Join(root, "pitch"),
		RunID:       "run-test",
	}}

	summary, err := s.Run(context.Background(), filepath.Join(root, "queues", "yellow_pipeline.jsonl"))
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Accepted)
	assert.Equal(t, 0, summary.Pitched)
	require.Len(t, summary.Targets, 1)
	assert.Equal(t, "ok", summary.Targets[0].Status)
}
