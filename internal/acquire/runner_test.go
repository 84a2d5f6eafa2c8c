package acquire

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataset-commons/dc-pipeline/internal/acquire/strategy"
	"github.com/dataset-commons/dc-pipeline/internal/budget"
	"github.com/dataset-commons/dc-pipeline/internal/model"
)

func writeQueue(t *testing.T, path string, rows []model.QueueRow) {
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

func newTestRunner(t *testing.T, handler strategy.Handler) (*Runner, string) {
	t.Helper()
	root := t.TempDir()
	return &Runner{
		RawRoot:    filepath.Join(root, "raw"),
		Workers:    2,
		RunBudget:  budget.NewRunByteBudget(0),
		Handlers:   map[string]strategy.Handler{"fake": handler},
		LedgerRoot: filepath.Join(root, "ledger"),
		RunID:      "run-test",
	}, root
}

func TestRunAcquireDispatchesEachRowThroughItsStrategy(t *testing.T) {
	calls := make(chan string, 8)
	fake := strategy.HandlerFunc(func(env strategy.Env, row model.QueueRow, outDir string) []strategy.Result {
		calls <- row.ID
		return []strategy.Result{{Status: "ok", Path: outDir}}
	})
	runner, root := newTestRunner(t, fake)

	queuePath := filepath.Join(root, "queues", "green_download.jsonl")
	writeQueue(t, queuePath, []model.QueueRow{
		{ID: "ds-1", Bucket: model.BucketGreen, Enabled: true, Download: model.DownloadPlan{Strategy: "fake"}},
		{ID: "ds-2", Bucket: model.BucketGreen, Enabled: true, Download: model.DownloadPlan{Strategy: "fake"}},
		{ID: "ds-3", Bucket: model.BucketGreen, Enabled: false, Download: model.DownloadPlan{Strategy: "fake"}},
	})

	summary, err := runner.RunAcquire(context.Background(), queuePath, model.BucketGreen)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 2, summary.OK)
	assert.Equal(t, 0, summary.Errors)
	close(calls)
	seen := map[string]bool{}
	for id := range calls {
		seen[id] = true
	}
	assert.True(t, seen["ds-1"])
	assert.True(t, seen["ds-2"])
	assert.False(t, seen["ds-3"])
}

func TestRunAcquireStopsFeedingOnceBudgetExhausted(t *testing.T) {
	fake := strategy.HandlerFunc(func(env strategy.Env, row model.QueueRow, outDir string) []strategy.Result {
		_ = env.Enforcer.AddBytes(1000, 1000)
		return []strategy.Result{{Status: "ok", ContentLength: 1000}}
	})
	runner, root := newTestRunner(t, fake)
	runner.Workers = 1
	runner.RunBudget = budget.NewRunByteBudget(1500)

	queuePath := filepath.Join(root, "queues", "green_download.jsonl")
	rows := make([]model.QueueRow, 5)
	for i := range rows {
		rows[i] = model.QueueRow{ID: "ds-" + string(rune('a'+i)), Bucket: model.BucketGreen, Enabled: true, Download: model.DownloadPlan{Strategy: "fake"}}
	}
	writeQueue(t, queuePath, rows)

	summary, err := runner.RunAcquire(context.Background(), queuePath, model.BucketGreen)
	require.NoError(t, err)
	assert.True(t, summary.BudgetExhausted)
	assert.Less(t, summary.OK, summary.Total)
}

func TestRunAcquireReportsErrorStatusFromStrategyResults(t *testing.T) {
	fake := strategy.HandlerFunc(func(env strategy.Env, row model.QueueRow, outDir string) []strategy.Result {
		return []strategy.Result{{Status: "error", Error: "boom"}}
	})
	runner, root := newTestRunner(t, fake)

	queuePath := filepath.Join(root, "queues", "green_download.jsonl")
	writeQueue(t, queuePath, []model.QueueRow{
		{ID: "ds-1", Bucket: model.BucketGreen, Enabled: true, Download: model.DownloadPlan{Strategy: "fake"}},
	})

	summary, err := runner.RunAcquire(context.Background(), queuePath, model.BucketGreen)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Errors)
	assert.Equal(t, 0, summary.OK)
}

func TestRunAcquireEmptyQueueReturnsZeroSummary(t *testing.T) {
	fake := strategy.HandlerFunc(func(env strategy.Env, row model.QueueRow, outDir string) []strategy.Result {
		t.Fatal("handler should not be called for an empty queue")
		return nil
	})
	runner, root := newTestRunner(t, fake)
	queuePath := filepath.Join(root, "queues", "green_download.jsonl")
	writeQueue(t, queuePath, nil)

	summary, err := runner.RunAcquire(context.Background(), queuePath, model.BucketGreen)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Total)
}
