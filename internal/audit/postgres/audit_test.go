package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/dataset-commons/dc-pipeline/internal/model"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	ctx := context.Background()

	container, err := tcpostgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:15-alpine"),
		tcpostgres.WithDatabase("dc_audit_test"),
		tcpostgres.WithUsername("dc_audit"),
		tcpostgres.WithPassword("dc_audit"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	store, err := NewStore(ctx, Config{
		ConnectionString: connStr,
		MigrationsPath:   "file://migrations",
	})
	require.NoError(t, err)
	t.Cleanup(store.Close)

	require.NoError(t, store.Migrate(ctx))
	return store
}

func sampleBundle(targetID string) model.DecisionBundle {
	return model.DecisionBundle{
		TargetID:            targetID,
		Decision:            model.BucketGreen,
		DecidedAtUTC:        "2026-07-31T00:00:00Z",
		DecidedBy:           "rule_engine",
		RulesFired:          []model.RuleFired{{RuleID: "license_permissive"}},
		PrimaryRule:         "license_permissive",
		BundleSchemaVersion: model.CurrentBundleSchemaVersion,
	}
}

func TestRecordDecisionChainsHashes(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.RecordDecision(ctx, sampleBundle("ds-1")))
	require.NoError(t, store.RecordDecision(ctx, sampleBundle("ds-2")))
	require.NoError(t, store.RecordDecision(ctx, sampleBundle("ds-3")))

	var firstPrevious string
	row := store.pool.QueryRow(ctx, `SELECT previous_hash FROM audit_decisions ORDER BY id ASC LIMIT 1`)
	require.NoError(t, row.Scan(&firstPrevious))
	assert.Equal(t, genesisHash, firstPrevious)

	var count int
	row = store.pool.QueryRow(ctx, `SELECT COUNT(*) FROM audit_decisions`)
	require.NoError(t, row.Scan(&count))
	assert.Equal(t, 3, count)
}

func TestVerifyChainIntegrityDetectsNoTampering(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.RecordDecision(ctx, sampleBundle("ds-1")))
	require.NoError(t, store.RecordDecision(ctx, sampleBundle("ds-2")))

	brokenAt, err := store.VerifyChainIntegrity(ctx)
	require.NoError(t, err)
	assert.Empty(t, brokenAt)
}

func TestVerifyChainIntegrityDetectsTamperedRow(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.RecordDecision(ctx, sampleBundle("ds-1")))
	require.NoError(t, store.RecordDecision(ctx, sampleBundle("ds-2")))

	_, err := store.pool.Exec(ctx, `UPDATE audit_decisions SET decision = 'red' WHERE target_id = 'ds-1'`)
	require.NoError(t, err)

	brokenAt, err := store.VerifyChainIntegrity(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ds-1", brokenAt)
}

func TestRecordRunSummaryInsertsRow(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.RecordRunSummary(ctx, "screen", "run-1", map[string]int{"accepted": 4, "pitched": 1}))

	var count int
	row := store.pool.QueryRow(ctx, `SELECT COUNT(*) FROM run_summaries WHERE run_id = 'run-1'`)
	require.NoError(t, row.Scan(&count))
	assert.Equal(t, 1, count)
}
