package classify

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataset-commons/dc-pipeline/internal/denylist"
	"github.com/dataset-commons/dc-pipeline/internal/model"
	"github.com/dataset-commons/dc-pipeline/internal/obs"
)

func newTestClassifier(t *testing.T, lm model.LicenseMap, dl model.Denylist) *Classifier {
	t.Helper()
	m, err := denylist.NewMatcher(dl)
	require.NoError(t, err)

	root := t.TempDir()
	return &Classifier{
		ManifestsRoot: filepath.Join(root, "manifests"),
		QueuesRoot:    filepath.Join(root, "queues"),
		LedgerRoot:    filepath.Join(root, "ledger"),
		RunID:         "run-test",
		LicenseMap:    lm,
		Matcher:       m,
		FetchConfig:   FetchConfig{NoFetch: true},
		Obs:           obs.New("classifier"),
	}
}

func TestClassifyAllGreenHappyPath(t *testing.T) {
	lm := model.LicenseMap{
		Allowlist:            []string{"MIT"},
		MinLicenseConfidence: 0.5,
	}
	c := newTestClassifier(t, lm, model.Denylist{})

	targets := []*model.Target{
		{
			ID:              "ds-1",
			Name:            "Dataset One",
			Enabled:         true,
			LicenseProfile:  model.ProfilePermissive,
			LicenseEvidence: model.LicenseEvidence{SPDXHint: "MIT"},
		},
	}

	result, err := c.ClassifyAll(context.Background(), targets)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Total)
	assert.Equal(t, 1, result.Green)
	assert.Equal(t, 0, result.Red)

	b, err := os.ReadFile(filepath.Join(c.QueuesRoot, "green_download.jsonl"))
	require.NoError(t, err)
	var row model.QueueRow
	require.NoError(t, json.Unmarshal(b[:len(b)-1], &row))
	assert.Equal(t, model.BucketGreen, row.Bucket)
	assert.Equal(t, model.PoolPermissive, row.OutputPool)
}

func TestClassifyAllHardRedDenylistDominates(t *testing.T) {
	lm := model.LicenseMap{
		Allowlist:            []string{"MIT"},
		MinLicenseConfidence: 0.5,
	}
	dl := model.Denylist{
		PublisherPatterns: []model.PublisherPattern{
			{Publisher: "banned-corp", Severity: model.SeverityHardRed, Rationale: "legal hold"},
		},
	}
	c := newTestClassifier(t, lm, dl)

	targets := []*model.Target{
		{
			ID:              "ds-2",
			Enabled:         true,
			Publisher:       "BANNED-CORP subsidiary",
			LicenseProfile:  model.ProfilePermissive,
			LicenseEvidence: model.LicenseEvidence{SPDXHint: "MIT"},
		},
	}

	result, err := c.ClassifyAll(context.Background(), targets)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Red)
	assert.Equal(t, 0, result.Green)

	b, err := os.ReadFile(filepath.Join(c.QueuesRoot, "red_rejected.jsonl"))
	require.NoError(t, err)
	var row model.QueueRow
	require.NoError(t, json.Unmarshal(b[:len(b)-1], &row))
	assert.Equal(t, model.BucketRed, row.Bucket)
}

func TestClassifyAllSkipsDisabledTargets(t *testing.T) {
	c := newTestClassifier(t, model.LicenseMap{}, model.Denylist{})
	targets := []*model.Target{{ID: "ds-3", Enabled: false}}

	result, err := c.ClassifyAll(context.Background(), targets)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Total)
}

func TestClassifyAllWritesPerCheckFilesAndReadsReviewSignoff(t *testing.T) {
	lm := model.LicenseMap{
		Allowlist:            []string{"MIT"},
		MinLicenseConfidence: 0.5,
	}
	c := newTestClassifier(t, lm, model.Denylist{})

	manifestDir := filepath.Join(c.ManifestsRoot, "ds-5")
	require.NoError(t, os.MkdirAll(manifestDir, 0o755))
	signoffBody, err := json.Marshal(model.Signoff{Status: "approved", By: "reviewer@example.com", At: "2026-07-30T00:00:00Z"})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(manifestDir, "review_signoff.json"), signoffBody, 0o644))

	targets := []*model.Target{
		{
			ID:                  "ds-5",
			Enabled:             true,
			LicenseProfile:      model.ProfilePermissive,
			LicenseEvidence:     model.LicenseEvidence{SPDXHint: "MIT"},
			ContentCheckActions: map[string]model.ContentCheckAction{"pii_scan": model.ActionOK},
		},
	}

	result, err := c.ClassifyAll(context.Background(), targets)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Green)

	checkPath := filepath.Join(c.LedgerRoot, c.RunID, "ds-5", "checks", "pii_scan.json")
	b, err := os.ReadFile(checkPath)
	require.NoError(t, err)
	var record map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &record))
	assert.Equal(t, "pii_scan", record["check"])
	assert.Equal(t, string(model.ActionOK), record["action"])

	b, err = os.ReadFile(filepath.Join(c.QueuesRoot, "green_download.jsonl"))
	require.NoError(t, err)
	var row model.QueueRow
	require.NoError(t, json.Unmarshal(b[:len(b)-1], &row))
	assert.Equal(t, model.BucketGreen, row.Bucket)
}

func TestBucketDecideRestrictionPhraseGate(t *testing.T) {
	lm := model.LicenseMap{
		Allowlist:          []string{"MIT"},
		RestrictionPhrases: []string{"no commercial use"},
	}
	target := &model.Target{
		ID:         "ds-4",
		LicenseGates: []model.LicenseGate{model.GateRestrictionPhrase},
	}
	d := BucketDecide(BucketInput{
		Target:       target,
		LicenseMap:   lm,
		EvidenceText: "This dataset permits No Commercial Use only.",
		Resolved:     ResolvedSPDX{SPDX: "MIT", Confidence: 1.0},
	})
	assert.Equal(t, model.BucketYellow, d.Bucket)
	assert.Contains(t, d.RestrictionHits, "no commercial use")
}
