package strategy

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dataset-commons/dc-pipeline/internal/model"
)

func TestLookupReturnsRegisteredHandlers(t *testing.T) {
	for _, name := range []model.DownloadStrategy{
		model.StrategyHTTP, model.StrategyFTP, model.StrategyGit,
		model.StrategyZenodo, model.StrategyFigshare, model.StrategyS3Sync,
		model.StrategyAWSRequesterPays, model.StrategyHuggingFaceDatasets, model.StrategyNone,
	} {
		h := Lookup(string(name))
		assert.NotNil(t, h, "expected a handler for %s", name)
	}
}

func TestLookupFallsBackToNoopForUnknownStrategy(t *testing.T) {
	results := Lookup("not-a-real-strategy").Fetch(Env{}, model.QueueRow{}, t.TempDir())
	if assert.Len(t, results, 1) {
		assert.Equal(t, "noop", results[0].Status)
	}
}

func TestFetchNoneReturnsNoop(t *testing.T) {
	results := FetchNone(Env{}, model.QueueRow{}, t.TempDir())
	if assert.Len(t, results, 1) {
		assert.Equal(t, "noop", results[0].Status)
	}
}

func TestS3SyncAndRequesterPaysShareAHandler(t *testing.T) {
	a := reflect.ValueOf(Lookup(string(model.StrategyS3Sync))).Pointer()
	b := reflect.ValueOf(Lookup(string(model.StrategyAWSRequesterPays))).Pointer()
	assert.Equal(t, a, b)
}
