package strategy

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataset-commons/dc-pipeline/internal/model"
)

func md5Hex(s string) string {
	h := md5.Sum([]byte(s))
	return hex.EncodeToString(h[:])
}

func TestFetchZenodoDownloadsAndVerifiesChecksum(t *testing.T) {
	payload := "zenodo file contents"
	var ts *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/record", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"files": []map[string]interface{}{
				{
					"key":      "data.csv",
					"size":     len(payload),
					"checksum": "md5:" + md5Hex(payload),
					"links":    map[string]string{"self": ts.URL + "/files/data.csv"},
				},
			},
		})
	})
	mux.HandleFunc("/files/data.csv", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(payload))
	})
	ts = httptest.NewServer(mux)
	defer ts.Close()

	outDir := t.TempDir()
	env := newTestEnv(t)
	row := model.QueueRow{ID: "ds-1", Download: model.DownloadPlan{Strategy: model.StrategyZenodo, URL: ts.URL + "/record"}}

	results := FetchZenodo(env, row, outDir)
	require.Len(t, results, 1)
	assert.Equal(t, "ok", results[0].Status)

	b, err := os.ReadFile(filepath.Join(outDir, "data.csv"))
	require.NoError(t, err)
	assert.Equal(t, payload, string(b))
}

func TestFetchZenodoRejectsChecksumMismatch(t *testing.T) {
	payload := "corrupted on the wire"
	var ts *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/record", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"files": []map[string]interface{}{
				{"key": "data.csv", "checksum": "md5:" + md5Hex("expected different content"), "links": map[string]string{"self": ts.URL + "/files/data.csv"}},
			},
		})
	})
	mux.HandleFunc("/files/data.csv", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(payload))
	})
	ts = httptest.NewServer(mux)
	defer ts.Close()

	outDir := t.TempDir()
	row := model.QueueRow{ID: "ds-1", Download: model.DownloadPlan{Strategy: model.StrategyZenodo, URL: ts.URL + "/record"}}

	results := FetchZenodo(newTestEnv(t), row, outDir)
	require.Len(t, results, 1)
	assert.Equal(t, "error", results[0].Status)
	assert.Contains(t, results[0].Error, "md5 mismatch")

	_, err := os.Stat(filepath.Join(outDir, "data.csv"))
	assert.True(t, os.IsNotExist(err), "mismatched file should be removed")
}

func TestFetchFigshareDownloadsAndVerifiesChecksum(t *testing.T) {
	payload := "figshare file contents"
	var ts *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/article", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"files": []map[string]interface{}{
				{"name": "result.csv", "computed_md5": md5Hex(payload), "download_url": ts.URL + "/files/result.csv"},
			},
		})
	})
	mux.HandleFunc("/files/result.csv", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(payload))
	})
	ts = httptest.NewServer(mux)
	defer ts.Close()

	outDir := t.TempDir()
	row := model.QueueRow{ID: "ds-1", Download: model.DownloadPlan{Strategy: model.StrategyFigshare, URL: ts.URL + "/article"}}

	results := FetchFigshare(newTestEnv(t), row, outDir)
	require.Len(t, results, 1)
	assert.Equal(t, "ok", results[0].Status)

	b, err := os.ReadFile(filepath.Join(outDir, "result.csv"))
	require.NoError(t, err)
	assert.Equal(t, payload, string(b))
}

func TestFetchZenodoErrorsWhenRecordHasNoFiles(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"files": []}`)
	}))
	defer ts.Close()

	outDir := t.TempDir()
	row := model.QueueRow{ID: "ds-1", Download: model.DownloadPlan{Strategy: model.StrategyZenodo, URL: ts.URL}}

	results := FetchZenodo(newTestEnv(t), row, outDir)
	require.Len(t, results, 1)
	assert.Equal(t, "error", results[0].Status)
}
