package strategy

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/dataset-commons/dc-pipeline/internal/model"
	"github.com/dataset-commons/dc-pipeline/internal/netguard"
	"github.com/dataset-commons/dc-pipeline/internal/safepath"
)

type figshareArticle struct {
	Files []struct {
		Name        string `json:"name"`
		Size        int64  `json:"size"`
		ComputedMD5 string `json:"computed_md5"`
		DownloadURL string `json:"download_url"`
	} `json:"files"`
}

// FetchFigshare mirrors the zenodo strategy: resolve the article's file
// list via the Figshare articles API, then download and MD5-verify each
// file, reusing the same checksum-verified downloader.
func FetchFigshare(env Env, row model.QueueRow, outDir string) []Result {
	articleURL := firstURL(row.Download)
	if articleURL == "" {
		return []Result{{Status: "error", Error: "no figshare article url configured"}}
	}
	if err := netguard.CheckURL(env.Ctx, env.Resolver, articleURL, env.Allowlist, env.AllowNonGlobal); err != nil {
		return []Result{{Status: "error", Error: err.Error()}}
	}

	req, err := http.NewRequestWithContext(env.Ctx, http.MethodGet, articleURL, nil)
	if err != nil {
		return []Result{{Status: "error", Error: err.Error()}}
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return []Result{{Status: "error", Error: err.Error()}}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return []Result{{Status: "error", Error: fmt.Sprintf("figshare api status %d", resp.StatusCode)}}
	}
	var art figshareArticle
	if err := json.NewDecoder(resp.Body).Decode(&art); err != nil {
		return []Result{{Status: "error", Error: err.Error()}}
	}
	if len(art.Files) == 0 {
		return []Result{{Status: "error", Error: "figshare article has no files"}}
	}

	results := make([]Result, 0, len(art.Files))
	for _, f := range art.Files {
		checksum := f.ComputedMD5
		if checksum != "" {
			checksum = "md5:" + checksum
		}
		results = append(results, fetchZenodoFile(env, f.DownloadURL, checksum, filepath.Join(outDir, safepath.SanitizeFilename(f.Name))))
	}
	return results
}
