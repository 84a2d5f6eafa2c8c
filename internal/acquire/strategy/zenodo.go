package strategy

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/dataset-commons/dc-pipeline/internal/model"
	"github.com/dataset-commons/dc-pipeline/internal/netguard"
	"github.com/dataset-commons/dc-pipeline/internal/safepath"
)

type zenodoRecord struct {
	Files []struct {
		Key      string `json:"key"`
		Size     int64  `json:"size"`
		Checksum string `json:"checksum"` // "md5:<hex>"
		Links    struct {
			Self string `json:"self"`
		} `json:"links"`
	} `json:"files"`
}

// FetchZenodo resolves the record's file list via the Zenodo records API,
// then downloads each file and verifies its MD5 checksum; a checksum
// mismatch is always fatal regardless of VerifyZenodoMD5 since it
// indicates either on-the-wire corruption or a changed record.
func FetchZenodo(env Env, row model.QueueRow, outDir string) []Result {
	recordURL := firstURL(row.Download)
	if recordURL == "" {
		return []Result{{Status: "error", Error: "no zenodo record url configured"}}
	}
	if err := netguard.CheckURL(env.Ctx, env.Resolver, recordURL, env.Allowlist, env.AllowNonGlobal); err != nil {
		return []Result{{Status: "error", Error: err.Error()}}
	}

	rec, err := fetchZenodoRecord(env, recordURL)
	if err != nil {
		return []Result{{Status: "error", Error: err.Error()}}
	}
	if len(rec.Files) == 0 {
		return []Result{{Status: "error", Error: "zenodo record has no files"}}
	}

	results := make([]Result, 0, len(rec.Files))
	for _, f := range rec.Files {
		results = append(results, fetchZenodoFile(env, f.Links.Self, f.Checksum, filepath.Join(outDir, safepath.SanitizeFilename(f.Key))))
	}
	return results
}

func fetchZenodoRecord(env Env, recordURL string) (*zenodoRecord, error) {
	req, err := http.NewRequestWithContext(env.Ctx, http.MethodGet, recordURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("zenodo api status %d", resp.StatusCode)
	}
	var rec zenodoRecord
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func fetchZenodoFile(env Env, fileURL, checksum, dest string) Result {
	if err := netguard.CheckURL(env.Ctx, env.Resolver, fileURL, env.Allowlist, env.AllowNonGlobal); err != nil {
		return Result{Status: "error", Error: err.Error()}
	}
	if env.Enforcer != nil {
		if err := env.Enforcer.StartFile(); err != nil {
			return Result{Status: "error", Error: err.Error()}
		}
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return Result{Status: "error", Error: err.Error()}
	}

	req, err := http.NewRequestWithContext(env.Ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return Result{Status: "error", Error: err.Error()}
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return Result{Status: "error", Error: err.Error()}
	}
	defer resp.Body.Close()

	f, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return Result{Status: "error", Error: err.Error()}
	}
	defer f.Close()

	h := md5.New()
	sh := sha256.New()
	var n int64
	buf := make([]byte, 256*1024)
	for {
		nr, rerr := resp.Body.Read(buf)
		if nr > 0 {
			n += int64(nr)
			if env.Enforcer != nil {
				if err := env.Enforcer.AddBytes(int64(nr), n); err != nil {
					return Result{Status: "error", Error: err.Error()}
				}
			}
			f.Write(buf[:nr])
			h.Write(buf[:nr])
			sh.Write(buf[:nr])
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return Result{Status: "error", Error: rerr.Error()}
		}
	}

	want := strings.TrimPrefix(checksum, "md5:")
	got := hex.EncodeToString(h.Sum(nil))
	if want != "" && want != got {
		os.Remove(dest)
		return Result{Status: "error", Error: fmt.Sprintf("md5 mismatch: expected %s got %s", want, got)}
	}
	return Result{Status: "ok", Path: dest, ContentLength: n, SHA256: hex.EncodeToString(sh.Sum(nil))}
}

func firstURL(plan model.DownloadPlan) string {
	list := plan.URLList()
	if len(list) == 0 {
		return ""
	}
	return list[0]
}
