package strategy

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/dataset-commons/dc-pipeline/internal/model"
)

// FetchGit performs a shallow clone (depth 1) of the target's repository
// URL, then checks the resulting tree size against the target's
// max_bytes / run budget after the fact, since git has no way to cap
// clone size up front. A clone that blows the budget is removed rather
// than left as a partial, unaccounted-for tree.
func FetchGit(env Env, row model.QueueRow, outDir string) []Result {
	urls := row.Download.URLList()
	if len(urls) == 0 {
		return []Result{{Status: "error", Error: "no urls configured"}}
	}
	repoURL := urls[0]
	dest := filepath.Join(outDir, "repo")
	if env.Overwrite {
		os.RemoveAll(dest)
	}
	if _, err := os.Stat(dest); err == nil && env.Resume {
		size, _ := dirSize(dest)
		return []Result{{Status: "ok", Path: dest, ContentLength: size, Message: "reused existing clone"}}
	}

	ctx, cancel := context.WithTimeout(env.Ctx, 30*time.Minute)
	defer cancel()
	cmd := exec.CommandContext(ctx, "git", "clone", "--depth", "1", "--single-branch", repoURL, dest)
	if out, err := cmd.CombinedOutput(); err != nil {
		return []Result{{Status: "error", Error: "git clone failed: " + err.Error(), Message: string(out)}}
	}

	size, err := dirSize(dest)
	if err != nil {
		return []Result{{Status: "error", Error: err.Error()}}
	}

	maxBytes := row.Download.MaxBytes
	if maxBytes > 0 && size > maxBytes {
		os.RemoveAll(dest)
		return []Result{{Status: "error", Error: "cloned tree exceeds max_bytes", LimitType: "bytes_per_target"}}
	}
	if env.Enforcer != nil {
		if err := env.Enforcer.AddBytes(size, size); err != nil {
			os.RemoveAll(dest)
			return []Result{{Status: "error", Error: err.Error()}}
		}
	}
	return []Result{{Status: "ok", Path: dest, ContentLength: size}}
}

func dirSize(root string) (int64, error) {
	var total int64
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total, err
}
