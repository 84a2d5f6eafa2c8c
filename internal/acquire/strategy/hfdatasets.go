package strategy

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/dataset-commons/dc-pipeline/internal/model"
)

// FetchHFDatasets shells out to a small python snippet that calls
// datasets.load_dataset(...).save_to_disk(outDir), reusing the
// huggingface_hub/datasets caching and auth handling rather than
// reimplementing the Hub's download protocol.
func FetchHFDatasets(env Env, row model.QueueRow, outDir string) []Result {
	datasetID, _ := row.Download.Config["dataset_id"].(string)
	if datasetID == "" {
		datasetID = firstURL(row.Download)
	}
	if datasetID == "" {
		return []Result{{Status: "error", Error: "no huggingface dataset_id configured"}}
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return []Result{{Status: "error", Error: err.Error()}}
	}

	script := `import sys
from datasets import load_dataset
ds = load_dataset(sys.argv[1])
ds.save_to_disk(sys.argv[2])
`
	ctx, cancel := context.WithTimeout(env.Ctx, 2*time.Hour)
	defer cancel()
	cmd := exec.CommandContext(ctx, "python3", "-c", script, datasetID, outDir)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return []Result{{Status: "error", Error: "load_dataset failed: " + err.Error(), Message: string(out)}}
	}

	size, derr := dirSize(outDir)
	if derr != nil {
		return []Result{{Status: "error", Error: derr.Error()}}
	}
	if env.Enforcer != nil {
		if err := env.Enforcer.AddBytes(size, size); err != nil {
			return []Result{{Status: "error", Error: err.Error()}}
		}
	}
	return []Result{{Status: "ok", Path: filepath.Clean(outDir), ContentLength: size}}
}
