package strategy

import "github.com/dataset-commons/dc-pipeline/internal/model"

// FetchNone handles the "none" strategy: targets that are cataloged for
// licensing/classification purposes only and never acquired (e.g. a
// record-level dataset accessed exclusively through a partner API). It is
// not an error condition; RunAcquire counts noop results separately from
// ok/error so dry-run summaries don't conflate the two.
func FetchNone(env Env, row model.QueueRow, outDir string) []Result {
	return []Result{{Status: "noop", Message: "strategy none: no acquisition performed"}}
}
