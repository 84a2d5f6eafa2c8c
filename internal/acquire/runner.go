// Package acquire implements the download worker: reading one bucket's
// queue file, dispatching each row to its download strategy, and
// recording results to the run summary and ledger. Concurrency is a
// bounded pool with dynamic refill, adapted from the fixed-worker-pool
// pattern this codebase already uses elsewhere for task-shaped
// concurrent work, generalized here to submit the next queued row the
// instant a worker frees up rather than running in fixed batches.
package acquire

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dataset-commons/dc-pipeline/internal/acquire/strategy"
	"github.com/dataset-commons/dc-pipeline/internal/budget"
	"github.com/dataset-commons/dc-pipeline/internal/ledger"
	"github.com/dataset-commons/dc-pipeline/internal/logging"
	"github.com/dataset-commons/dc-pipeline/internal/model"
	"github.com/dataset-commons/dc-pipeline/internal/netguard"
	"github.com/dataset-commons/dc-pipeline/internal/obs"
)

// TargetResult is one row's acquisition outcome, written to run_summary.json
// and the acquire ledger.
type TargetResult struct {
	ID      string            `json:"id"`
	Bucket  model.Bucket      `json:"bucket"`
	Pool    model.OutputPool  `json:"output_pool"`
	Status  string            `json:"status"` // ok, error, noop, skipped
	Results []strategy.Result `json:"results"`
}

// Summary aggregates one RunAcquire call.
type Summary struct {
	Total, OK, Errors, Noop, Skipped int
	BudgetExhausted                  bool
	Targets                          []TargetResult
}

// Runner owns the resources shared across one acquire run: the raw
// output root, worker count, shared byte budget, and network policy.
type Runner struct {
	RawRoot   string
	Workers   int
	RunBudget *budget.RunByteBudget

	LimitFilesPerTarget int
	MaxBytesPerTarget   int64
	MaxBytesPerFile     int64

	Allowlist      *netguard.Allowlist
	AllowNonGlobal bool
	Resolver       netguard.Resolver

	Resume          bool
	Overwrite       bool
	VerifyZenodoMD5 bool

	Handlers map[string]strategy.Handler

	Logger *logging.Logger
	Obs    *obs.Ctx

	LedgerRoot string
	RunID      string
}

func (r *Runner) logger() *logging.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return logging.New(logging.InfoLevel, logging.TextFormat, os.Stderr).WithComponent("acquire")
}

func (r *Runner) handlerFor(name string) strategy.Handler {
	if r.Handlers != nil {
		if h, ok := r.Handlers[name]; ok {
			return h
		}
	}
	return strategy.Lookup(name)
}

// RunAcquire reads queuePath (one of green_download.jsonl /
// yellow_pipeline.jsonl), dispatches each enabled row to its download
// strategy through the bounded worker pool, and returns an aggregate
// Summary. bucket labels the Summary/ledger output only; the actual
// routing decision already happened in internal/classify.
func (r *Runner) RunAcquire(ctx context.Context, queuePath string, bucket model.Bucket) (*Summary, error) {
	workers := r.Workers
	if workers < 1 {
		workers = 1
	}
	obsCtx := r.Obs
	if obsCtx == nil {
		obsCtx = obs.New("acquire")
	}

	var rows []model.QueueRow
	err := ledger.ReadJSONLRows(queuePath, func() interface{} { return &model.QueueRow{} }, func(v interface{}) error {
		row := v.(*model.QueueRow)
		if row.Enabled {
			rows = append(rows, *row)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	summary := &Summary{Total: len(rows), Targets: make([]TargetResult, len(rows))}
	if len(rows) == 0 {
		return summary, nil
	}

	appender := ledger.NewJSONLAppender(filepath.Join(r.LedgerRoot, r.RunID, "acquire_results.jsonl"))

	type job struct {
		idx int
		row model.QueueRow
	}
	jobs := make(chan job)
	var wg sync.WaitGroup
	var exhausted int32

	worker := func() {
		defer wg.Done()
		for j := range jobs {
			if atomic.LoadInt32(&exhausted) == 1 || (r.RunBudget != nil && r.RunBudget.Exhausted()) {
				summary.Targets[j.idx] = TargetResult{ID: j.row.ID, Bucket: j.row.Bucket, Pool: j.row.OutputPool, Status: "skipped"}
				atomic.StoreInt32(&exhausted, 1)
				continue
			}
			tr := r.runOne(ctx, j.row)
			summary.Targets[j.idx] = tr
			_ = appender.Append(tr)
		}
	}

	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go worker()
	}

	// Dynamic refill: the producer feeds the unbuffered jobs channel,
	// so a worker only pulls its next job once it has finished the
	// previous one — there is no fixed-batch boundary like a
	// parallel-map-then-wait would impose.
feed:
	for idx, row := range rows {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- job{idx: idx, row: row}:
		}
		if r.RunBudget != nil && r.RunBudget.Exhausted() {
			atomic.StoreInt32(&exhausted, 1)
		}
	}
	close(jobs)
	wg.Wait()

	for _, tr := range summary.Targets {
		switch tr.Status {
		case "ok":
			summary.OK++
		case "noop":
			summary.Noop++
		case "skipped":
			summary.Skipped++
		case "":
			summary.Skipped++
		default:
			summary.Errors++
		}
	}
	summary.BudgetExhausted = atomic.LoadInt32(&exhausted) == 1
	return summary, nil
}

func (r *Runner) runOne(ctx context.Context, row model.QueueRow) TargetResult {
	ctx, done := (func() (context.Context, func(obs.SpanAttrs)) {
		o := r.Obs
		if o == nil {
			o = obs.New("acquire")
		}
		return o.StartSpan(ctx, "acquire.target")
	})()
	start := time.Now()
	var errType string
	defer func() {
		done(obs.SpanAttrs{TargetID: row.ID, Strategy: string(row.Download.Strategy), Bucket: string(row.Bucket), DurationMS: time.Since(start).Milliseconds(), ErrorType: errType})
	}()

	pool := row.OutputPool
	if pool == "" {
		pool = model.ProfilePool(row.LicenseProfile)
	}
	outDir := filepath.Join(r.RawRoot, string(row.Bucket), string(pool), sanitizeTID(row.ID))
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return TargetResult{ID: row.ID, Bucket: row.Bucket, Pool: pool, Status: "error", Results: []strategy.Result{{Status: "error", Error: err.Error()}}}
	}

	enforcer := budget.NewLimitEnforcer(r.LimitFilesPerTarget, r.MaxBytesPerTarget, r.MaxBytesPerFile, r.RunBudget)
	resolver := r.Resolver
	if resolver == nil {
		resolver = netguard.StdResolver{}
	}

	env := strategy.Env{
		Ctx:             ctx,
		Enforcer:        enforcer,
		Allowlist:       r.Allowlist,
		AllowNonGlobal:  r.AllowNonGlobal,
		Resolver:        resolver,
		Resume:          r.Resume,
		Overwrite:       r.Overwrite,
		VerifyZenodoMD5: r.VerifyZenodoMD5,
	}

	handler := r.handlerFor(string(row.Download.Strategy))
	results := handler.Fetch(env, row, outDir)

	status := "ok"
	for _, res := range results {
		if res.Status == "error" {
			status = "error"
			errType = res.LimitType
			if errType == "" {
				errType = "fetch_error"
			}
			break
		}
	}
	if status == "ok" && len(results) > 0 && results[0].Status == "noop" {
		status = "noop"
	}

	return TargetResult{ID: row.ID, Bucket: row.Bucket, Pool: pool, Status: status, Results: results}
}

func sanitizeTID(tid string) string {
	return filepath.Clean("/" + tid)[1:]
}
