// Command dc-acquire downloads one routing queue's targets (GREEN or
// approved YELLOW) to the staged raw filesystem layout under the
// configured resource budgets.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dataset-commons/dc-pipeline/internal/acquire"
	"github.com/dataset-commons/dc-pipeline/internal/audit/postgres"
	"github.com/dataset-commons/dc-pipeline/internal/budget"
	"github.com/dataset-commons/dc-pipeline/internal/config"
	"github.com/dataset-commons/dc-pipeline/internal/dashboard"
	"github.com/dataset-commons/dc-pipeline/internal/logging"
	"github.com/dataset-commons/dc-pipeline/internal/model"
	"github.com/dataset-commons/dc-pipeline/internal/netguard"
	"github.com/dataset-commons/dc-pipeline/internal/obs"
)

func main() {
	configPath := flag.String("config", "", "path to JSON config file")
	preset := flag.String("preset", "", "named config preset (default, strict, offline)")
	bucketFlag := flag.String("bucket", "green", "which routing queue to acquire: green or yellow")
	workers := flag.Int("workers", 0, "worker count override (0 = use config)")
	runID := flag.String("run-id", "run-local", "identifier for this run's ledger directory")
	dashboardURL := flag.String("dashboard-url", "", "base URL of a running dc-dashboard to report progress to (optional)")
	flag.Parse()

	dash := dashboard.NewClient(*dashboardURL)

	cfg, err := loadConfig(*configPath, *preset)
	if err != nil {
		fatal(err)
	}
	if *workers > 0 {
		cfg.Acquire.Workers = *workers
	}
	if !cfg.Acquire.Execute {
		fmt.Fprintln(os.Stderr, "dc-acquire: acquire.execute is false in config; refusing to run (dry-run mode has no acquire-side effect to perform)")
		os.Exit(1)
	}

	bucket := model.BucketGreen
	queueFile := "green_download.jsonl"
	if *bucketFlag == "yellow" {
		bucket = model.BucketYellow
		queueFile = "yellow_pipeline.jsonl"
	}

	level, _ := logging.ParseLevel(cfg.Observability.LogLevel)
	format := logging.TextFormat
	if cfg.Observability.LogFormat == "json" {
		format = logging.JSONFormat
	}
	logger := logging.New(level, format, os.Stderr).WithComponent("dc-acquire")

	runner := &acquire.Runner{
		RawRoot:             cfg.Acquire.RawRoot,
		Workers:             cfg.Acquire.Workers,
		RunBudget:           budget.NewRunByteBudget(cfg.Budget.RunMaxBytes),
		LimitFilesPerTarget: cfg.Budget.MaxFilesPerTarget,
		MaxBytesPerTarget:   cfg.Budget.MaxBytesPerTarget,
		MaxBytesPerFile:     cfg.Budget.MaxBytesPerFile,
		Allowlist:           netguard.NewAllowlist(cfg.Network.InternalMirrorAllowlist),
		AllowNonGlobal:      cfg.Network.AllowNonGlobalDownloadHosts,
		Resolver:            netguard.StdResolver{},
		Resume:              cfg.Acquire.Resume,
		Overwrite:           cfg.Acquire.Overwrite,
		VerifyZenodoMD5:     cfg.Acquire.VerifyZenodoMD5,
		Logger:              logger,
		Obs:                 obs.New("acquire"),
		LedgerRoot:          "ledger",
		RunID:               *runID,
	}

	summary, err := runner.RunAcquire(context.Background(), filepath.Join(cfg.Classifier.QueuesRoot, queueFile), bucket)
	if err != nil {
		fatal(err)
	}
	logger.Info("acquire run complete", map[string]interface{}{
		"total": summary.Total, "ok": summary.OK, "errors": summary.Errors,
		"noop": summary.Noop, "skipped": summary.Skipped, "budget_exhausted": summary.BudgetExhausted,
	})
	_ = dash.Post("acquire.summary", summary)
	mirrorRunSummary(cfg, "acquire", *runID, summary, logger)
	if summary.Errors > 0 {
		os.Exit(1)
	}
}

func loadConfig(configPath, preset string) (*config.Config, error) {
	if preset != "" {
		return config.Preset(preset)
	}
	return config.Load(configPath)
}

// mirrorRunSummary writes summary to the optional audit mirror when
// cfg.Classifier.AuditDSN is configured. A mirror failure is logged,
// never fatal: the JSONL run artifacts are always the source of truth.
func mirrorRunSummary(cfg *config.Config, stage, runID string, summary interface{}, logger *logging.Logger) {
	if cfg.Classifier.AuditDSN == "" {
		return
	}
	ctx := context.Background()
	store, err := postgres.NewStore(ctx, postgres.Config{ConnectionString: cfg.Classifier.AuditDSN})
	if err != nil {
		logger.Warn("audit mirror unavailable, continuing without it", map[string]interface{}{"error": err.Error()})
		return
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		logger.Warn("audit mirror migration failed, continuing without it", map[string]interface{}{"error": err.Error()})
		return
	}
	if err := store.RecordRunSummary(ctx, stage, runID, summary); err != nil {
		logger.Warn("audit mirror write failed", map[string]interface{}{"error": err.Error()})
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "dc-acquire:", err)
	os.Exit(1)
}
