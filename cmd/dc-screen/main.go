// Command dc-screen runs the yellow screen stage over one routing
// queue's acquired payloads, filtering and sharding records through the
// configured domain module.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dataset-commons/dc-pipeline/internal/audit/postgres"
	"github.com/dataset-commons/dc-pipeline/internal/config"
	"github.com/dataset-commons/dc-pipeline/internal/dashboard"
	"github.com/dataset-commons/dc-pipeline/internal/logging"
	"github.com/dataset-commons/dc-pipeline/internal/obs"
	"github.com/dataset-commons/dc-pipeline/internal/screen"
)

func main() {
	configPath := flag.String("config", "", "path to JSON config file")
	preset := flag.String("preset", "", "named config preset (default, strict, offline)")
	runID := flag.String("run-id", "run-local", "identifier for this run's ledger directory")
	dashboardURL := flag.String("dashboard-url", "", "base URL of a running dc-dashboard to report progress to (optional)")
	flag.Parse()

	dash := dashboard.NewClient(*dashboardURL)

	cfg, err := loadConfig(*configPath, *preset)
	if err != nil {
		fatal(err)
	}

	level, _ := logging.ParseLevel(cfg.Observability.LogLevel)
	format := logging.TextFormat
	if cfg.Observability.LogFormat == "json" {
		format = logging.JSONFormat
	}
	logger := logging.New(level, format, os.Stderr).WithComponent("dc-screen")

	s := &screen.Screen{
		Config: screen.Config{
			DatasetRoot:        cfg.Screen.DatasetRoot,
			LedgerRoot:         cfg.Classifier.LedgerRoot,
			PitchRoot:          cfg.Screen.PitchRoot,
			RunID:              *runID,
			MaxRecordsPerShard: 50000,
			Compression:        true,
			DedupBackend:       cfg.Screen.DedupBackend,
		},
		Logger: logger,
		Obs:    obs.New("yellow_screen"),
	}

	summary, err := s.Run(context.Background(), filepath.Join(cfg.Classifier.QueuesRoot, "yellow_pipeline.jsonl"))
	if err != nil {
		fatal(err)
	}
	logger.Info("screen run complete", map[string]interface{}{
		"total": summary.Total, "accepted": summary.Accepted,
		"pitched": summary.Pitched, "skipped": summary.Skipped,
	})
	_ = dash.Post("screen.summary", summary)
	mirrorRunSummary(cfg, "screen", *runID, summary, logger)
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
	fmt.Fprintln(os.Stderr, "dc-screen:", err)
	os.Exit(1)
}
