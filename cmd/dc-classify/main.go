// Command dc-classify evaluates a target catalog's license posture and
// writes the GREEN/YELLOW/RED routing queues, manifests, and ledger
// artifacts for one run.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/dataset-commons/dc-pipeline/internal/audit/postgres"
	"github.com/dataset-commons/dc-pipeline/internal/classify"
	"github.com/dataset-commons/dc-pipeline/internal/config"
	"github.com/dataset-commons/dc-pipeline/internal/dashboard"
	"github.com/dataset-commons/dc-pipeline/internal/denylist"
	"github.com/dataset-commons/dc-pipeline/internal/logging"
	"github.com/dataset-commons/dc-pipeline/internal/model"
	"github.com/dataset-commons/dc-pipeline/internal/netguard"
	"github.com/dataset-commons/dc-pipeline/internal/obs"
)

func main() {
	configPath := flag.String("config", "", "path to JSON config file")
	preset := flag.String("preset", "", "named config preset (default, strict, offline)")
	catalogPath := flag.String("catalog", "", "path to the target catalog (YAML)")
	runID := flag.String("run-id", "run-local", "identifier for this run's ledger directory")
	noFetch := flag.Bool("no-fetch", false, "skip evidence fetch, re-reading stored snapshots only")
	dashboardURL := flag.String("dashboard-url", "", "base URL of a running dc-dashboard to report progress to (optional)")
	flag.Parse()

	dash := dashboard.NewClient(*dashboardURL)

	cfg, err := loadConfig(*configPath, *preset)
	if err != nil {
		fatal(err)
	}
	if *noFetch {
		cfg.Classifier.NoFetch = true
	}
	if *catalogPath == "" {
		fatal(fmt.Errorf("-catalog is required"))
	}

	level, _ := logging.ParseLevel(cfg.Observability.LogLevel)
	format := logging.TextFormat
	if cfg.Observability.LogFormat == "json" {
		format = logging.JSONFormat
	}
	logger := logging.New(level, format, os.Stderr).WithComponent("dc-classify")

	targets, err := model.LoadCatalog(*catalogPath)
	if err != nil {
		fatal(fmt.Errorf("loading catalog: %w", err))
	}
	licenseMap, err := model.LoadLicenseMap(cfg.Classifier.LicenseMapPath)
	if err != nil {
		fatal(fmt.Errorf("loading license map: %w", err))
	}
	denylistDoc, err := model.LoadDenylist(cfg.Classifier.DenylistPath)
	if err != nil {
		fatal(fmt.Errorf("loading denylist: %w", err))
	}
	matcher, err := denylist.NewMatcher(denylistDoc)
	if err != nil {
		fatal(fmt.Errorf("building denylist matcher: %w", err))
	}

	allowlist := netguard.NewAllowlist(cfg.Network.InternalMirrorAllowlist)
	fetchCfg := classify.DefaultFetchConfig()
	fetchCfg.NoFetch = cfg.Classifier.NoFetch
	fetchCfg.AllowPrivateHosts = cfg.Network.AllowNonGlobalDownloadHosts
	fetchCfg.Allowlist = allowlist
	fetchCfg.MaxAttempts = cfg.Network.FetchMaxAttempts

	classifier := &classify.Classifier{
		ManifestsRoot: cfg.Classifier.ManifestsRoot,
		QueuesRoot:    cfg.Classifier.QueuesRoot,
		LedgerRoot:    cfg.Classifier.LedgerRoot,
		RunID:         *runID,
		LicenseMap:    licenseMap,
		Matcher:       matcher,
		FetchConfig:   fetchCfg,
		Logger:        logger,
		Obs:           obs.New("classifier"),
	}

	ctx := context.Background()
	if cfg.Classifier.AuditDSN != "" {
		store, err := postgres.NewStore(ctx, postgres.Config{ConnectionString: cfg.Classifier.AuditDSN})
		if err != nil {
			logger.Warn("audit mirror unavailable, continuing without it", map[string]interface{}{"error": err.Error()})
		} else {
			defer store.Close()
			if err := store.Migrate(ctx); err != nil {
				logger.Warn("audit mirror migration failed, continuing without it", map[string]interface{}{"error": err.Error()})
			} else {
				classifier.Audit = store
			}
		}
	}

	result, err := classifier.ClassifyAll(ctx, targets)
	if err != nil {
		fatal(err)
	}
	logger.Info("classify run complete", map[string]interface{}{
		"total": result.Total, "green": result.Green, "yellow": result.Yellow,
		"red": result.Red, "errors": result.Errors,
	})
	_ = dash.Post("classify.summary", result)
	if result.Errors > 0 {
		os.Exit(1)
	}
}

func loadConfig(configPath, preset string) (*config.Config, error) {
	if preset != "" {
		cfg, err := config.Preset(preset)
		if err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return config.Load(configPath)
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "dc-classify:", err)
	os.Exit(1)
}
