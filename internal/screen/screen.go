// Package screen implements the yellow screen stage: per-target raw
// payloads are read, filtered and transformed by a per-domain module,
// and sharded into canonical output records, with rejected records
// recorded to a pitch ledger rather than silently dropped.
package screen

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dataset-commons/dc-pipeline/internal/dedup"
	"github.com/dataset-commons/dc-pipeline/internal/ledger"
	"github.com/dataset-commons/dc-pipeline/internal/logging"
	"github.com/dataset-commons/dc-pipeline/internal/model"
	"github.com/dataset-commons/dc-pipeline/internal/obs"
	"github.com/dataset-commons/dc-pipeline/internal/screen/domain"
	"github.com/dataset-commons/dc-pipeline/internal/screen/shard"
)

// Config configures one Screen run.
type Config struct {
	DatasetRoot        string
	LedgerRoot         string
	PitchRoot          string
	RunID              string
	MaxRecordsPerShard int
	Compression        bool
	PitchSampleLimit   int
	PitchTextLimit     int

	// DedupBackend selects the near-duplicate detector used across the
	// whole run ("minhash", "jaccard"); empty disables dedup entirely,
	// since running a Detector over every record isn't free.
	DedupBackend string
	DedupOptions dedup.Options
}

// PitchRecord is one rejected-record entry appended to the pitch ledger.
type PitchRecord struct {
	TargetID string `json:"target_id"`
	Reason   string `json:"reason"`
	Text     string `json:"text,omitempty"`
}

// TargetSummary is one target's screening outcome.
type TargetSummary struct {
	ID       string `json:"id"`
	Status   string `json:"status"` // ok, skipped
	Reason   string `json:"reason,omitempty"`
	Accepted int    `json:"accepted"`
	Pitched  int    `json:"pitched"`
}

// Summary aggregates one Screen.Run call.
type Summary struct {
	Total, Accepted, Pitched, Skipped int
	Targets                           []TargetSummary
}

// Screen owns the config for one run.
type Screen struct {
	Config Config
	Logger *logging.Logger
	Obs    *obs.Ctx
}

func (s *Screen) logger() *logging.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return logging.New(logging.InfoLevel, logging.TextFormat, os.Stderr).WithComponent("screen")
}

// Run reads queuePath (typically yellow_pipeline.jsonl), walks each
// enabled row's acquired directory under DatasetRoot, and screens every
// raw record found through the row's domain module.
func (s *Screen) Run(ctx context.Context, queuePath string) (*Summary, error) {
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

	pitchSampleLimit := s.Config.PitchSampleLimit
	if pitchSampleLimit <= 0 {
		pitchSampleLimit = 20
	}
	pitchTextLimit := s.Config.PitchTextLimit
	if pitchTextLimit <= 0 {
		pitchTextLimit = 2000
	}

	passedLedger := ledger.NewJSONLAppender(filepath.Join(s.Config.LedgerRoot, s.Config.RunID, "yellow_passed.jsonl"))
	pitchedLedger := ledger.NewJSONLAppender(filepath.Join(s.Config.LedgerRoot, s.Config.RunID, "yellow_pitched.jsonl"))
	pitchSample := ledger.NewJSONLAppender(filepath.Join(s.Config.PitchRoot, "yellow_pitch.jsonl"))

	var detector dedup.Detector
	if s.Config.DedupBackend != "" {
		detector = dedup.New(s.Config.DedupBackend, s.Config.DedupOptions)
	}

	summary := &Summary{Total: len(rows)}
	for _, row := range rows {
		ts, serr := s.screenOne(ctx, row, passedLedger, pitchedLedger, pitchSample, pitchSampleLimit, pitchTextLimit, detector)
		summary.Targets = append(summary.Targets, ts)
		if serr != nil {
			return summary, serr
		}
		summary.Accepted += ts.Accepted
		summary.Pitched += ts.Pitched
		if ts.Status == "skipped" {
			summary.Skipped++
		}
	}
	return summary, nil
}

func (s *Screen) screenOne(ctx context.Context, row model.QueueRow, passedLedger, pitchedLedger, pitchSample *ledger.JSONLAppender, pitchSampleLimit, pitchTextLimit int, detector dedup.Detector) (TargetSummary, error) {
	if reason, unmet := signoffUnmet(row); unmet {
		_ = pitchedLedger.Append(PitchRecord{TargetID: row.ID, Reason: reason})
		return TargetSummary{ID: row.ID, Status: "skipped", Reason: reason}, nil
	}

	pool := row.OutputPool
	if pool == "" {
		pool = model.ProfilePool(row.LicenseProfile)
	}
	srcDir := filepath.Join(s.Config.DatasetRoot, string(row.Bucket), string(pool), sanitizeTID(row.ID))

	mod := domain.Lookup(row.RoutingDomain)
	sharderOpt := shard.Options{
		Dir:                filepath.Join(s.Config.DatasetRoot, "screened_yellow", string(pool), "shards"),
		Prefix:             "yellow_shard",
		MaxRecordsPerShard: s.Config.MaxRecordsPerShard,
		Compression:        s.Config.Compression,
	}
	sh, err := shard.NewSharder(sharderOpt)
	if err != nil {
		return TargetSummary{ID: row.ID, Status: "skipped", Reason: err.Error()}, nil
	}
	defer sh.Close()

	filterCtx := domain.FilterContext{
		TargetID:        row.ID,
		RoutingCategory: row.RoutingCategory,
		RoutingLevel:    row.RoutingLevel,
		Extra: map[string]interface{}{
			"pool":            string(pool),
			"pipeline":        "yellow_screen",
			"target_name":     row.Name,
			"source_url":      row.LicenseEvidenceURL,
			"license_profile": string(row.LicenseProfile),
			"license_spdx":    row.ResolvedSPDX,
		},
	}

	ts := TargetSummary{ID: row.ID, Status: "ok"}
	pitchCounts := map[string]int{}

	err = walkRawRecords(srcDir, func(raw domain.RawRecord) error {
		decision := mod.FilterRecord(raw, filterCtx)
		if !decision.Allow {
			ts.Pitched++
			_ = pitchedLedger.Append(PitchRecord{TargetID: row.ID, Reason: decision.Reason})
			if pitchCounts[decision.Reason] < pitchSampleLimit {
				pitchCounts[decision.Reason]++
				text := decision.Text
				if len(text) > pitchTextLimit {
					text = text[:pitchTextLimit]
				}
				_ = pitchSample.Append(PitchRecord{TargetID: row.ID, Reason: decision.Reason, Text: text})
			}
			return nil
		}
		rec, err := mod.TransformRecord(raw, decision, filterCtx)
		if err != nil {
			return fmt.Errorf("output record contract: %w", err)
		}
		if err := rec.Validate(); err != nil {
			return err
		}

		if detector != nil {
			dedupeText, hasKey := decision.Text, decision.Text != ""
			if keyer, ok := mod.(domain.DedupeKeyer); ok {
				dedupeText, hasKey = keyer.DedupeKey(raw, decision)
			}
			if hasKey {
				docID := rec.DatasetID + "/" + rec.RowID
				result, err := detector.Query(dedupeText)
				if err != nil {
					return fmt.Errorf("dedup query: %w", err)
				}
				if result.IsDuplicate {
					ts.Pitched++
					_ = pitchedLedger.Append(PitchRecord{TargetID: row.ID, Reason: "near_duplicate"})
					return nil
				}
				if err := detector.Add(docID, dedupeText); err != nil {
					return fmt.Errorf("dedup add: %w", err)
				}
			}
		}

		if err := sh.Append(rec); err != nil {
			return err
		}
		ts.Accepted++
		_ = passedLedger.Append(rec)
		return nil
	})
	if err != nil {
		ts.Status = "skipped"
		ts.Reason = err.Error()
		var cv *model.ContractViolation
		if errors.As(err, &cv) {
			return ts, err
		}
	}
	return ts, nil
}

// walkRawRecords reads every "*.jsonl" file directly under dir, calling
// onRecord for each line decoded as a RawRecord.
func walkRawRecords(dir string, onRecord func(domain.RawRecord) error) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jsonl") {
			continue
		}
		if err := readJSONLFile(filepath.Join(dir, e.Name()), onRecord); err != nil {
			return err
		}
	}
	return nil
}

func readJSONLFile(path string, onRecord func(domain.RawRecord) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var raw domain.RawRecord
		if err := json.Unmarshal(line, &raw); err != nil {
			return err
		}
		if err := onRecord(raw); err != nil {
			return err
		}
	}
	return sc.Err()
}

func sanitizeTID(tid string) string {
	return filepath.Clean("/" + tid)[1:]
}

// signoffUnmet reports whether row requires a yellow-stage human signoff
// that it does not (yet) have, or whose signoff was made against a
// since-changed evidence snapshot. require_yellow_signoff and
// allow_without_signoff are carried in row.Signals since QueueRow is the
// flattened, JSONL-serialized view the classifier produces.
func signoffUnmet(row model.QueueRow) (string, bool) {
	if row.Bucket != model.BucketYellow {
		return "", false
	}
	required, _ := row.Signals["require_yellow_signoff"].(bool)
	if !required {
		return "", false
	}
	allowWithout, _ := row.Signals["allow_without_signoff"].(bool)
	if allowWithout {
		return "", false
	}
	if row.SignoffIsStale {
		return "yellow_signoff_rejected", true
	}
	if row.SignoffRawSHA256 == "" && row.SignoffNormalizedSHA256 == "" {
		return "yellow_signoff_missing", true
	}
	return "", false
}
