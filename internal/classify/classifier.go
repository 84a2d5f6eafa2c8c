package classify

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dataset-commons/dc-pipeline/internal/denylist"
	"github.com/dataset-commons/dc-pipeline/internal/ledger"
	"github.com/dataset-commons/dc-pipeline/internal/logging"
	"github.com/dataset-commons/dc-pipeline/internal/model"
	"github.com/dataset-commons/dc-pipeline/internal/netguard"
	"github.com/dataset-commons/dc-pipeline/internal/obs"
)

// AuditSink is the optional secondary mirror for decision bundles.
// internal/audit/postgres implements this; a nil Sink on Classifier
// means bundles are written only to the JSON/JSONL files below.
type AuditSink interface {
	RecordDecision(ctx context.Context, bundle model.DecisionBundle) error
}

// Classifier runs the classification operation over a set of targets,
// against a fixed LicenseMap and Denylist, writing every required
// output artifact atomically.
type Classifier struct {
	ManifestsRoot string
	QueuesRoot    string
	LedgerRoot    string
	RunID         string

	LicenseMap model.LicenseMap
	Matcher    *denylist.Matcher

	FetchConfig FetchConfig
	Logger      *logging.Logger
	Obs         *obs.Ctx
	Audit       AuditSink
}

// RunResult summarizes one ClassifyAll invocation.
type RunResult struct {
	Total   int
	Green   int
	Yellow  int
	Red     int
	Errors  int
}

// ClassifyAll is the classifier's single operation: evidence fetch,
// SPDX resolution, denylist matching, bucket decision, and every
// output artifact (manifests, queues, ledger, optional audit mirror).
func (c *Classifier) ClassifyAll(ctx context.Context, targets []*model.Target) (*RunResult, error) {
	result := &RunResult{}
	var evidenceChanges []model.EvidenceSnapshot
	metrics := map[string]int{}

	green := ledger.NewJSONLAppender(filepath.Join(c.QueuesRoot, "green_download.jsonl"))
	yellow := ledger.NewJSONLAppender(filepath.Join(c.QueuesRoot, "yellow_pipeline.jsonl"))
	red := ledger.NewJSONLAppender(filepath.Join(c.QueuesRoot, "red_rejected.jsonl"))

	for _, t := range targets {
		if !t.Enabled {
			continue
		}
		result.Total++

		ctx, done := c.Obs.StartSpan(ctx, "classify.target")
		row, bundle, err := c.classifyOne(ctx, t)
		done(obs.SpanAttrs{TargetID: t.ID, Bucket: string(row.Bucket)})
		if err != nil {
			result.Errors++
			c.logger().WithField("target_id", t.ID).Error("classify target: " + err.Error())
			continue
		}

		switch row.Bucket {
		case model.BucketGreen:
			result.Green++
			err = green.Append(row)
		case model.BucketRed:
			result.Red++
			err = red.Append(row)
		default:
			result.Yellow++
			err = yellow.Append(row)
		}
		if err != nil {
			return result, fmt.Errorf("appending queue row for %s: %w", t.ID, err)
		}

		manifestDir := filepath.Join(c.ManifestsRoot, sanitizeTID(t.ID))
		if err := ledger.WriteAtomicJSON(filepath.Join(manifestDir, "evaluation.json"), row); err != nil {
			return result, fmt.Errorf("writing evaluation.json for %s: %w", t.ID, err)
		}
		if bundle.EvidenceSnapshot != nil {
			if err := ledger.WriteAtomicJSON(filepath.Join(manifestDir, "license_evidence.json"), bundle.EvidenceSnapshot); err != nil {
				return result, fmt.Errorf("writing license_evidence.json for %s: %w", t.ID, err)
			}
			if bundle.EvidenceSnapshot.RawChangedFromPrevious || bundle.EvidenceSnapshot.NormalizedChangedFromPrevious {
				evidenceChanges = append(evidenceChanges, *bundle.EvidenceSnapshot)
			}
		}

		if len(bundle.ContentChecks) > 0 {
			checksDir := filepath.Join(c.LedgerRoot, c.RunID, sanitizeTID(t.ID), "checks")
			for check, action := range bundle.ContentChecks {
				record := map[string]interface{}{"check": check, "action": action, "target_id": t.ID}
				if err := ledger.WriteAtomicJSON(filepath.Join(checksDir, check+".json"), record); err != nil {
					return result, fmt.Errorf("writing check %s for %s: %w", check, t.ID, err)
				}
			}
		}

		c.metricsBump(metrics, row.Bucket)

		if c.Audit != nil {
			if err := c.Audit.RecordDecision(ctx, bundle); err != nil {
				c.logger().WithField("target_id", t.ID).Warn("audit sink: " + err.Error())
			}
		}
	}

	if err := c.writeRunSummary(result); err != nil {
		return result, err
	}
	if err := c.writeLedgerArtifacts(metrics, evidenceChanges); err != nil {
		return result, err
	}
	return result, nil
}

// readReviewSignoff reads manifestDir/review_signoff.json, a human
// review decision recorded by a process outside this one. A missing
// file is not an error; classifyOne simply proceeds without a signoff.
func readReviewSignoff(manifestDir string) (*model.Signoff, error) {
	var signoff model.Signoff
	if err := ledger.ReadJSON(filepath.Join(manifestDir, "review_signoff.json"), &signoff); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return &signoff, nil
}

func (c *Classifier) classifyOne(ctx context.Context, t *model.Target) (model.QueueRow, model.DecisionBundle, error) {
	manifestDir := filepath.Join(c.ManifestsRoot, sanitizeTID(t.ID))

	snapshot, err := FetchEvidence(ctx, c.FetchConfig, t, manifestDir)
	if err != nil {
		return model.QueueRow{}, model.DecisionBundle{}, err
	}

	var evidenceText, fetchErr string
	if snapshot != nil {
		fetchErr = snapshot.Error
		if b, err := os.ReadFile(filepath.Join(manifestDir, "license_evidence.txt")); err == nil {
			evidenceText = string(b)
		}
	}
	if t.LicenseEvidence.URL != "" && snapshot == nil {
		fetchErr = "no_fetch_missing_evidence"
	}

	if signoff, err := readReviewSignoff(manifestDir); err == nil && signoff != nil {
		t.Signoff = signoff
	}

	resolved := SpdxResolve(t.LicenseEvidence.SPDXHint, evidenceText, c.LicenseMap.Normalize)
	hits := c.Matcher.Match(t)

	decision := BucketDecide(BucketInput{
		Target:              t,
		LicenseMap:          c.LicenseMap,
		DenylistHits:        hits,
		EvidenceText:        evidenceText,
		EvidenceFetchError:  fetchErr,
		Resolved:            resolved,
		ContentCheckResults: t.ContentCheckActions,
		SignoffApproved:     t.Signoff != nil && t.Signoff.Status == "approved",
	})

	decision = c.applyEvidenceChangePolicy(t, snapshot, decision)

	row := model.QueueRow{
		ID:                     t.ID,
		Name:                   t.Name,
		Bucket:                 decision.Bucket,
		LicenseProfile:         t.LicenseProfile,
		ResolvedSPDX:           resolved.SPDX,
		ResolvedSPDXConfidence: resolved.Confidence,
		RestrictionHits:        decision.RestrictionHits,
		LicenseEvidenceURL:     t.LicenseEvidence.URL,
		ManifestDir:            manifestDir,
		Download:               t.Download,
		Enabled:                t.Enabled,
		ContentChecks:          t.ContentChecks,
		ContentCheckActions:    t.ContentCheckActions,
		RoutingSubject:         t.Routing.Subject,
		RoutingDomain:          t.Routing.Domain,
		RoutingCategory:        t.Routing.Category,
		RoutingLevel:           t.Routing.Level,
		RoutingGranularity:     t.Routing.Granularity,
		RoutingConfidence:      t.Routing.Confidence,
		RoutingReason:          t.Routing.Reason,
		OutputPool:             decision.OutputPool,
		BucketReason:           decision.Reason,
	}
	if t.Signoff != nil {
		row.SignoffRawSHA256 = t.Signoff.RawSHA256
		row.SignoffNormalizedSHA256 = t.Signoff.NormalizedSHA256
	}
	if t.RequireYellowSignoff || t.AllowWithoutSignoff {
		row.Signals = map[string]interface{}{
			"require_yellow_signoff": t.RequireYellowSignoff,
			"allow_without_signoff":  t.AllowWithoutSignoff,
		}
	}

	bundle := model.DecisionBundle{
		TargetID:            t.ID,
		Decision:             decision.Bucket,
		DecidedAtUTC:         time.Now().UTC().Format(time.RFC3339),
		DecidedBy:            "classifier",
		RulesFired:           decision.RulesFired,
		PrimaryRule:          decision.PrimaryRule,
		EvidenceSnapshot:     snapshot,
		DenylistMatches:      hits,
		ContentChecks:        t.ContentCheckActions,
		BundleSchemaVersion:  model.CurrentBundleSchemaVersion,
	}
	if t.Signoff != nil {
		bundle.Signoff = &model.SignoffRecord{Status: t.Signoff.Status, By: t.Signoff.By, At: t.Signoff.At}
	}

	return row, bundle, nil
}

// applyEvidenceChangePolicy implements the demotion rule: a signoff
// recorded against a prior snapshot whose hashes no longer match the
// current fetch demotes GREEN to YELLOW and forces review.
func (c *Classifier) applyEvidenceChangePolicy(t *model.Target, snapshot *model.EvidenceSnapshot, d Decision) Decision {
	if t.Signoff == nil || snapshot == nil || d.Bucket != model.BucketGreen {
		return d
	}
	rawMismatch := t.Signoff.RawSHA256 != "" && t.Signoff.RawSHA256 != snapshot.RawSHA256
	normMismatch := t.Signoff.NormalizedSHA256 != "" && t.Signoff.NormalizedSHA256 != snapshot.NormalizedSHA256
	cosmetic := rawMismatch && !normMismatch && t.Signoff.NormalizedSHA256 != "" && snapshot.NormalizedSHA256 != "" && !snapshot.TextExtractionFailed

	snapshot.RawChangedFromPrevious = rawMismatch
	snapshot.NormalizedChangedFromPrevious = normMismatch
	snapshot.CosmeticChange = cosmetic

	var changedRequiresReview bool
	switch c.LicenseMap.EvidenceChangePolicy {
	case model.EvidencePolicyRaw:
		changedRequiresReview = rawMismatch
	case model.EvidencePolicyNormalized:
		changedRequiresReview = normMismatch
	default: // either, or unset
		changedRequiresReview = rawMismatch || normMismatch
	}
	if cosmetic && c.LicenseMap.CosmeticChangePolicy == model.CosmeticTreatAsChange {
		changedRequiresReview = true
	}
	if cosmetic && c.LicenseMap.CosmeticChangePolicy != model.CosmeticTreatAsChange {
		// cosmetic-only changes are recorded but don't themselves force review
		changedRequiresReview = normMismatch
	}

	if changedRequiresReview {
		d.Bucket = model.BucketYellow
		d.ReviewRequired = true
		d.PrimaryRule = "evidence_change.review_required"
		d.Reason = "evidence snapshot changed since signoff was recorded"
	}
	return d
}

func (c *Classifier) metricsBump(m map[string]int, b model.Bucket) {
	m[string(b)]++
	if c.Obs != nil && c.Obs.Metrics != nil {
		c.Obs.Metrics.TargetsProcessed.WithLabelValues(c.Obs.Pipeline, string(b)).Inc()
	}
}

func (c *Classifier) writeRunSummary(r *RunResult) error {
	path := filepath.Join(c.QueuesRoot, "run_summary.json")
	if err := ledger.WriteAtomicJSON(path, r); err != nil {
		return err
	}
	report := fmt.Sprintf(
		"dry run report\ntotal=%d green=%d yellow=%d red=%d errors=%d\n",
		r.Total, r.Green, r.Yellow, r.Red, r.Errors,
	)
	return writeTextFile(filepath.Join(c.QueuesRoot, "dry_run_report.txt"), report)
}

func (c *Classifier) writeLedgerArtifacts(metrics map[string]int, changes []model.EvidenceSnapshot) error {
	runDir := filepath.Join(c.LedgerRoot, c.RunID)
	if err := ledger.WriteAtomicJSON(filepath.Join(runDir, "policy_snapshot.json"), c.LicenseMap); err != nil {
		return err
	}
	if err := ledger.WriteAtomicJSON(filepath.Join(runDir, "metrics.json"), metrics); err != nil {
		return err
	}
	changesAppender := ledger.NewJSONLAppender(filepath.Join(runDir, "evidence_changes.jsonl"))
	for _, change := range changes {
		if err := changesAppender.Append(change); err != nil {
			return err
		}
	}
	return nil
}

func (c *Classifier) logger() *logging.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return logging.New(logging.InfoLevel, logging.TextFormat, nil).WithComponent("classify")
}

func sanitizeTID(tid string) string {
	return filepath.Clean("/" + tid)[1:]
}

// DefaultAllowlist builds a netguard.Allowlist from a classifier's
// configured internal-mirror entries, for use as FetchConfig.Allowlist.
func DefaultAllowlist(hostsAndCIDRs []string) *netguard.Allowlist {
	return netguard.NewAllowlist(hostsAndCIDRs)
}
