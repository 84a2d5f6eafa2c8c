package classify

import (
	"strings"

	"github.com/dataset-commons/dc-pipeline/internal/denylist"
	"github.com/dataset-commons/dc-pipeline/internal/model"
)

// Decision is the full output of BucketDecide: the bucket, the rule
// that primarily drove it, every rule that fired (for the audit
// trail), and the restriction-phrase hits (carried into the QueueRow).
type Decision struct {
	Bucket          model.Bucket
	PrimaryRule     string
	RulesFired      []model.RuleFired
	RestrictionHits []string
	ReviewRequired  bool
	OutputPool      model.OutputPool
	Reason          string
}

// BucketInput bundles everything BucketDecide needs, matching the
// variables the bucket decision depends on.
type BucketInput struct {
	Target            *model.Target
	LicenseMap        model.LicenseMap
	DenylistHits      []model.Hit
	EvidenceText      string
	EvidenceFetchError string
	Resolved          ResolvedSPDX
	ContentCheckResults map[string]model.ContentCheckAction
	SignoffApproved   bool
}

// BucketDecide implements the bucket decision tie-break ladder, in order, first
// match wins, then applies the content-check downgrade lattice.
func BucketDecide(in BucketInput) Decision {
	var rules []model.RuleFired
	for _, h := range in.DenylistHits {
		rules = append(rules, model.RuleFired{
			RuleID: h.RuleID, RuleType: h.RuleType, Severity: string(h.Severity),
			Field: h.Field, Pattern: h.Pattern, Reason: h.Reason, Link: h.Link,
		})
	}

	restrictionHits := containsAny(in.EvidenceText, in.LicenseMap.RestrictionPhrases)
	spdxAllowed := in.LicenseMap.IsAllowed(in.Resolved.SPDX)
	confOK := in.Resolved.Confidence >= in.LicenseMap.MinLicenseConfidence
	manualReviewRequired := in.Target.HasGate(model.GateManualLegalReview)

	bucket, primary, reason := tieBreak(in, restrictionHits, spdxAllowed, confOK, manualReviewRequired)

	// Content-check downgrade lattice: block -> RED, quarantine -> YELLOW+quarantine pool.
	maxAction := model.MaxAction(actionValues(in.ContentCheckResults)...)
	pool := model.ProfilePool(in.Target.LicenseProfile)
	switch maxAction {
	case model.ActionBlock:
		bucket = model.BucketRed
		primary = "content_check.block"
		reason = "a content check returned block"
	case model.ActionQuarantine:
		if bucket == model.BucketGreen {
			bucket = model.BucketYellow
			primary = "content_check.quarantine"
			reason = "a content check returned quarantine, downgrading GREEN to YELLOW"
		}
		pool = model.PoolQuarantine
	}

	reviewRequired := in.Target.ReviewRequired
	if in.LicenseMap.RequireYellowSignoff && bucket == model.BucketYellow && !in.SignoffApproved {
		reviewRequired = true
	}

	return Decision{
		Bucket:          bucket,
		PrimaryRule:     primary,
		RulesFired:      rules,
		RestrictionHits: restrictionHits,
		ReviewRequired:  reviewRequired,
		OutputPool:      pool,
		Reason:          reason,
	}
}

func tieBreak(in BucketInput, restrictionHits []string, spdxAllowed, confOK, manualReviewRequired bool) (model.Bucket, string, string) {
	// 1. hard_red denylist hit dominates everything.
	if model.AnyHardRed(in.DenylistHits) {
		return model.BucketRed, hardRedRuleID(in.DenylistHits), "hard_red denylist match"
	}
	// 2. resolved SPDX matches a deny prefix.
	if in.LicenseMap.DeniedByPrefix(in.Resolved.SPDX) {
		return model.BucketRed, "license_map.deny_prefix", "resolved SPDX matches a deny prefix"
	}
	// 3. evidence fetch errored and snapshot_terms gate required.
	if in.EvidenceFetchError != "" && in.Target.HasGate(model.GateSnapshotTerms) {
		return model.BucketYellow, "gate.snapshot_terms.fetch_error", "evidence fetch failed and snapshot_terms gate is required"
	}
	// 4. force_yellow denylist hit.
	if model.AnyForceYellow(in.DenylistHits) {
		return model.BucketYellow, forceYellowRuleID(in.DenylistHits), "force_yellow denylist match"
	}
	// 5. restriction_phrase_scan gate and hits found.
	if in.Target.HasGate(model.GateRestrictionPhrase) && len(restrictionHits) > 0 {
		return model.BucketYellow, "gate.restriction_phrase_scan", "restriction phrases found in evidence text"
	}
	// 6. fully green path.
	if spdxAllowed && confOK && !manualReviewRequired && (!in.Target.ReviewRequired || in.SignoffApproved) {
		return model.BucketGreen, "license_map.allowed", "resolved SPDX allowed with sufficient confidence"
	}
	// 7. default.
	return model.BucketYellow, "default.not_green", "did not qualify for GREEN under current policy"
}

func hardRedRuleID(hits []model.Hit) string {
	for _, h := range hits {
		if h.Severity == model.SeverityHardRed {
			return h.RuleID
		}
	}
	return ""
}

func forceYellowRuleID(hits []model.Hit) string {
	for _, h := range hits {
		if h.Severity == model.SeverityForceYellow {
			return h.RuleID
		}
	}
	return ""
}

func actionValues(m map[string]model.ContentCheckAction) []model.ContentCheckAction {
	out := make([]model.ContentCheckAction, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}

// containsAny returns every phrase that occurs (case-insensitive) in
// text, preserving the order of phrases as declared.
func containsAny(text string, phrases []string) []string {
	var hits []string
	lower := strings.ToLower(text)
	for _, p := range phrases {
		if p == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(p)) {
			hits = append(hits, p)
		}
	}
	return hits
}

// DenylistHitsFor is a small convenience wrapper so callers don't need
// to import internal/denylist directly when they already have a Matcher.
func DenylistHitsFor(m *denylist.Matcher, t *model.Target) []model.Hit {
	return m.Match(t)
}
