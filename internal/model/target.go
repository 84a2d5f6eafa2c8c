// Package model holds the declarative data types shared by every stage of
// the pipeline: targets, license policy tables, denylists, evidence
// snapshots, decision bundles, queue rows, canonical output records, and
// checkpoint state. Nothing in this package talks to disk or network —
// it is pure data plus the validation rules the other packages rely on.
package model

// LicenseProfile is the declared license posture of a Target, as set by
// the catalog author. It is distinct from the SPDX identifier resolved
// from evidence text — a target can declare "unknown" and still resolve
// to a concrete SPDX id via normalization rules.
type LicenseProfile string

const (
	ProfilePermissive   LicenseProfile = "permissive"
	ProfilePublicDomain LicenseProfile = "public_domain"
	ProfileCopyleft     LicenseProfile = "copyleft"
	ProfileRecordLevel  LicenseProfile = "record_level"
	ProfileUnknown      LicenseProfile = "unknown"
	ProfileDeny         LicenseProfile = "deny"
)

// OutputPool is the pool a target's payload lands in once acquired/screened.
type OutputPool string

const (
	PoolPermissive OutputPool = "permissive"
	PoolCopyleft   OutputPool = "copyleft"
	PoolQuarantine OutputPool = "quarantine"
)

// ProfilePool maps a LicenseProfile to its default OutputPool. Bucket
// decisions (see Bucket) may override this, e.g. a content check
// returning "quarantine" always forces PoolQuarantine regardless of
// profile.
func ProfilePool(p LicenseProfile) OutputPool {
	switch p {
	case ProfilePermissive, ProfilePublicDomain:
		return PoolPermissive
	case ProfileCopyleft:
		return PoolCopyleft
	default:
		return PoolQuarantine
	}
}

// LicenseGate names one of the three supported review gates a target can
// require before it may pass GREEN.
type LicenseGate string

const (
	GateSnapshotTerms       LicenseGate = "snapshot_terms"
	GateRestrictionPhrase   LicenseGate = "restriction_phrase_scan"
	GateManualLegalReview   LicenseGate = "manual_legal_review"
)

// ContentCheckAction is one point on the downgrade lattice applied to a
// bucket decision: ok < warn < quarantine < block.
type ContentCheckAction string

const (
	ActionOK         ContentCheckAction = "ok"
	ActionWarn       ContentCheckAction = "warn"
	ActionQuarantine ContentCheckAction = "quarantine"
	ActionBlock      ContentCheckAction = "block"
)

var actionRank = map[ContentCheckAction]int{
	ActionOK:         0,
	ActionWarn:       1,
	ActionQuarantine: 2,
	ActionBlock:      3,
}

// MaxAction returns the most severe action among those given, per the
// lattice ok < warn < quarantine < block. An empty slice returns ActionOK.
func MaxAction(actions ...ContentCheckAction) ContentCheckAction {
	max := ActionOK
	maxRank := 0
	for _, a := range actions {
		if r, ok := actionRank[a]; ok && r > maxRank {
			maxRank = r
			max = a
		}
	}
	return max
}

// DownloadStrategy names a recognized acquisition strategy. Unknown
// strategies are not a config error — the acquire dispatcher treats them
// as "none" and records a noop result.
type DownloadStrategy string

const (
	StrategyHTTP               DownloadStrategy = "http"
	StrategyFTP                DownloadStrategy = "ftp"
	StrategyGit                DownloadStrategy = "git"
	StrategyZenodo             DownloadStrategy = "zenodo"
	StrategyFigshare           DownloadStrategy = "figshare"
	StrategyHuggingFaceDatasets DownloadStrategy = "huggingface_datasets"
	StrategyS3Sync             DownloadStrategy = "s3_sync"
	StrategyAWSRequesterPays   DownloadStrategy = "aws_requester_pays"
	StrategyTorrent            DownloadStrategy = "torrent"
	StrategyGithubRelease      DownloadStrategy = "github_release"
	StrategyNone               DownloadStrategy = "none"
)

// DownloadPlan is the acquisition plan embedded in a Target.
type DownloadPlan struct {
	Strategy        DownloadStrategy       `json:"strategy" yaml:"strategy"`
	URL             string                 `json:"url,omitempty" yaml:"url,omitempty"`
	URLs            []string               `json:"urls,omitempty" yaml:"urls,omitempty"`
	Filename        string                 `json:"filename,omitempty" yaml:"filename,omitempty"`
	Filenames       []string               `json:"filenames,omitempty" yaml:"filenames,omitempty"`
	ExpectedSize    int64                  `json:"expected_size,omitempty" yaml:"expected_size,omitempty"`
	ExpectedSHA256  string                 `json:"expected_sha256,omitempty" yaml:"expected_sha256,omitempty"`
	MaxBytes        int64                  `json:"max_bytes,omitempty" yaml:"max_bytes,omitempty"`
	Overwrite       bool                   `json:"overwrite,omitempty" yaml:"overwrite,omitempty"`
	Config          map[string]interface{} `json:"config,omitempty" yaml:"config,omitempty"`
}

// URLList returns a single slice combining URL and URLs, preserving order
// with URL first, for handlers that accept either a singular or plural
// form in the catalog.
func (d DownloadPlan) URLList() []string {
	if d.URL == "" {
		return d.URLs
	}
	out := make([]string, 0, len(d.URLs)+1)
	out = append(out, d.URL)
	out = append(out, d.URLs...)
	return out
}

// LicenseEvidence points at the page or file a target's license claim is
// evidenced by.
type LicenseEvidence struct {
	SPDXHint string `json:"spdx_hint,omitempty" yaml:"spdx_hint,omitempty"`
	URL      string `json:"url,omitempty" yaml:"url,omitempty"`
}

// Routing carries pipeline-agnostic routing hints. Extra has no yaml
// key and catalog loading does not fill it; per-pipeline
// "<pipeline>_routing" blocks in a catalog are not read into it.
type Routing struct {
	Subject     string                 `json:"subject,omitempty" yaml:"subject,omitempty"`
	Domain      string                 `json:"domain,omitempty" yaml:"domain,omitempty"`
	Category    string                 `json:"category,omitempty" yaml:"category,omitempty"`
	Level       string                 `json:"level,omitempty" yaml:"level,omitempty"`
	Granularity string                 `json:"granularity,omitempty" yaml:"granularity,omitempty"`
	Confidence  float64                `json:"confidence,omitempty" yaml:"confidence,omitempty"`
	Reason      string                 `json:"reason,omitempty" yaml:"reason,omitempty"`
	Extra       map[string]interface{} `json:"extra,omitempty" yaml:"-"`
}

// Signoff records a human review decision made against a specific
// evidence snapshot, carrying the hashes it was approved against so a
// later, changed snapshot can be detected as stale (see
// internal/classify's evidence-change policy).
type Signoff struct {
	Status             string `json:"status"`
	By                 string `json:"by"`
	At                 string `json:"at"`
	RawSHA256          string `json:"raw_sha256,omitempty"`
	NormalizedSHA256   string `json:"normalized_sha256,omitempty"`
}

// Target is the declarative acquisition unit: one row of the catalog.
type Target struct {
	ID      string `json:"id" yaml:"id" validate:"required"`
	Name    string `json:"name" yaml:"name"`
	Enabled bool   `json:"enabled" yaml:"enabled"`

	Publisher string `json:"publisher,omitempty" yaml:"publisher,omitempty"`

	LicenseProfile  LicenseProfile  `json:"license_profile" yaml:"license_profile"`
	LicenseEvidence LicenseEvidence `json:"license_evidence" yaml:"license_evidence"`

	Download DownloadPlan `json:"download" yaml:"download"`

	LicenseGates          []LicenseGate                        `json:"license_gates,omitempty" yaml:"license_gates,omitempty"`
	ContentChecks         []string                             `json:"content_checks,omitempty" yaml:"content_checks,omitempty"`
	ContentCheckActions   map[string]ContentCheckAction         `json:"content_check_actions,omitempty" yaml:"content_check_actions,omitempty"`

	Routing Routing `json:"routing,omitempty" yaml:"routing,omitempty"`

	ReviewRequired bool   `json:"review_required,omitempty" yaml:"review_required,omitempty"`
	SplitGroupID   string `json:"split_group_id,omitempty" yaml:"split_group_id,omitempty"`

	RequireYellowSignoff bool     `json:"require_yellow_signoff,omitempty" yaml:"require_yellow_signoff,omitempty"`
	AllowWithoutSignoff  bool     `json:"allow_without_signoff,omitempty" yaml:"allow_without_signoff,omitempty"`
	Signoff              *Signoff `json:"signoff,omitempty" yaml:"-"`
}

// HasGate reports whether the target requires the named license gate.
func (t Target) HasGate(g LicenseGate) bool {
	for _, got := range t.LicenseGates {
		if got == g {
			return true
		}
	}
	return false
}

// ActionFor returns the configured action for a content check name,
// defaulting to ActionOK when unconfigured.
func (t Target) ActionFor(check string) ContentCheckAction {
	if a, ok := t.ContentCheckActions[check]; ok {
		return a
	}
	return ActionOK
}
