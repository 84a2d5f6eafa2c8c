package model

import "fmt"

// SourceInfo is the provenance block embedded in every OutputRecord.
type SourceInfo struct {
	TargetID        string `json:"target_id"`
	Origin          string `json:"origin"`
	SourceURL       string `json:"source_url"`
	LicenseSPDX     string `json:"license_spdx"`
	LicenseProfile  string `json:"license_profile"`
	LicenseEvidence string `json:"license_evidence,omitempty"`
	RetrievedAtUTC  string `json:"retrieved_at_utc"`
}

// HashInfo is the content hashes embedded in every OutputRecord.
type HashInfo struct {
	ContentSHA256    string `json:"content_sha256"`
	NormalizedSHA256 string `json:"normalized_sha256"`
}

// OutputRecord is the canonical screened record written to shards. It is
// the output contract boundary: every record written to a shard must
// satisfy Validate().
type OutputRecord struct {
	DatasetID   string `json:"dataset_id"`
	Split       string `json:"split"`
	Config      string `json:"config"`
	RowID       string `json:"row_id"`

	LicenseSPDX    string `json:"license_spdx"`
	LicenseProfile string `json:"license_profile"`
	SourceURLs     []string `json:"source_urls"`
	ReviewerNotes  string `json:"reviewer_notes"`

	ContentSHA256    string `json:"content_sha256"`
	NormalizedSHA256 string `json:"normalized_sha256"`

	Pool         string `json:"pool"`
	Pipeline     string `json:"pipeline"`
	TargetName   string `json:"target_name"`

	TimestampCreated string `json:"timestamp_created"`
	TimestampUpdated string `json:"timestamp_updated"`

	Text string `json:"text"`

	Source  SourceInfo             `json:"source"`
	Routing map[string]interface{} `json:"routing,omitempty"`
	Hash    HashInfo               `json:"hash"`

	Extra map[string]interface{} `json:"extra,omitempty"`
}

// ContractViolation is raised when a record fails Validate(). It is a
// programmer/config-class error: the stage aborts rather
// than silently dropping the record.
type ContractViolation struct {
	Field  string
	Reason string
}

func (e *ContractViolation) Error() string {
	return fmt.Sprintf("output record contract violation: field %q: %s", e.Field, e.Reason)
}

// Validate checks every required field and type of the OutputRecord
// contract. It does not mutate the record.
func (r OutputRecord) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"dataset_id", r.DatasetID},
		{"license_spdx", r.LicenseSPDX},
		{"license_profile", r.LicenseProfile},
		{"content_sha256", r.ContentSHA256},
		{"normalized_sha256", r.NormalizedSHA256},
		{"pool", r.Pool},
		{"pipeline", r.Pipeline},
		{"target_name", r.TargetName},
		{"timestamp_created", r.TimestampCreated},
		{"timestamp_updated", r.TimestampUpdated},
	}
	for _, f := range required {
		if f.value == "" {
			return &ContractViolation{Field: f.name, Reason: "required string field is empty"}
		}
	}
	if r.SourceURLs == nil {
		return &ContractViolation{Field: "source_urls", Reason: "must be a (possibly empty) array, not null"}
	}
	if r.Source.TargetID == "" {
		return &ContractViolation{Field: "source.target_id", Reason: "required"}
	}
	if r.Hash.ContentSHA256 != r.ContentSHA256 {
		return &ContractViolation{Field: "hash.content_sha256", Reason: "must equal top-level content_sha256"}
	}
	if r.Hash.NormalizedSHA256 != r.NormalizedSHA256 {
		return &ContractViolation{Field: "hash.normalized_sha256", Reason: "must equal top-level normalized_sha256"}
	}
	if len(r.ContentSHA256) != 64 {
		return &ContractViolation{Field: "content_sha256", Reason: "must be a 64-character hex sha256 digest"}
	}
	return nil
}
