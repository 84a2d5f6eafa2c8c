package domain

import (
	"fmt"
	"time"

	"github.com/dataset-commons/dc-pipeline/internal/hashutil"
	"github.com/dataset-commons/dc-pipeline/internal/model"
)

// stringField reads a string-typed key from a raw record, returning ""
// if absent or of another type.
func stringField(raw RawRecord, key string) string {
	v, ok := raw[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// baseRecord builds the provenance/hash/timestamp fields every domain's
// TransformRecord shares, leaving DatasetID/Text/Extra/RowID etc. to the
// caller. pool and pipeline are filled in by the screen stage's caller
// via ctx.Extra["pool"]/["pipeline"] since domain modules don't know the
// routing decision directly.
func baseRecord(text string, ctx FilterContext, decision FilterDecision) model.OutputRecord {
	now := time.Now().UTC().Format(time.RFC3339)
	pool, _ := ctx.Extra["pool"].(string)
	pipeline, _ := ctx.Extra["pipeline"].(string)
	targetName, _ := ctx.Extra["target_name"].(string)
	sourceURL, _ := ctx.Extra["source_url"].(string)
	licenseProfile, _ := ctx.Extra["license_profile"].(string)

	contentSHA := hashutil.ContentSHA256(text)
	normalizedSHA := hashutil.ContentSHA256(hashutil.NormalizeEvidenceText(text))

	spdx := decision.LicenseSPDX
	if spdx == "" {
		spdx, _ = ctx.Extra["license_spdx"].(string)
	}

	return model.OutputRecord{
		DatasetID:        ctx.TargetID,
		LicenseSPDX:      spdx,
		LicenseProfile:   licenseProfile,
		SourceURLs:       []string{sourceURL},
		Pool:             pool,
		Pipeline:         pipeline,
		TargetName:       targetName,
		TimestampCreated: now,
		TimestampUpdated: now,
		Text:             text,
		ContentSHA256:    contentSHA,
		NormalizedSHA256: normalizedSHA,
		Source: model.SourceInfo{
			TargetID:       ctx.TargetID,
			Origin:         "acquire",
			SourceURL:      sourceURL,
			LicenseSPDX:    spdx,
			LicenseProfile: licenseProfile,
			RetrievedAtUTC: now,
		},
		Hash: model.HashInfo{
			ContentSHA256:    contentSHA,
			NormalizedSHA256: normalizedSHA,
		},
		Extra: decision.Extra,
	}
}

func errTooShort(field string, min int) error {
	return fmt.Errorf("%s shorter than minimum length %d", field, min)
}
