package domain

import (
	"regexp"

	"github.com/dataset-commons/dc-pipeline/internal/model"
)

// livePrivateKey matches an embedded PEM private key block, the one
// pattern this module treats as an automatic reject rather than a
// warning: a cyber-threat dataset shipping a real private key is a
// credential leak, not a sample to preserve.
var livePrivateKey = regexp.MustCompile(`-----BEGIN [A-Z ]*PRIVATE KEY-----`)

// cyberModule passes through threat-intel/IOC records, rejecting any
// record that embeds what looks like a live private key.
type cyberModule struct{}

func (cyberModule) Name() string { return "cyber" }

func (cyberModule) FilterRecord(raw RawRecord, ctx FilterContext) FilterDecision {
	text := stringField(raw, "text")
	if text == "" {
		text = stringField(raw, "indicator")
	}
	if text == "" {
		return FilterDecision{Allow: false, Reason: "empty_text"}
	}
	if livePrivateKey.MatchString(text) {
		return FilterDecision{Allow: false, Reason: "embedded_private_key"}
	}
	return FilterDecision{Allow: true, Text: text}
}

func (cyberModule) TransformRecord(raw RawRecord, decision FilterDecision, ctx FilterContext) (model.OutputRecord, error) {
	rec := baseRecord(decision.Text, ctx, decision)
	rec.RowID = stringField(raw, "id")
	return rec, nil
}
