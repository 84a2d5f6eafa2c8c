package domain

import "github.com/dataset-commons/dc-pipeline/internal/model"

// standardModule is the fallback domain: it accepts any record with
// non-empty text and performs no domain-specific transformation.
type standardModule struct{}

func (standardModule) Name() string { return "standard" }

func (standardModule) FilterRecord(raw RawRecord, ctx FilterContext) FilterDecision {
	text := stringField(raw, "text")
	if text == "" {
		return FilterDecision{Allow: false, Reason: "empty_text"}
	}
	return FilterDecision{Allow: true, Text: text}
}

func (m standardModule) TransformRecord(raw RawRecord, decision FilterDecision, ctx FilterContext) (model.OutputRecord, error) {
	rec := baseRecord(decision.Text, ctx, decision)
	rec.RowID = stringField(raw, "id")
	return rec, nil
}
