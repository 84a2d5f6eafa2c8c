package domain

import "github.com/dataset-commons/dc-pipeline/internal/model"

// safetyModule passes through content-safety/red-team style records but
// requires an explicit category label, so uncategorized raw text never
// lands in an output pool unreviewed.
type safetyModule struct{}

func (safetyModule) Name() string { return "safety" }

func (safetyModule) FilterRecord(raw RawRecord, ctx FilterContext) FilterDecision {
	category := stringField(raw, "category")
	text := stringField(raw, "text")
	if category == "" {
		return FilterDecision{Allow: false, Reason: "missing_category"}
	}
	if text == "" {
		return FilterDecision{Allow: false, Reason: "empty_text"}
	}
	return FilterDecision{Allow: true, Text: text, Extra: map[string]interface{}{"category": category}}
}

func (safetyModule) TransformRecord(raw RawRecord, decision FilterDecision, ctx FilterContext) (model.OutputRecord, error) {
	rec := baseRecord(decision.Text, ctx, decision)
	rec.RowID = stringField(raw, "id")
	return rec, nil
}
