package domain

import "github.com/dataset-commons/dc-pipeline/internal/model"

// econModule requires a non-empty series identifier and at least one
// observation value; a time series with no data points is metadata, not
// a record worth shipping.
type econModule struct{}

func (econModule) Name() string { return "econ" }

func (econModule) FilterRecord(raw RawRecord, ctx FilterContext) FilterDecision {
	series := stringField(raw, "series_id")
	if series == "" {
		return FilterDecision{Allow: false, Reason: "missing_series_id"}
	}
	if _, ok := raw["value"]; !ok {
		return FilterDecision{Allow: false, Reason: "missing_value"}
	}
	text := stringField(raw, "description")
	if text == "" {
		text = series
	}
	return FilterDecision{Allow: true, Text: text, Extra: map[string]interface{}{"series_id": series, "value": raw["value"]}}
}

func (econModule) TransformRecord(raw RawRecord, decision FilterDecision, ctx FilterContext) (model.OutputRecord, error) {
	rec := baseRecord(decision.Text, ctx, decision)
	rec.RowID = stringField(raw, "series_id")
	return rec, nil
}
