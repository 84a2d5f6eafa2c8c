package domain

import "github.com/dataset-commons/dc-pipeline/internal/model"

const minNLPTextLength = 20

// nlpModule requires a minimum text length and, when a language field is
// present, restricts to the configured allowed set via ctx.Extra
// ("allowed_languages") — absent that config, any language passes.
type nlpModule struct{}

func (nlpModule) Name() string { return "nlp" }

func (nlpModule) FilterRecord(raw RawRecord, ctx FilterContext) FilterDecision {
	text := stringField(raw, "text")
	if len(text) < minNLPTextLength {
		return FilterDecision{Allow: false, Reason: "text_too_short"}
	}
	lang := stringField(raw, "language")
	if allowed, ok := ctx.Extra["allowed_languages"].([]string); ok && lang != "" {
		found := false
		for _, a := range allowed {
			if a == lang {
				found = true
				break
			}
		}
		if !found {
			return FilterDecision{Allow: false, Reason: "language_not_allowed"}
		}
	}
	return FilterDecision{Allow: true, Text: text, Extra: map[string]interface{}{"language": lang}}
}

func (nlpModule) TransformRecord(raw RawRecord, decision FilterDecision, ctx FilterContext) (model.OutputRecord, error) {
	rec := baseRecord(decision.Text, ctx, decision)
	rec.RowID = stringField(raw, "id")
	return rec, nil
}

// DedupeKey opts nlp records into near-duplicate detection using the
// filtered text itself; very short texts (below the module's own
// minimum) never reach here, so every key is long enough to be a
// meaningful shingle set.
func (nlpModule) DedupeKey(raw RawRecord, decision FilterDecision) (string, bool) {
	return decision.Text, decision.Text != ""
}
