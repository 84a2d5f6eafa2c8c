package domain

import (
	"fmt"

	"github.com/dataset-commons/dc-pipeline/internal/model"
)

// kgnavModule handles knowledge-graph navigation triples, requiring all
// three of subject/predicate/object before a triple is usable.
type kgnavModule struct{}

func (kgnavModule) Name() string { return "kgnav" }

func (kgnavModule) FilterRecord(raw RawRecord, ctx FilterContext) FilterDecision {
	subj := stringField(raw, "subject")
	pred := stringField(raw, "predicate")
	obj := stringField(raw, "object")
	if subj == "" || pred == "" || obj == "" {
		return FilterDecision{Allow: false, Reason: "incomplete_triple"}
	}
	return FilterDecision{
		Allow: true,
		Text:  fmt.Sprintf("%s %s %s", subj, pred, obj),
		Extra: map[string]interface{}{"subject": subj, "predicate": pred, "object": obj},
	}
}

func (kgnavModule) TransformRecord(raw RawRecord, decision FilterDecision, ctx FilterContext) (model.OutputRecord, error) {
	rec := baseRecord(decision.Text, ctx, decision)
	rec.RowID = stringField(raw, "triple_id")
	return rec, nil
}
