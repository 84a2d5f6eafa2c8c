package domain

import (
	"strings"

	"github.com/dataset-commons/dc-pipeline/internal/model"
)

// chemModule requires either a SMILES string or an InChI key before a
// record is admitted, since free text with no machine-readable structure
// isn't useful chemistry data regardless of license.
type chemModule struct{}

func (chemModule) Name() string { return "chem" }

func (chemModule) FilterRecord(raw RawRecord, ctx FilterContext) FilterDecision {
	smiles := stringField(raw, "smiles")
	inchi := stringField(raw, "inchi")
	if smiles == "" && inchi == "" {
		return FilterDecision{Allow: false, Reason: "missing_structure"}
	}
	text := smiles
	if text == "" {
		text = inchi
	}
	return FilterDecision{
		Allow: true,
		Text:  text,
		Extra: map[string]interface{}{"smiles": smiles, "inchi": inchi},
	}
}

func (chemModule) TransformRecord(raw RawRecord, decision FilterDecision, ctx FilterContext) (model.OutputRecord, error) {
	rec := baseRecord(decision.Text, ctx, decision)
	rec.RowID = stringField(raw, "id")
	rec.ReviewerNotes = strings.TrimSpace(stringField(raw, "name"))
	return rec, nil
}
