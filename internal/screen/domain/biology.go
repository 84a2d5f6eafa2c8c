package domain

import "github.com/dataset-commons/dc-pipeline/internal/model"

const minSequenceLength = 10

// biologyModule requires a nucleotide/protein sequence field of at least
// minSequenceLength characters, filtering out stub or placeholder
// records that carry only metadata.
type biologyModule struct{}

func (biologyModule) Name() string { return "biology" }

func (biologyModule) FilterRecord(raw RawRecord, ctx FilterContext) FilterDecision {
	seq := stringField(raw, "sequence")
	if len(seq) < minSequenceLength {
		return FilterDecision{Allow: false, Reason: "sequence_too_short"}
	}
	return FilterDecision{Allow: true, Text: seq}
}

func (biologyModule) TransformRecord(raw RawRecord, decision FilterDecision, ctx FilterContext) (model.OutputRecord, error) {
	rec := baseRecord(decision.Text, ctx, decision)
	rec.RowID = stringField(raw, "accession")
	return rec, nil
}
