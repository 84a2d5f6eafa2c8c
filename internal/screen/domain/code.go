package domain

import (
	"strings"

	"github.com/dataset-commons/dc-pipeline/internal/model"
)

// deniedExtensions excludes compiled/binary artifacts that sometimes
// sneak into source-code dumps; they carry no text worth screening and
// inflate shard size for no benefit.
var deniedExtensions = []string{".exe", ".dll", ".so", ".o", ".class", ".pyc"}

// codeModule passes through source files, rejecting binary artifacts and
// anything empty.
type codeModule struct{}

func (codeModule) Name() string { return "code" }

func (codeModule) FilterRecord(raw RawRecord, ctx FilterContext) FilterDecision {
	path := stringField(raw, "path")
	content := stringField(raw, "content")
	lower := strings.ToLower(path)
	for _, ext := range deniedExtensions {
		if strings.HasSuffix(lower, ext) {
			return FilterDecision{Allow: false, Reason: "binary_extension"}
		}
	}
	if content == "" {
		return FilterDecision{Allow: false, Reason: "empty_content"}
	}
	return FilterDecision{Allow: true, Text: content, Extra: map[string]interface{}{"path": path}}
}

func (codeModule) TransformRecord(raw RawRecord, decision FilterDecision, ctx FilterContext) (model.OutputRecord, error) {
	rec := baseRecord(decision.Text, ctx, decision)
	rec.RowID = stringField(raw, "path")
	return rec, nil
}
