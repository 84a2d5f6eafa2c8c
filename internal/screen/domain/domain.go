// Package domain implements the per-domain filter/transform pair the
// yellow screen stage dispatches to, one file per named domain plus the
// compile-time registry tying a catalog's routing.domain string to its
// Module.
package domain

import "github.com/dataset-commons/dc-pipeline/internal/model"

// RawRecord is one unparsed input record handed to FilterRecord, as read
// off a target's raw payload (one JSON object per line, or one element
// of a parsed table/archive member — the acquire stage's raw form).
type RawRecord map[string]interface{}

// FilterDecision is a domain module's verdict on one raw record.
type FilterDecision struct {
	Allow       bool
	Reason      string
	Text        string
	LicenseSPDX string
	Extra       map[string]interface{}
	SampleExtra map[string]interface{}
}

// FilterContext carries per-target context a domain module may need to
// make its decision (routing hints, target metadata) without depending
// on the full Target type.
type FilterContext struct {
	TargetID       string
	RoutingCategory string
	RoutingLevel    string
	Extra          map[string]interface{}
}

// Module is one domain's filter/transform pair. TransformRecord is only
// called for records FilterRecord allowed, and must return a record
// satisfying model.OutputRecord.Validate() once the screen stage fills
// in the shared provenance/hash fields.
type Module interface {
	Name() string
	FilterRecord(raw RawRecord, ctx FilterContext) FilterDecision
	TransformRecord(raw RawRecord, decision FilterDecision, ctx FilterContext) (model.OutputRecord, error)
}

// DedupeKeyer is the optional "dedupe_key" capability a Module may add
// on top of the required filter/transform pair: the text a near-
// duplicate detector should compare this record against, in place of
// the default (decision.Text). A module returns ok=false to opt a
// given record out of dedup entirely (e.g. too short to be meaningful).
type DedupeKeyer interface {
	DedupeKey(raw RawRecord, decision FilterDecision) (text string, ok bool)
}

// Registry is the domain-name -> Module compile-time table.
var Registry = map[string]Module{}

func register(m Module) {
	Registry[m.Name()] = m
}

// Lookup returns the module for name, falling back to the standard
// module (no domain-specific filtering) if name is unrecognized.
func Lookup(name string) Module {
	if m, ok := Registry[name]; ok {
		return m
	}
	return Registry["standard"]
}

func init() {
	register(standardModule{})
	register(chemModule{})
	register(biologyModule{})
	register(codeModule{})
	register(cyberModule{})
	register(econModule{})
	register(kgnavModule{})
	register(nlpModule{})
	register(safetyModule{})
}
