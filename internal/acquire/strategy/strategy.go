// Package strategy implements one acquisition strategy per file, each
// registered by name into a compile-time registry so internal/acquire's
// dispatcher needs no reflection or plugin loading.
package strategy

import (
	"context"

	"github.com/dataset-commons/dc-pipeline/internal/budget"
	"github.com/dataset-commons/dc-pipeline/internal/model"
	"github.com/dataset-commons/dc-pipeline/internal/netguard"
)

// Result is one strategy outcome, matching the flattened result-dict
// shape every handler returns a slice of.
type Result struct {
	Status        string `json:"status"`
	Path          string `json:"path,omitempty"`
	ContentLength int64  `json:"content_length,omitempty"`
	SHA256        string `json:"sha256,omitempty"`
	Error         string `json:"error,omitempty"`
	Message       string `json:"message,omitempty"`
	LimitType     string `json:"limit_type,omitempty"`
	BlockedURL    string `json:"blocked_url,omitempty"`
}

// Env bundles everything a strategy needs beyond the row and output
// directory: budget enforcement, network policy, and cancellation.
type Env struct {
	Ctx               context.Context
	Enforcer          *budget.LimitEnforcer
	Allowlist         *netguard.Allowlist
	AllowNonGlobal    bool
	Resolver          netguard.Resolver
	Resume            bool
	Overwrite         bool
	VerifyZenodoMD5   bool
	ExtraArgsS3       []string
}

// Handler fetches one target's payload into outDir.
type Handler interface {
	Fetch(env Env, row model.QueueRow, outDir string) []Result
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(env Env, row model.QueueRow, outDir string) []Result

func (f HandlerFunc) Fetch(env Env, row model.QueueRow, outDir string) []Result {
	return f(env, row, outDir)
}

// Registry is the static strategy-name -> Handler table. Unknown names
// are not a registry lookup error: internal/acquire treats a miss the
// same as the "none" entry (a single noop result).
var Registry = map[string]Handler{
	string(model.StrategyHTTP):               HandlerFunc(FetchHTTP),
	string(model.StrategyFTP):                HandlerFunc(FetchFTP),
	string(model.StrategyGit):                HandlerFunc(FetchGit),
	string(model.StrategyZenodo):              HandlerFunc(FetchZenodo),
	string(model.StrategyFigshare):            HandlerFunc(FetchFigshare),
	string(model.StrategyS3Sync):              HandlerFunc(FetchS3Sync),
	string(model.StrategyAWSRequesterPays):    HandlerFunc(FetchS3Sync),
	string(model.StrategyHuggingFaceDatasets): HandlerFunc(FetchHFDatasets),
	string(model.StrategyNone):                HandlerFunc(FetchNone),
}

// Lookup returns the registered handler for name, or the none handler
// (with a descriptive noop reason) if name is unrecognized.
func Lookup(name string) Handler {
	if h, ok := Registry[name]; ok {
		return h
	}
	return HandlerFunc(func(env Env, row model.QueueRow, outDir string) []Result {
		return []Result{{Status: "noop", Message: "unsupported: " + name}}
	})
}
