package ledger

import (
	"encoding/json"
	"os"

	"github.com/dataset-commons/dc-pipeline/internal/model"
)

// CheckpointStore persists CheckpointState with atomic-replace semantics.
// It is the only mutable cross-stage artifact in the system.
type CheckpointStore struct {
	path string
}

// NewCheckpointStore returns a store backed by the given path.
func NewCheckpointStore(path string) *CheckpointStore {
	return &CheckpointStore{path: path}
}

// Load reads the checkpoint file. A missing or corrupt (non-JSON) file
// returns a freshly created empty state and a nil error —
// checkpoint corruption is recovered, never raised, so the pipeline
// effectively restarts from scratch rather than failing the run.
func (s *CheckpointStore) Load(runID, pipelineID, nowUTC string) *model.CheckpointState {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return model.NewCheckpointState(runID, pipelineID, nowUTC)
	}
	var cp model.CheckpointState
	if err := json.Unmarshal(b, &cp); err != nil {
		return model.NewCheckpointState(runID, pipelineID, nowUTC)
	}
	if cp.CompletedTargets == nil {
		cp.CompletedTargets = []string{}
	}
	if cp.Counts == nil {
		cp.Counts = map[string]int{}
	}
	return &cp
}

// Save writes the checkpoint atomically (temp file + rename), never in
// place.
func (s *CheckpointStore) Save(cp *model.CheckpointState) error {
	return WriteAtomicJSON(s.path, cp)
}
