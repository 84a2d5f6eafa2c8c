package model

// CheckpointState is the only mutable cross-stage state in the system;
// it is replaced atomically on every update, never edited in place.
type CheckpointState struct {
	RunID        string         `json:"run_id"`
	PipelineID   string         `json:"pipeline_id"`
	CreatedAtUTC string         `json:"created_at_utc"`
	UpdatedAtUTC string         `json:"updated_at_utc"`
	CompletedTargets []string   `json:"completed_targets"`
	Counts       map[string]int `json:"counts"`
	Version      int            `json:"version"`
}

// CurrentCheckpointVersion is stamped onto freshly created checkpoints.
const CurrentCheckpointVersion = 1

// NewCheckpointState returns an empty checkpoint for a new run.
func NewCheckpointState(runID, pipelineID, nowUTC string) *CheckpointState {
	return &CheckpointState{
		RunID:            runID,
		PipelineID:       pipelineID,
		CreatedAtUTC:     nowUTC,
		UpdatedAtUTC:     nowUTC,
		CompletedTargets: []string{},
		Counts:           map[string]int{},
		Version:          CurrentCheckpointVersion,
	}
}

// RecordTarget idempotently adds targetID to CompletedTargets and bumps
// the bucket counter. Calling it twice with the same targetID leaves
// CompletedTargets with exactly one occurrence.
func (c *CheckpointState) RecordTarget(targetID, bucket, nowUTC string) {
	for _, id := range c.CompletedTargets {
		if id == targetID {
			c.UpdatedAtUTC = nowUTC
			return
		}
	}
	c.CompletedTargets = append(c.CompletedTargets, targetID)
	if c.Counts == nil {
		c.Counts = map[string]int{}
	}
	c.Counts[bucket]++
	c.UpdatedAtUTC = nowUTC
}

// IsCompleted reports whether targetID has already been recorded.
func (c *CheckpointState) IsCompleted(targetID string) bool {
	for _, id := range c.CompletedTargets {
		if id == targetID {
			return true
		}
	}
	return false
}
