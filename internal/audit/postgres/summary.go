package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// RecordRunSummary mirrors one acquire/screen/classify run summary as
// an opaque JSON blob. Unlike RecordDecision this isn't hash-chained;
// run summaries are aggregate reporting, not an audited decision
// trail, so cmd/* binaries can call this unconditionally after Run.
func (s *Store) RecordRunSummary(ctx context.Context, stage, runID string, summary interface{}) error {
	body, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("audit postgres: marshal run summary: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO run_summaries (stage, run_id, summary, recorded_at)
		VALUES ($1, $2, $3, $4)
	`, stage, runID, body, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("audit postgres: insert run summary: %w", err)
	}
	return nil
}
