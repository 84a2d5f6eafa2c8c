package postgres

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dataset-commons/dc-pipeline/internal/model"
)

// genesisHash seeds the chain: the previous_hash of the first row ever
// written, a zero value the same width as a sha256 hex digest.
const genesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// RecordDecision implements classify.AuditSink. Every call appends one
// row to audit_decisions, chaining entry_hash to the previous row's
// hash so the whole table can later be replayed and verified with
// VerifyChainIntegrity.
func (s *Store) RecordDecision(ctx context.Context, bundle model.DecisionBundle) error {
	bundleJSON, err := json.Marshal(bundle)
	if err != nil {
		return fmt.Errorf("audit postgres: marshal decision bundle: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("audit postgres: begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	previousHash, err := lastDecisionHash(ctx, tx)
	if err != nil {
		return fmt.Errorf("audit postgres: read previous hash: %w", err)
	}

	recordedAt := time.Now().UTC().Truncate(time.Microsecond)
	entryHash := decisionEntryHash(bundle, bundleJSON, previousHash, recordedAt)

	_, err = tx.Exec(ctx, `
		INSERT INTO audit_decisions
			(target_id, decision, decided_at_utc, decided_by, bundle, previous_hash, entry_hash, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, bundle.TargetID, string(bundle.Decision), bundle.DecidedAtUTC, bundle.DecidedBy,
		bundleJSON, previousHash, entryHash, recordedAt)
	if err != nil {
		return fmt.Errorf("audit postgres: insert decision: %w", err)
	}

	return tx.Commit(ctx)
}

func lastDecisionHash(ctx context.Context, tx pgx.Tx) (string, error) {
	var hash string
	err := tx.QueryRow(ctx, `
		SELECT entry_hash FROM audit_decisions
		ORDER BY recorded_at DESC, id DESC
		LIMIT 1
	`).Scan(&hash)
	if err == pgx.ErrNoRows {
		return genesisHash, nil
	}
	if err != nil {
		return "", err
	}
	return hash, nil
}

func decisionEntryHash(bundle model.DecisionBundle, bundleJSON []byte, previousHash string, recordedAt time.Time) string {
	h := sha256.New()
	h.Write([]byte(bundle.TargetID))
	h.Write([]byte(string(bundle.Decision)))
	h.Write([]byte(bundle.DecidedAtUTC))
	h.Write([]byte(bundle.DecidedBy))
	h.Write(bundleJSON)
	h.Write([]byte(previousHash))
	h.Write([]byte(recordedAt.UTC().Format(time.RFC3339Nano)))
	return hex.EncodeToString(h.Sum(nil))
}

// DecisionChainLink is one row of the hash chain, enough to re-derive
// and compare its entry_hash during a VerifyChainIntegrity pass.
type DecisionChainLink struct {
	ID           int64
	TargetID     string
	Decision     string
	DecidedAtUTC string
	DecidedBy    string
	Bundle       []byte
	PreviousHash string
	EntryHash    string
	RecordedAt   time.Time
}

// VerifyChainIntegrity replays every row in recorded_at order,
// re-deriving each entry_hash and comparing it against the stored
// value. It returns the first mismatched target ID, or "" if the
// whole chain verifies.
func (s *Store) VerifyChainIntegrity(ctx context.Context) (brokenAt string, err error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, target_id, decision, decided_at_utc, decided_by, bundle, previous_hash, entry_hash, recorded_at
		FROM audit_decisions
		ORDER BY recorded_at ASC, id ASC
	`)
	if err != nil {
		return "", fmt.Errorf("audit postgres: query chain: %w", err)
	}
	defer rows.Close()

	expectedPrevious := genesisHash
	for rows.Next() {
		var link DecisionChainLink
		if err := rows.Scan(&link.ID, &link.TargetID, &link.Decision, &link.DecidedAtUTC,
			&link.DecidedBy, &link.Bundle, &link.PreviousHash, &link.EntryHash, &link.RecordedAt); err != nil {
			return "", fmt.Errorf("audit postgres: scan chain row: %w", err)
		}
		if link.PreviousHash != expectedPrevious {
			return link.TargetID, nil
		}
		bundle := model.DecisionBundle{
			TargetID:     link.TargetID,
			Decision:     model.Bucket(link.Decision),
			DecidedAtUTC: link.DecidedAtUTC,
			DecidedBy:    link.DecidedBy,
		}
		// JSONB does not keep the inserted text, so re-marshal the stored
		// bundle to get the same bytes RecordDecision hashed.
		var stored model.DecisionBundle
		if err := json.Unmarshal(link.Bundle, &stored); err != nil {
			return link.TargetID, nil
		}
		canonical, err := json.Marshal(stored)
		if err != nil {
			return link.TargetID, nil
		}
		recomputed := decisionEntryHash(bundle, canonical, link.PreviousHash, link.RecordedAt)
		if recomputed != link.EntryHash {
			return link.TargetID, nil
		}
		expectedPrevious = link.EntryHash
	}
	return "", rows.Err()
}
