package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"repogent.app/orchestrator/core/db"
	"repogent.app/orchestrator/internal/domain"
)

// DecisionLogStore is the append-only audit trail of routing decisions.
// Sequence numbers are assigned from MAX(sequence_no)+1 inside the caller's
// transaction rather than a Postgres sequence, so the numbering stays gapless
// even when a transaction rolls back.
type DecisionLogStore struct {
	q db.Querier
}

// Advisory lock key serializing decision appends ("decision" in ASCII).
const decisionLogLockID = int64(0x6465636973696f6e)

func NewDecisionLogStore(q db.Querier) *DecisionLogStore {
	return &DecisionLogStore{q: q}
}

// Append writes one decision and returns the stored entry with its assigned
// sequence number. Must run inside a transaction; concurrent appenders
// serialize on a transaction-scoped advisory lock so the MAX lookup and the
// insert are atomic with respect to each other.
func (s *DecisionLogStore) Append(ctx context.Context, eventRef, entityRef string, decision domain.RoutingDecision) (*domain.DecisionLogEntry, error) {
	encoded, err := json.Marshal(decision)
	if err != nil {
		return nil, fmt.Errorf("encoding decision: %w", err)
	}

	if _, err := s.q.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, decisionLogLockID); err != nil {
		return nil, fmt.Errorf("locking decision log: %w", err)
	}

	row := s.q.QueryRow(ctx, `
		INSERT INTO decision_log (sequence_no, event_ref, entity_ref, decision)
		SELECT COALESCE(MAX(sequence_no), 0) + 1, $1, $2, $3 FROM decision_log
		RETURNING sequence_no, created_at`,
		eventRef, entityRef, encoded)

	var (
		seq       int64
		createdAt time.Time
	)
	if err := row.Scan(&seq, &createdAt); err != nil {
		return nil, fmt.Errorf("appending decision log: %w", err)
	}

	return &domain.DecisionLogEntry{
		SequenceNo: seq,
		EventRef:   eventRef,
		EntityRef:  entityRef,
		Decision:   decision,
		Timestamp:  createdAt,
	}, nil
}

// Query returns decisions for an entity in ascending sequence order,
// starting strictly after the given cursor. Pass afterSequence 0 for the
// beginning.
func (s *DecisionLogStore) Query(ctx context.Context, entityRef string, afterSequence int64, limit int32) ([]domain.DecisionLogEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.q.Query(ctx, `
		SELECT sequence_no, event_ref, entity_ref, decision, created_at
		FROM decision_log
		WHERE entity_ref = $1 AND sequence_no > $2
		ORDER BY sequence_no ASC LIMIT $3`,
		entityRef, afterSequence, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.DecisionLogEntry
	for rows.Next() {
		var (
			entry   domain.DecisionLogEntry
			decoded []byte
		)
		if err := rows.Scan(&entry.SequenceNo, &entry.EventRef, &entry.EntityRef, &decoded, &entry.Timestamp); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(decoded, &entry.Decision); err != nil {
			return nil, fmt.Errorf("decoding decision %d: %w", entry.SequenceNo, err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
