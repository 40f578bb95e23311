package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"repogent.app/orchestrator/core/db"
	"repogent.app/orchestrator/internal/domain"
)

// EventLog is one accepted trigger firing. The unique dedupe key collapses
// duplicate webhook deliveries of the same upstream occurrence. FannedOut
// flips once every target partition has received its notification, so a
// redelivery can tell a fully-processed event from one whose fan-out was cut
// short.
type EventLog struct {
	ID         int64
	Kind       domain.EventKind
	Actor      string
	EntityRef  string
	Body       string
	Payload    json.RawMessage
	DedupeKey  string
	FannedOut  bool
	OccurredAt time.Time
	CreatedAt  time.Time
}

type EventLogStore struct {
	q db.Querier
}

func NewEventLogStore(q db.Querier) *EventLogStore {
	return &EventLogStore{q: q}
}

// CreateOrGet inserts the event log unless its dedupe key already exists, in
// which case the prior row is returned. The second result reports whether a
// new row was created.
func (s *EventLogStore) CreateOrGet(ctx context.Context, log *EventLog) (*EventLog, bool, error) {
	payload := log.Payload
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}

	// The no-op conflict update lets RETURNING surface the existing row;
	// comparing ids tells us whether our insert won.
	row := s.q.QueryRow(ctx, `
		INSERT INTO event_logs (id, kind, actor, entity_ref, body, payload, dedupe_key, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (dedupe_key) DO UPDATE SET dedupe_key = EXCLUDED.dedupe_key
		RETURNING id, kind, actor, entity_ref, body, payload, dedupe_key, fanned_out, occurred_at, created_at`,
		log.ID, log.Kind, log.Actor, log.EntityRef, log.Body, payload, log.DedupeKey, log.OccurredAt)

	stored, err := scanEventLog(row)
	if err != nil {
		return nil, false, fmt.Errorf("upserting event log: %w", err)
	}
	return stored, stored.ID == log.ID, nil
}

func (s *EventLogStore) GetByID(ctx context.Context, id int64) (*EventLog, error) {
	row := s.q.QueryRow(ctx, `
		SELECT id, kind, actor, entity_ref, body, payload, dedupe_key, fanned_out, occurred_at, created_at
		FROM event_logs WHERE id = $1`, id)

	log, err := scanEventLog(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return log, nil
}

func (s *EventLogStore) ListByEntity(ctx context.Context, entityRef string, limit int32) ([]EventLog, error) {
	rows, err := s.q.Query(ctx, `
		SELECT id, kind, actor, entity_ref, body, payload, dedupe_key, fanned_out, occurred_at, created_at
		FROM event_logs WHERE entity_ref = $1
		ORDER BY created_at DESC LIMIT $2`, entityRef, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []EventLog
	for rows.Next() {
		log, err := scanEventLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, *log)
	}
	return logs, rows.Err()
}

// MarkFannedOut records that every notification for the event has been
// enqueued.
func (s *EventLogStore) MarkFannedOut(ctx context.Context, id int64) error {
	_, err := s.q.Exec(ctx, `UPDATE event_logs SET fanned_out = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("marking event fanned out: %w", err)
	}
	return nil
}

func scanEventLog(row pgx.Row) (*EventLog, error) {
	var log EventLog
	err := row.Scan(&log.ID, &log.Kind, &log.Actor, &log.EntityRef, &log.Body,
		&log.Payload, &log.DedupeKey, &log.FannedOut, &log.OccurredAt, &log.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &log, nil
}
