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

const DefaultMaxContextSizeBytes = 1024 * 1024

// ContextStore holds one bounded shared-state entry per entity. Writes merge
// key-by-key, so concurrent agents touching disjoint keys never lose each
// other's updates. Same-key writes are last-writer-wins; the version counter
// lets a caller detect that it lost such a race (field ownership per agent is
// convention, not enforced here).
type ContextStore struct {
	q       db.Querier
	maxSize int
}

func NewContextStore(q db.Querier) *ContextStore {
	return &ContextStore{q: q, maxSize: DefaultMaxContextSizeBytes}
}

// WithMaxSize overrides the entry size budget.
func (s *ContextStore) WithMaxSize(maxSize int) *ContextStore {
	if maxSize > 0 {
		s.maxSize = maxSize
	}
	return s
}

// Get returns the entry for an entity, or an empty zero-version entry if the
// entity has never been written (first reference creates it on merge).
func (s *ContextStore) Get(ctx context.Context, entityRef string) (*domain.ContextEntry, error) {
	row := s.q.QueryRow(ctx, `
		SELECT entity_ref, data, version, updated_by, updated_at
		FROM context_entries WHERE entity_ref = $1`, entityRef)

	entry, err := scanContextEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &domain.ContextEntry{
				EntityRef: entityRef,
				Data:      map[string]json.RawMessage{},
			}, nil
		}
		return nil, err
	}
	return entry, nil
}

// Merge applies the patch key-by-key over the stored entry, creating it if
// absent. Returns the merged entry; fails with ErrContextTooLarge if the
// result would exceed the size budget (nothing is written). Run inside a
// transaction: the row lock serializes concurrent merges on one entity.
func (s *ContextStore) Merge(ctx context.Context, entityRef string, patch map[string]json.RawMessage, updatedBy string) (*domain.ContextEntry, error) {
	row := s.q.QueryRow(ctx, `
		SELECT entity_ref, data, version, updated_by, updated_at
		FROM context_entries WHERE entity_ref = $1
		FOR UPDATE`, entityRef)

	existing, err := scanContextEntry(row)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		// FOR UPDATE cannot lock an absent row, so two concurrent first
		// merges would both read empty state and the later upsert would
		// drop the earlier writer's keys. Materialize the row, then
		// re-read under the lock; a concurrent creator's data is visible
		// in the re-read.
		if _, err := s.q.Exec(ctx, `
			INSERT INTO context_entries (entity_ref) VALUES ($1)
			ON CONFLICT (entity_ref) DO NOTHING`, entityRef); err != nil {
			return nil, fmt.Errorf("creating context entry: %w", err)
		}
		row = s.q.QueryRow(ctx, `
			SELECT entity_ref, data, version, updated_by, updated_at
			FROM context_entries WHERE entity_ref = $1
			FOR UPDATE`, entityRef)
		if existing, err = scanContextEntry(row); err != nil {
			return nil, err
		}
	}

	merged := MergeData(existing.Data, patch)

	encoded, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("encoding merged context: %w", err)
	}
	if len(encoded) > s.maxSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrContextTooLarge, len(encoded), s.maxSize)
	}

	now := time.Now().UTC()
	version := existing.Version + 1
	_, err = s.q.Exec(ctx, `
		INSERT INTO context_entries (entity_ref, data, version, updated_by, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (entity_ref) DO UPDATE
		SET data = EXCLUDED.data,
		    version = EXCLUDED.version,
		    updated_by = EXCLUDED.updated_by,
		    updated_at = EXCLUDED.updated_at`,
		entityRef, encoded, version, updatedBy, now)
	if err != nil {
		return nil, fmt.Errorf("writing context entry: %w", err)
	}

	return &domain.ContextEntry{
		EntityRef: entityRef,
		Data:      merged,
		Version:   version,
		UpdatedBy: updatedBy,
		UpdatedAt: now,
	}, nil
}

// MergeData merges patch over existing, last writer wins per key. A null
// value deletes the key. Neither input is mutated.
func MergeData(existing, patch map[string]json.RawMessage) map[string]json.RawMessage {
	merged := make(map[string]json.RawMessage, len(existing)+len(patch))
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range patch {
		if isJSONNull(v) {
			delete(merged, k)
			continue
		}
		merged[k] = v
	}
	return merged
}

func isJSONNull(v json.RawMessage) bool {
	return len(v) == 4 && string(v) == "null"
}

func scanContextEntry(row pgx.Row) (*domain.ContextEntry, error) {
	var (
		entry domain.ContextEntry
		data  []byte
	)
	if err := row.Scan(&entry.EntityRef, &data, &entry.Version, &entry.UpdatedBy, &entry.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &entry.Data); err != nil {
		return nil, fmt.Errorf("decoding context data: %w", err)
	}
	if entry.Data == nil {
		entry.Data = map[string]json.RawMessage{}
	}
	return &entry, nil
}
