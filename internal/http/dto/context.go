package dto

import (
	"encoding/json"
	"time"

	"repogent.app/orchestrator/internal/domain"
)

type MergeContextRequest struct {
	Patch     map[string]json.RawMessage `json:"patch" binding:"required"`
	UpdatedBy string                     `json:"updated_by"`
}

type ContextEntryResponse struct {
	EntityRef string                     `json:"entity_ref"`
	Data      map[string]json.RawMessage `json:"data"`
	Version   int64                      `json:"version"`
	UpdatedBy string                     `json:"updated_by,omitempty"`
	UpdatedAt time.Time                  `json:"updated_at"`
}

func NewContextEntryResponse(entry *domain.ContextEntry) ContextEntryResponse {
	return ContextEntryResponse{
		EntityRef: entry.EntityRef,
		Data:      entry.Data,
		Version:   entry.Version,
		UpdatedBy: entry.UpdatedBy,
		UpdatedAt: entry.UpdatedAt,
	}
}

type DecisionListResponse struct {
	Decisions []domain.DecisionLogEntry `json:"decisions"`
	// NextAfter is the cursor for the next page; resume with
	// ?after=<NextAfter>. Zero when the page is empty.
	NextAfter int64 `json:"next_after,omitempty"`
}
