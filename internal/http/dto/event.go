package dto

import (
	"encoding/json"
	"time"

	"repogent.app/orchestrator/internal/domain"
	"repogent.app/orchestrator/internal/service"
)

type IngestEventRequest struct {
	Kind       string          `json:"kind" binding:"required"`
	Actor      string          `json:"actor"`
	EntityType string          `json:"entity_type" binding:"required"`
	EntityID   int64           `json:"entity_id"`
	Body       string          `json:"body,omitempty"`
	Timestamp  time.Time       `json:"timestamp,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	DeliveryID string          `json:"delivery_id,omitempty"`
}

type IngestEventResponse struct {
	EventLogID int64                     `json:"event_log_id"`
	DedupeKey  string                    `json:"dedupe_key"`
	Duplicated bool                      `json:"duplicated"`
	Decision   *domain.RoutingDecision   `json:"decision,omitempty"`
	SequenceNo int64                     `json:"sequence_no,omitempty"`
	Enqueued   []service.EnqueuedMessage `json:"enqueued,omitempty"`
}
