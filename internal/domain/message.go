package domain

import (
	"encoding/json"
	"time"
)

// Well-known inter-agent message types. The type is free-form; these are the
// ones the stock personas exchange.
const (
	MessageEventNotification   = "event_notification"
	MessageBuildFailure        = "build_failure"
	MessageAnalyzeBuildFailure = "analyze_build_failure"
	MessageRequestContext      = "request_context"
	MessageContextResponse     = "context_response"
	MessageLogDecision         = "log_decision"
)

// Message is the unit of agent-to-agent communication. ID is a snowflake, so
// ids are unique and monotonically orderable. Delivery is at-least-once under
// redelivery; consumers must be idempotent keyed on ID.
type Message struct {
	ID        int64           `json:"id"`
	Type      string          `json:"type"`
	FromAgent string          `json:"from_agent"`
	ToAgent   AgentID         `json:"to_agent"`
	EntityRef string          `json:"entity_ref,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`

	// TraceID propagates the producer's trace across the queue boundary.
	TraceID string `json:"trace_id,omitempty"`

	// Attempt counts deliveries, starting at 1. Bumped by the redelivery
	// reclaimer, never by consumers.
	Attempt int `json:"attempt"`
}

// ContextEntry is the shared bounded state for one entity. Data is merged
// key-by-key (last writer wins per key); Version increments on every merge so
// same-key write races are detectable by callers.
type ContextEntry struct {
	EntityRef string                     `json:"entity_ref"`
	Data      map[string]json.RawMessage `json:"data"`
	Version   int64                      `json:"version"`
	UpdatedBy string                     `json:"updated_by"`
	UpdatedAt time.Time                  `json:"updated_at"`
}
