package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventKind is the semantic type of an externally observed repository event.
type EventKind string

const (
	EventIssueOpened          EventKind = "issue_opened"
	EventIssueComment         EventKind = "issue_comment"
	EventPROpened             EventKind = "pr_opened"
	EventPRComment            EventKind = "pr_comment"
	EventWorkflowRunCompleted EventKind = "workflow_run_completed"
)

// Event is an immutable record of one trigger firing. Produced by the
// platform webhook layer, consumed exactly once by the router (duplicate
// deliveries are collapsed by the ingest dedupe key).
type Event struct {
	Kind      EventKind       `json:"kind"`
	Actor     string          `json:"actor"`
	EntityID  int64           `json:"entity_id"`
	Body      string          `json:"body,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`

	// DeliveryID is the upstream delivery GUID when the platform provides one.
	// It anchors deduplication; without it the payload hash is used instead.
	DeliveryID string `json:"delivery_id,omitempty"`
}

// EntityRef returns the canonical context-store key for an entity,
// e.g. "pr/42" or "issue/7".
func EntityRef(entityType string, id int64) string {
	return fmt.Sprintf("%s/%d", entityType, id)
}

// EntityRef returns the context-store key for the event's entity.
func (e Event) EntityRef() string {
	switch e.Kind {
	case EventPROpened, EventPRComment, EventWorkflowRunCompleted:
		// Workflow runs carry the PR number they belong to when known.
		return EntityRef("pr", e.EntityID)
	default:
		return EntityRef("issue", e.EntityID)
	}
}

// IsComment reports whether the event is a comment on an issue or PR.
func (e Event) IsComment() bool {
	return e.Kind == EventIssueComment || e.Kind == EventPRComment
}
