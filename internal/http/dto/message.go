package dto

import (
	"encoding/json"

	"repogent.app/orchestrator/internal/queue"
)

type SendMessageRequest struct {
	FromAgent string          `json:"from_agent" binding:"required"`
	Type      string          `json:"type" binding:"required"`
	EntityRef string          `json:"entity_ref,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

type SendMessageResponse struct {
	MessageID int64 `json:"message_id"`
}

type FetchMessagesResponse struct {
	Messages []queue.Delivery `json:"messages"`
}
