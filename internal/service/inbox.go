package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"repogent.app/orchestrator/internal/domain"
	"repogent.app/orchestrator/internal/queue"
	"repogent.app/orchestrator/internal/sanitize"
)

var ErrUnknownAgent = errors.New("unknown agent")

// InboxQueue is the queue surface the inbox service needs.
type InboxQueue interface {
	QueueProducer
	Dequeue(ctx context.Context, agent domain.AgentID, count int64) ([]queue.Delivery, error)
	Ack(ctx context.Context, agent domain.AgentID, receiptID string) error
}

type SendParams struct {
	FromAgent string          `json:"from_agent"`
	ToAgent   string          `json:"to_agent"`
	Type      string          `json:"type"`
	EntityRef string          `json:"entity_ref,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

// InboxService is the agent-facing half of the message queue: direct
// agent-to-agent sends plus the poll/ack cycle of each agent's partition.
type InboxService interface {
	Send(ctx context.Context, params SendParams) (int64, error)
	Fetch(ctx context.Context, agent string, limit int64) ([]queue.Delivery, error)
	Acknowledge(ctx context.Context, agent string, receiptID string) error
}

type inboxService struct {
	queue  InboxQueue
	logger *slog.Logger
}

func NewInboxService(q InboxQueue, logger *slog.Logger) InboxService {
	if logger == nil {
		logger = slog.Default()
	}
	return &inboxService{queue: q, logger: logger}
}

func (s *inboxService) Send(ctx context.Context, params SendParams) (int64, error) {
	if params.FromAgent == "" || params.ToAgent == "" || params.Type == "" {
		return 0, fmt.Errorf("from_agent, to_agent, and type are required")
	}
	to, err := resolveAgent(params.ToAgent)
	if err != nil {
		return 0, err
	}

	entityRef := params.EntityRef
	if entityRef != "" {
		if entityRef, err = sanitize.NormalizeIdentifier(entityRef); err != nil {
			return 0, fmt.Errorf("entity_ref: %w", err)
		}
	}

	return s.queue.Enqueue(ctx, domain.Message{
		Type:      params.Type,
		FromAgent: params.FromAgent,
		ToAgent:   to,
		EntityRef: entityRef,
		Payload:   params.Payload,
	})
}

func (s *inboxService) Fetch(ctx context.Context, agent string, limit int64) ([]queue.Delivery, error) {
	a, err := resolveAgent(agent)
	if err != nil {
		return nil, err
	}
	return s.queue.Dequeue(ctx, a, limit)
}

func (s *inboxService) Acknowledge(ctx context.Context, agent string, receiptID string) error {
	a, err := resolveAgent(agent)
	if err != nil {
		return err
	}
	if receiptID == "" {
		return fmt.Errorf("receipt id is required")
	}
	return s.queue.Ack(ctx, a, receiptID)
}

func resolveAgent(raw string) (domain.AgentID, error) {
	a := domain.AgentID(raw)
	if !domain.Known(a) {
		return "", fmt.Errorf("%w: %q", ErrUnknownAgent, raw)
	}
	return a, nil
}
