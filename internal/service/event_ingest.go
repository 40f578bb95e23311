package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"repogent.app/orchestrator/common/id"
	"repogent.app/orchestrator/common/logger"
	"repogent.app/orchestrator/internal/domain"
	"repogent.app/orchestrator/internal/router"
	"repogent.app/orchestrator/internal/sanitize"
	"repogent.app/orchestrator/internal/store"
)

type EventIngestParams struct {
	Kind       string          `json:"kind"`
	Actor      string          `json:"actor"`
	EntityType string          `json:"entity_type"`
	EntityID   int64           `json:"entity_id"`
	Body       string          `json:"body,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	DeliveryID string          `json:"delivery_id,omitempty"`
}

// EnqueuedMessage records one fan-out delivery made for an accepted event.
type EnqueuedMessage struct {
	Agent     domain.AgentID `json:"agent"`
	MessageID int64          `json:"message_id"`
}

type EventIngestResult struct {
	EventLog   *store.EventLog
	Decision   *domain.RoutingDecision
	SequenceNo int64
	DedupeKey  string
	Duplicated bool
	Enqueued   []EnqueuedMessage
}

type EventIngestService interface {
	Ingest(ctx context.Context, params EventIngestParams) (*EventIngestResult, error)
}

// QueueProducer is the enqueue half of the message queue.
type QueueProducer interface {
	Enqueue(ctx context.Context, msg domain.Message) (int64, error)
}

type eventIngestService struct {
	txRunner TxRunner
	router   *router.Router
	queue    QueueProducer
	logger   *slog.Logger
}

func NewEventIngestService(txRunner TxRunner, rt *router.Router, queue QueueProducer, logger *slog.Logger) EventIngestService {
	if logger == nil {
		logger = slog.Default()
	}
	return &eventIngestService{
		txRunner: txRunner,
		router:   rt,
		queue:    queue,
		logger:   logger,
	}
}

// Ingest records the event (collapsing duplicate deliveries), routes it, logs
// the decision, and fans the event out to every claimed agent's partition.
// Routing and the decision append happen once per distinct event. A duplicate
// delivery normally returns the original row and does nothing else, but when
// the original ingest crashed between committing the row and finishing the
// fan-out, the redelivery re-runs the fan-out so no notification is lost.
func (s *eventIngestService) Ingest(ctx context.Context, params EventIngestParams) (*EventIngestResult, error) {
	entityType, err := sanitize.NormalizeIdentifier(params.EntityType)
	if err != nil {
		return nil, fmt.Errorf("entity_type: %w", err)
	}

	event := domain.Event{
		Kind:       domain.EventKind(params.Kind),
		Actor:      params.Actor,
		EntityID:   params.EntityID,
		Body:       params.Body,
		Timestamp:  params.Timestamp,
		Payload:    params.Payload,
		DeliveryID: params.DeliveryID,
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	entityRef := domain.EntityRef(entityType, params.EntityID)
	dedupeKey, err := computeDedupeKey(params, entityRef)
	if err != nil {
		return nil, err
	}

	var (
		eventLog *store.EventLog
		created  bool
		decision domain.RoutingDecision
		seqNo    int64
	)
	if err := s.txRunner.WithTx(ctx, func(sp StoreProvider) error {
		log := &store.EventLog{
			ID:         id.New(),
			Kind:       event.Kind,
			Actor:      event.Actor,
			EntityRef:  entityRef,
			Body:       event.Body,
			Payload:    event.Payload,
			DedupeKey:  dedupeKey,
			OccurredAt: event.Timestamp,
		}

		var err error
		eventLog, created, err = sp.EventLogs().CreateOrGet(ctx, log)
		if err != nil {
			return fmt.Errorf("creating event log: %w", err)
		}
		if !created {
			return nil
		}

		decision = s.router.Route(event)
		entry, err := sp.DecisionLog().Append(ctx, eventRef(eventLog.ID), entityRef, decision)
		if err != nil {
			return fmt.Errorf("appending decision: %w", err)
		}
		seqNo = entry.SequenceNo
		return nil
	}); err != nil {
		return nil, err
	}

	if !created {
		if eventLog.FannedOut {
			s.logger.InfoContext(ctx, "duplicate event deduped",
				"event_log_id", eventLog.ID,
				"entity_ref", entityRef,
				"dedupe_key", dedupeKey)
			return &EventIngestResult{
				EventLog:   eventLog,
				DedupeKey:  dedupeKey,
				Duplicated: true,
			}, nil
		}

		// The first delivery committed the row but never finished enqueueing.
		// Routing is deterministic over the event content, so re-deriving the
		// decision and re-running the fan-out delivers exactly the messages
		// the original would have (consumers tolerate at-least-once).
		s.logger.WarnContext(ctx, "duplicate delivery resuming incomplete fan-out",
			"event_log_id", eventLog.ID,
			"entity_ref", entityRef,
			"dedupe_key", dedupeKey)
		decision = s.router.Route(event)
		enqueued, err := s.completeFanOut(ctx, eventLog, event, entityRef, decision)
		if err != nil {
			return nil, err
		}
		return &EventIngestResult{
			EventLog:   eventLog,
			Decision:   &decision,
			DedupeKey:  dedupeKey,
			Duplicated: true,
			Enqueued:   enqueued,
		}, nil
	}

	s.logger.InfoContext(ctx, "event routed",
		"event_log_id", eventLog.ID,
		"event_kind", event.Kind,
		"entity_ref", entityRef,
		"targets", decision.TargetAgents,
		"reason", decision.Reason,
		"sequence_no", seqNo,
		"body", logger.Truncate(event.Body, 140))

	enqueued, err := s.completeFanOut(ctx, eventLog, event, entityRef, decision)
	if err != nil {
		return nil, err
	}

	return &EventIngestResult{
		EventLog:   eventLog,
		Decision:   &decision,
		SequenceNo: seqNo,
		DedupeKey:  dedupeKey,
		Enqueued:   enqueued,
	}, nil
}

// completeFanOut enqueues the notifications and then flips the event's
// fanned_out flag. A failed flip only logs: the worst case is one redundant
// re-fan on the next redelivery, which consumers already tolerate.
func (s *eventIngestService) completeFanOut(ctx context.Context, eventLog *store.EventLog, event domain.Event, entityRef string, decision domain.RoutingDecision) ([]EnqueuedMessage, error) {
	enqueued, err := s.fanOut(ctx, eventLog, event, entityRef, decision)
	if err != nil {
		return nil, err
	}

	if err := s.txRunner.WithTx(ctx, func(sp StoreProvider) error {
		return sp.EventLogs().MarkFannedOut(ctx, eventLog.ID)
	}); err != nil {
		s.logger.WarnContext(ctx, "failed to mark event fanned out",
			"event_log_id", eventLog.ID,
			"error", err)
	}
	return enqueued, nil
}

// fanOut enqueues one notification per claimed agent. Workflow-run events go
// out as analyze_build_failure so the CI/CD persona feeds the log analyzer.
func (s *eventIngestService) fanOut(ctx context.Context, eventLog *store.EventLog, event domain.Event, entityRef string, decision domain.RoutingDecision) ([]EnqueuedMessage, error) {
	payload, err := json.Marshal(struct {
		EventLogID int64           `json:"event_log_id"`
		Kind       domain.EventKind `json:"kind"`
		Actor      string          `json:"actor"`
		EntityRef  string          `json:"entity_ref"`
		Body       string          `json:"body,omitempty"`
		Timestamp  time.Time       `json:"timestamp"`
	}{
		EventLogID: eventLog.ID,
		Kind:       event.Kind,
		Actor:      event.Actor,
		EntityRef:  entityRef,
		Body:       event.Body,
		Timestamp:  event.Timestamp,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding fan-out payload: %w", err)
	}

	msgType := domain.MessageEventNotification
	if event.Kind == domain.EventWorkflowRunCompleted {
		msgType = domain.MessageAnalyzeBuildFailure
	}

	var enqueued []EnqueuedMessage
	for _, agent := range decision.TargetAgents {
		msgID, err := s.queue.Enqueue(ctx, domain.Message{
			Type:      msgType,
			FromAgent: "orchestrator",
			ToAgent:   agent,
			EntityRef: entityRef,
			Payload:   payload,
		})
		if err != nil {
			return nil, fmt.Errorf("enqueueing to %s: %w", agent, err)
		}
		enqueued = append(enqueued, EnqueuedMessage{Agent: agent, MessageID: msgID})
	}
	return enqueued, nil
}

func eventRef(eventLogID int64) string {
	return fmt.Sprintf("event/%d", eventLogID)
}

// computeDedupeKey anchors on the platform delivery GUID when present and
// falls back to a content hash, so replayed webhooks collapse either way.
func computeDedupeKey(params EventIngestParams, entityRef string) (string, error) {
	if params.DeliveryID != "" {
		return fmt.Sprintf("%s:%s", params.Kind, params.DeliveryID), nil
	}

	body := struct {
		Kind      string          `json:"kind"`
		Actor     string          `json:"actor"`
		EntityRef string          `json:"entity_ref"`
		Body      string          `json:"body"`
		Timestamp time.Time       `json:"timestamp"`
		Payload   json.RawMessage `json:"payload,omitempty"`
	}{
		Kind:      params.Kind,
		Actor:     params.Actor,
		EntityRef: entityRef,
		Body:      params.Body,
		Timestamp: params.Timestamp,
		Payload:   params.Payload,
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal dedupe payload: %w", err)
	}

	hash := sha256.Sum256(data)
	return fmt.Sprintf("%s:%s", params.Kind, hex.EncodeToString(hash[:])), nil
}
