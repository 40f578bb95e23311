package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"

	"repogent.app/orchestrator/common/id"
	"repogent.app/orchestrator/common/logger"
	"repogent.app/orchestrator/internal/domain"
)

// Queue is the Redis Streams implementation of the inter-agent message queue.
type Queue struct {
	client *redis.Client
	cfg    Config
}

func New(client *redis.Client, cfg Config) (*Queue, error) {
	q := &Queue{client: client, cfg: cfg.withDefaults()}

	// Create all partition groups up front so the first dequeue of an idle
	// agent doesn't race group creation. Starting from "0" keeps messages
	// enqueued before a restart visible.
	for _, agent := range domain.AllAgents {
		if err := q.ensureGroup(context.Background(), q.cfg.StreamFor(agent)); err != nil { //nolint:contextcheck
			return nil, err
		}
	}
	return q, nil
}

func (q *Queue) ensureGroup(ctx context.Context, stream string) error {
	err := q.client.XGroupCreateMkStream(ctx, stream, q.cfg.Group, "0").Err()
	if err != nil && err.Error() != "BUSYGROUP Consumer Group name already exists" {
		return fmt.Errorf("creating consumer group (stream=%s): %w", stream, err)
	}
	return nil
}

// Enqueue validates and appends a message to the target agent's partition.
// Returns the assigned message id. Oversized payloads fail with
// ErrPayloadTooLarge and nothing is stored.
func (q *Queue) Enqueue(ctx context.Context, msg domain.Message) (int64, error) {
	if err := validatePayload(msg, q.cfg.MaxPayloadSizeBytes); err != nil {
		return 0, err
	}
	if !domain.Known(msg.ToAgent) {
		return 0, fmt.Errorf("unknown target agent %q", msg.ToAgent)
	}

	if msg.ID == 0 {
		msg.ID = id.New()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	if msg.Attempt <= 0 {
		msg.Attempt = 1
	}
	if msg.TraceID == "" {
		if sc := trace.SpanFromContext(ctx).SpanContext(); sc.HasTraceID() {
			msg.TraceID = sc.TraceID().String()
		}
	}

	stream := q.cfg.StreamFor(msg.ToAgent)
	if err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: q.cfg.MaxStreamLen,
		Approx: true,
		Values: messageValues(msg),
	}).Err(); err != nil {
		return 0, fmt.Errorf("enqueue message: %w", err)
	}

	slog.InfoContext(ctx, "message enqueued",
		"message_id", msg.ID,
		"from_agent", msg.FromAgent,
		"to_agent", msg.ToAgent,
		"message_type", msg.Type,
		"attempt", msg.Attempt)
	return msg.ID, nil
}

// Dequeue polls the agent's partition without blocking and returns up to
// count undelivered messages. An empty partition yields an empty slice;
// the agent's own scheduling provides eventual delivery.
func (q *Queue) Dequeue(ctx context.Context, agent domain.AgentID, count int64) ([]Delivery, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "orchestrator.queue"})

	if count <= 0 {
		count = 1
	}

	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.cfg.Group,
		Consumer: string(agent),
		Streams:  []string{q.cfg.StreamFor(agent), ">"},
		Count:    count,
		Block:    -1, // negative disables BLOCK: dequeue is a non-blocking poll
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []Delivery{}, nil
		}
		return nil, fmt.Errorf("reading from stream: %w", err)
	}

	var deliveries []Delivery
	for _, stream := range streams {
		for _, raw := range stream.Messages {
			msg, parseErr := ParseMessage(raw)
			if parseErr != nil {
				// Unparseable entries would redeliver forever; ack and drop.
				slog.ErrorContext(ctx, "failed to parse message, acknowledging to prevent loop",
					"error", parseErr,
					"receipt_id", raw.ID,
					"agent", agent)
				_ = q.Ack(ctx, agent, raw.ID)
				continue
			}
			deliveries = append(deliveries, Delivery{ReceiptID: raw.ID, Message: msg})
		}
	}

	if len(deliveries) > 0 {
		slog.DebugContext(ctx, "messages dequeued", "count", len(deliveries), "agent", agent)
	}
	return deliveries, nil
}

// Ack marks a delivered message as processed.
func (q *Queue) Ack(ctx context.Context, agent domain.AgentID, receiptID string) error {
	stream := q.cfg.StreamFor(agent)
	if err := q.client.XAck(ctx, stream, q.cfg.Group, receiptID).Err(); err != nil {
		return fmt.Errorf("xack (stream=%s): %w", stream, err)
	}
	slog.DebugContext(ctx, "message acknowledged", "agent", agent, "receipt_id", receiptID)
	return nil
}

// Requeue re-adds a message with an incremented attempt counter so the next
// dequeue sees it as new. Used by the redelivery reclaimer.
func (q *Queue) Requeue(ctx context.Context, agent domain.AgentID, receiptID string, msg domain.Message) error {
	if err := q.Ack(ctx, agent, receiptID); err != nil {
		return fmt.Errorf("acking message for requeue: %w", err)
	}

	msg.Attempt++
	if err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.cfg.StreamFor(agent),
		MaxLen: q.cfg.MaxStreamLen,
		Approx: true,
		Values: messageValues(msg),
	}).Err(); err != nil {
		return fmt.Errorf("xadd requeue: %w", err)
	}

	slog.InfoContext(ctx, "message requeued for redelivery",
		"message_id", msg.ID,
		"agent", agent,
		"attempt", msg.Attempt)
	return nil
}

// SendDLQ moves a message that exhausted its redelivery budget to the
// dead-letter stream for manual inspection.
func (q *Queue) SendDLQ(ctx context.Context, agent domain.AgentID, receiptID string, msg domain.Message, reason string) error {
	if err := q.Ack(ctx, agent, receiptID); err != nil {
		return fmt.Errorf("acking message for dlq: %w", err)
	}

	values := messageValues(msg)
	values["error"] = reason
	if err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.cfg.DLQStream,
		MaxLen: q.cfg.MaxStreamLen,
		Approx: true,
		Values: values,
	}).Err(); err != nil {
		return fmt.Errorf("xadd dlq (stream=%s): %w", q.cfg.DLQStream, err)
	}

	slog.ErrorContext(ctx, "message sent to DLQ",
		"message_id", msg.ID,
		"agent", agent,
		"attempt", msg.Attempt,
		"reason", reason)
	return nil
}

func (q *Queue) Close() error {
	return q.client.Close()
}

func messageValues(msg domain.Message) map[string]any {
	values := map[string]any{
		"id":         msg.ID,
		"type":       msg.Type,
		"from_agent": msg.FromAgent,
		"to_agent":   string(msg.ToAgent),
		"payload":    string(msg.Payload),
		"created_at": msg.CreatedAt.UTC().Format(time.RFC3339Nano),
		"attempt":    msg.Attempt,
	}
	if msg.EntityRef != "" {
		values["entity_ref"] = msg.EntityRef
	}
	if msg.TraceID != "" {
		values["trace_id"] = msg.TraceID
	}
	return values
}

// ParseMessage decodes a raw stream entry back into a Message.
func ParseMessage(raw redis.XMessage) (domain.Message, error) {
	msgID, err := parseInt64(raw.Values, "id")
	if err != nil {
		return domain.Message{}, err
	}
	msgType, err := parseString(raw.Values, "type")
	if err != nil {
		return domain.Message{}, err
	}
	fromAgent, err := parseString(raw.Values, "from_agent")
	if err != nil {
		return domain.Message{}, err
	}
	toAgent, err := parseString(raw.Values, "to_agent")
	if err != nil {
		return domain.Message{}, err
	}

	msg := domain.Message{
		ID:        msgID,
		Type:      msgType,
		FromAgent: fromAgent,
		ToAgent:   domain.AgentID(toAgent),
	}

	if payload, ok := raw.Values["payload"]; ok {
		msg.Payload = []byte(fmt.Sprint(payload))
	}
	if ref, ok := raw.Values["entity_ref"]; ok {
		msg.EntityRef = fmt.Sprint(ref)
	}
	if traceID, ok := raw.Values["trace_id"]; ok {
		msg.TraceID = fmt.Sprint(traceID)
	}
	if createdAt, ok := raw.Values["created_at"]; ok {
		t, parseErr := time.Parse(time.RFC3339Nano, fmt.Sprint(createdAt))
		if parseErr != nil {
			return domain.Message{}, fmt.Errorf("parsing created_at: %w", parseErr)
		}
		msg.CreatedAt = t
	}

	msg.Attempt = 1
	if attempt, ok := raw.Values["attempt"]; ok {
		n, parseErr := strconv.Atoi(fmt.Sprint(attempt))
		if parseErr != nil {
			return domain.Message{}, fmt.Errorf("parsing attempt: %w", parseErr)
		}
		if n > 0 {
			msg.Attempt = n
		}
	}
	return msg, nil
}

func parseInt64(values map[string]any, key string) (int64, error) {
	raw, ok := values[key]
	if !ok {
		return 0, fmt.Errorf("missing %s", key)
	}
	n, err := strconv.ParseInt(fmt.Sprint(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return n, nil
}

func parseString(values map[string]any, key string) (string, error) {
	raw, ok := values[key]
	if !ok {
		return "", fmt.Errorf("missing %s", key)
	}
	return fmt.Sprint(raw), nil
}
