// Package worker hosts the redelivery reclaimer: the background half of the
// at-least-once delivery contract. A message an agent dequeued but never
// acked stays pending in its consumer group; after the redelivery timeout the
// reclaimer either requeues it with a bumped attempt counter or, once the
// attempt budget is spent, moves it to the dead-letter stream.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"

	"repogent.app/orchestrator/common/logger"
	"repogent.app/orchestrator/internal/domain"
	"repogent.app/orchestrator/internal/queue"
)

type ReclaimerConfig struct {
	Consumer  string
	MinIdle   time.Duration
	Interval  time.Duration
	BatchSize int64
	// MaxAttempts is the delivery budget per message, counting the first
	// delivery. A message reclaimed at its budget goes to the DLQ.
	MaxAttempts int
}

func (c ReclaimerConfig) withDefaults() ReclaimerConfig {
	if c.Consumer == "" {
		c.Consumer = "reclaimer"
	}
	if c.MinIdle <= 0 {
		c.MinIdle = 5 * time.Minute
	}
	if c.Interval <= 0 {
		c.Interval = 30 * time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	return c
}

// Reclaimer periodically sweeps every agent partition for stale pending
// messages. This covers both crashed consumers (dequeued, died before ack)
// and consumers that simply never came back for a delivery.
type Reclaimer struct {
	client   *redis.Client
	queue    *queue.Queue
	queueCfg queue.Config
	cfg      ReclaimerConfig

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func NewReclaimer(client *redis.Client, q *queue.Queue, queueCfg queue.Config, cfg ReclaimerConfig) *Reclaimer {
	return &Reclaimer{
		client:    client,
		queue:     q,
		queueCfg:  queueCfg,
		cfg:       cfg.withDefaults(),
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Run starts the reclaimer loop. Blocks until Stop() is called.
func (r *Reclaimer) Run(ctx context.Context) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "orchestrator.worker.reclaimer",
	})

	defer close(r.stoppedCh)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	slog.InfoContext(ctx, "reclaimer started",
		"interval", r.cfg.Interval,
		"min_idle", r.cfg.MinIdle,
		"max_attempts", r.cfg.MaxAttempts)

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			slog.InfoContext(ctx, "reclaimer stopping")
			return
		case <-ticker.C:
			for _, agent := range domain.AllAgents {
				if err := r.reclaimAgent(ctx, agent); err != nil {
					slog.ErrorContext(ctx, "reclaim cycle error", "error", err, "agent", agent)
				}
			}
		}
	}
}

// Stop signals the reclaimer to stop gracefully.
func (r *Reclaimer) Stop() {
	close(r.stopCh)
	<-r.stoppedCh
}

// reclaimAgent performs one reclaim cycle over a single agent partition.
func (r *Reclaimer) reclaimAgent(ctx context.Context, agent domain.AgentID) error {
	stream := r.queueCfg.StreamFor(agent)

	pending, err := r.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: stream,
		Group:  r.queueCfg.Group,
		Idle:   r.cfg.MinIdle,
		Start:  "-",
		End:    "+",
		Count:  r.cfg.BatchSize,
	}).Result()
	if err != nil {
		return fmt.Errorf("xpending (stream=%s): %w", stream, err)
	}

	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "found stale pending messages", "count", len(pending), "agent", agent)

	for _, p := range pending {
		if err := r.reclaimMessage(ctx, agent, stream, p); err != nil {
			slog.ErrorContext(ctx, "failed to reclaim message",
				"error", err,
				"receipt_id", p.ID,
				"original_consumer", p.Consumer,
				"idle_time", p.Idle)
			// Continue with other messages
		}
	}

	return nil
}

// reclaimMessage claims a single stale message and requeues or dead-letters it.
func (r *Reclaimer) reclaimMessage(ctx context.Context, agent domain.AgentID, stream string, pending redis.XPendingExt) error {
	receiptID := pending.ID
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		ReceiptID: &receiptID,
		Agent:     logger.Ptr(string(agent)),
	})

	slog.InfoContext(ctx, "reclaiming stale message",
		"original_consumer", pending.Consumer,
		"idle_time", pending.Idle,
		"retry_count", pending.RetryCount)

	messages, err := r.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   stream,
		Group:    r.queueCfg.Group,
		Consumer: r.cfg.Consumer,
		MinIdle:  r.cfg.MinIdle,
		Messages: []string{pending.ID},
	}).Result()
	if err != nil {
		return fmt.Errorf("xclaim: %w", err)
	}

	if len(messages) == 0 {
		slog.DebugContext(ctx, "message already reclaimed by another worker")
		return nil
	}

	msg, err := queue.ParseMessage(messages[0])
	if err != nil {
		slog.ErrorContext(ctx, "failed to parse reclaimed message, acknowledging to prevent loop",
			"error", err)
		return r.queue.Ack(ctx, agent, pending.ID)
	}

	sc := logger.StartSpanFromTraceID(ctx, msg.TraceID, "worker.reclaim_message",
		trace.WithSpanKind(trace.SpanKindConsumer))
	defer sc.End()
	ctx = sc.Context()

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		MessageID: &msg.ID,
		EntityRef: &msg.EntityRef,
	})

	if msg.Attempt >= r.cfg.MaxAttempts {
		reason := fmt.Sprintf("exhausted %d delivery attempts", msg.Attempt)
		if err := r.queue.SendDLQ(ctx, agent, pending.ID, msg, reason); err != nil {
			sc.RecordError(err)
			return fmt.Errorf("dead-lettering message: %w", err)
		}
		return nil
	}

	if err := r.queue.Requeue(ctx, agent, pending.ID, msg); err != nil {
		sc.RecordError(err)
		return fmt.Errorf("requeueing message: %w", err)
	}
	return nil
}
