// Package queue implements the durable inter-agent message queue on Redis
// Streams. Each target agent owns one partition stream; ordering is FIFO
// within a partition, and delivery is at-least-once: unacknowledged messages
// are requeued by the reclaimer until the attempt budget is spent, then moved
// to the dead-letter stream.
package queue

import (
	"errors"
	"fmt"

	"repogent.app/orchestrator/internal/domain"
)

const (
	DefaultMaxPayloadSizeBytes = 512 * 1024
	DefaultMaxStreamLen        = 10000

	DefaultStreamPrefix = "repogent:inbox:"
	DefaultGroup        = "repogent"
	DefaultDLQStream    = "repogent:inbox:dlq"
)

// ErrPayloadTooLarge rejects oversized payloads at enqueue time. The queue
// never truncates: callers must shrink the payload, typically by referencing
// a context-store key instead of inlining data.
var ErrPayloadTooLarge = errors.New("message payload too large")

type Config struct {
	StreamPrefix        string
	Group               string
	DLQStream           string
	MaxPayloadSizeBytes int

	// MaxStreamLen caps each partition (and the DLQ) so streams don't grow
	// without bound; eviction is oldest-first and approximate (XADD MAXLEN ~).
	MaxStreamLen int64
}

func DefaultConfig() Config {
	return Config{
		StreamPrefix:        DefaultStreamPrefix,
		Group:               DefaultGroup,
		DLQStream:           DefaultDLQStream,
		MaxPayloadSizeBytes: DefaultMaxPayloadSizeBytes,
		MaxStreamLen:        DefaultMaxStreamLen,
	}
}

func (c Config) withDefaults() Config {
	if c.StreamPrefix == "" {
		c.StreamPrefix = DefaultStreamPrefix
	}
	if c.Group == "" {
		c.Group = DefaultGroup
	}
	if c.DLQStream == "" {
		c.DLQStream = DefaultDLQStream
	}
	if c.MaxPayloadSizeBytes <= 0 {
		c.MaxPayloadSizeBytes = DefaultMaxPayloadSizeBytes
	}
	if c.MaxStreamLen <= 0 {
		c.MaxStreamLen = DefaultMaxStreamLen
	}
	return c
}

// StreamFor returns the partition stream for one agent's inbox.
func (c Config) StreamFor(agent domain.AgentID) string {
	return c.StreamPrefix + string(agent)
}

// Delivery is one dequeued message plus the receipt needed to acknowledge it.
// ReceiptID is the Redis stream entry id; Message.ID stays the idempotency
// key consumers check before acting.
type Delivery struct {
	ReceiptID string         `json:"receipt_id"`
	Message   domain.Message `json:"message"`
}

func validatePayload(msg domain.Message, maxSize int) error {
	if len(msg.Payload) > maxSize {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrPayloadTooLarge, len(msg.Payload), maxSize)
	}
	return nil
}
