package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields contains structured fields automatically added to all logs within a context.
// Fields flow through context enrichment, enabling zero-touch logging where business
// context (entity_ref, message_id, etc.) is automatically included in all log statements.
type LogFields struct {
	EntityRef  *string // Canonical entity key, e.g. "pr/42"
	EventLogID *int64  // Event log row that triggered this work
	MessageID  *int64  // Queue message snowflake id
	ReceiptID  *string // Redis stream entry id of the current delivery
	Agent      *string // Agent the current operation acts for
	EventKind  *string // Event kind (e.g. "issue_comment", "pr_opened")
	Component  string  // Component name (OTel semantic convention style, e.g. "orchestrator.queue")
}

// WithLogFields enriches context with structured log fields.
// Multiple calls merge fields, with newer non-nil/non-empty values taking precedence.
// Context timeouts and cancellation are preserved.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	existing := GetLogFields(ctx)
	merged := mergeFields(existing, fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields retrieves log fields from context.
// Returns empty LogFields if none are set.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

// mergeFields merges two LogFields, preferring non-nil/non-empty values from 'new'.
func mergeFields(existing, new LogFields) LogFields {
	result := existing

	if new.EntityRef != nil {
		result.EntityRef = new.EntityRef
	}
	if new.EventLogID != nil {
		result.EventLogID = new.EventLogID
	}
	if new.MessageID != nil {
		result.MessageID = new.MessageID
	}
	if new.ReceiptID != nil {
		result.ReceiptID = new.ReceiptID
	}
	if new.Agent != nil {
		result.Agent = new.Agent
	}
	if new.EventKind != nil {
		result.EventKind = new.EventKind
	}
	if new.Component != "" {
		result.Component = new.Component
	}

	return result
}

// Ptr is a helper to create a pointer from a value.
// Useful for setting LogFields inline: logger.WithLogFields(ctx, logger.LogFields{EventLogID: logger.Ptr(id)})
func Ptr[T any](v T) *T {
	return &v
}

// Truncate truncates a string to maxLen characters, appending "..." if truncated.
// Useful for logging potentially long strings like event bodies or error messages.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
