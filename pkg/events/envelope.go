// Package events defines the envelope that wraps practice-session domain
// events and the EventSink they are delivered to.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

// Envelope wraps a domain event with the metadata needed to route and
// deduplicate it.
type Envelope struct {
	// ID uniquely identifies this event instance.
	ID string `json:"id"`

	// Type identifies the event, e.g. "session.created" or
	// "session.assessed".
	Type string `json:"type"`

	// Source names the emitting component, e.g. "session-activity".
	Source string `json:"source"`

	// Version of the payload schema. Starts at "1.0.0".
	Version string `json:"version"`

	// Timestamp records when the event was emitted.
	Timestamp time.Time `json:"timestamp"`

	// IdempotencyKey is derived from the session and event type so that an
	// activity retry emits the same key again.
	IdempotencyKey string `json:"idempotency_key"`

	// SessionID is the practice session the event concerns.
	SessionID string `json:"session_id"`

	// WorkflowID and RunID identify the Temporal execution, when there is
	// one.
	WorkflowID string `json:"workflow_id,omitempty"`
	RunID      string `json:"run_id,omitempty"`

	// Payload is the event body. Its schema depends on Type and Version.
	Payload json.RawMessage `json:"payload"`
}

// EventSink receives emitted events.
type EventSink interface {
	// Append delivers an event on a best-effort basis. Duplicate
	// idempotency keys should be treated as no-ops. Callers never fail
	// their primary operation because Append returned an error.
	Append(ctx context.Context, envelope Envelope) error
}

// NoOpEventSink discards every event.
type NoOpEventSink struct{}

// Append implements EventSink.
func (n *NoOpEventSink) Append(_ context.Context, _ Envelope) error {
	return nil
}

// NewNoOpEventSink creates a sink that discards events.
func NewNoOpEventSink() EventSink {
	return &NoOpEventSink{}
}

// LogEventSink writes each event as a structured log record. It is the
// sink the worker uses when no downstream consumer is configured.
type LogEventSink struct {
	logger *slog.Logger
}

// NewLogEventSink creates a sink logging at info level through logger.
// A nil logger falls back to slog.Default.
func NewLogEventSink(logger *slog.Logger) *LogEventSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogEventSink{logger: logger.With("component", "events")}
}

// Append implements EventSink.
func (s *LogEventSink) Append(ctx context.Context, e Envelope) error {
	s.logger.InfoContext(ctx, "event",
		"type", e.Type,
		"source", e.Source,
		"session_id", e.SessionID,
		"idempotency_key", e.IdempotencyKey,
		"workflow_id", e.WorkflowID,
		"payload_bytes", len(e.Payload))
	return nil
}
