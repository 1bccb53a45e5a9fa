package domain

import (
	"context"
	"time"
)

// AuditField is a single labelled value on an audit event. Fields keep
// their declaration order when rendered.
type AuditField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// AuditEvent is a structured notification about a notable bot action:
// persona changes, history resets, chat turns, guild membership changes.
type AuditEvent struct {
	ID        string       `json:"id"` // ULID, assigned by the emitter
	Timestamp time.Time    `json:"timestamp"`
	Title     string       `json:"title"`
	Fields    []AuditField `json:"fields,omitempty"`
}

// AuditSink delivers audit events. Delivery is fire-and-forget: sinks log
// failures locally and never surface them to the user-facing flow.
type AuditSink interface {
	Emit(ctx context.Context, event AuditEvent)
	Close() error
}
