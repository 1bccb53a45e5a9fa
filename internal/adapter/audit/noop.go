package audit

import (
	"context"

	"rin-bot/internal/domain"
)

// NoopSink discards every event. Used when no webhook URL is configured.
type NoopSink struct{}

// NewNoopSink returns a sink that drops all events.
func NewNoopSink() *NoopSink { return &NoopSink{} }

// Emit implements domain.AuditSink.
func (*NoopSink) Emit(context.Context, domain.AuditEvent) {}

// Close implements domain.AuditSink.
func (*NoopSink) Close() error { return nil }

var _ domain.AuditSink = (*NoopSink)(nil)
