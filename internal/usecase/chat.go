package usecase

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/trace"

	"rin-bot/internal/domain"
	"rin-bot/internal/infra/tracer"
)

// Truncation bounds for audit event fields.
const (
	auditPersonaMax = 180
	auditPromptMax  = 300
)

// ChatConfig holds the static knobs of the chat service.
type ChatConfig struct {
	Model       string
	Temperature float64
	// Daily completion limits per scope; 0 = unlimited.
	DirectDailyLimit int
	GroupDailyLimit  int
}

// ChatService orchestrates a chat turn: quota admission, thread mutation,
// the completion call, and failure rendering. It is the single entry point
// the channel adapters invoke.
type ChatService struct {
	store      *ConversationStore
	quota      *QuotaTracker
	provider   domain.LLMProvider
	locker     *IdentityLocker
	classifier *FailureClassifier
	audit      domain.AuditSink
	logger     *slog.Logger
	cfg        ChatConfig
}

// NewChatService wires a chat service from its collaborators.
func NewChatService(
	store *ConversationStore,
	quota *QuotaTracker,
	provider domain.LLMProvider,
	audit domain.AuditSink,
	logger *slog.Logger,
	cfg ChatConfig,
) *ChatService {
	return &ChatService{
		store:      store,
		quota:      quota,
		provider:   provider,
		locker:     NewIdentityLocker(),
		classifier: NewFailureClassifier(),
		audit:      audit,
		logger:     logger,
		cfg:        cfg,
	}
}

// limitFor returns the configured daily limit for a scope.
func (s *ChatService) limitFor(scope domain.QuotaScope) int {
	if scope == domain.ScopeGroup {
		return s.cfg.GroupDailyLimit
	}
	return s.cfg.DirectDailyLimit
}

// Chat runs one conversation turn for identity. The returned string is
// always user-displayable: the assistant's reply on success, a rendered
// failure message otherwise. A non-nil error means the turn never ran
// (e.g. the context was cancelled while waiting for the identity lock).
//
// Quota is incremented only on a successful completion; a turn that ends
// in a rendered failure is not billed against the daily limit.
func (s *ChatService) Chat(ctx context.Context, identity string, scope domain.QuotaScope, scopeKey, text string) (string, error) {
	ctx, span := tracer.StartSpan(ctx, "chat.turn",
		trace.WithAttributes(
			tracer.StringAttr("chat.scope", string(scope)),
			tracer.StringAttr("chat.model", s.cfg.Model),
		),
	)
	defer span.End()

	unlock, err := s.locker.Lock(ctx, identity)
	if err != nil {
		tracer.RecordError(span, err)
		return "", domain.WrapOp("ChatService.Chat", err)
	}
	defer unlock()

	limit := s.limitFor(scope)
	if s.quota.IsOverQuota(scope, scopeKey, limit) {
		s.logger.Info("chat turn rejected by quota",
			"scope", scope, "scope_key", scopeKey, "limit", limit)
		tracer.SetOK(span)
		return RenderQuotaExceeded(scope, limit), nil
	}

	s.store.EnsureThread(identity, "")
	s.store.AppendUser(identity, text)
	snapshot := s.store.Snapshot(identity)

	resp, err := s.provider.Chat(ctx, domain.ChatRequest{
		Model:       s.cfg.Model,
		Messages:    snapshot,
		Temperature: s.cfg.Temperature,
	})
	if err != nil {
		// The user message stays in history; the failed turn is not retried.
		failure := s.classifier.Classify(err)
		s.logger.Warn("completion failed",
			"provider", s.provider.Name(), "kind", failure.Kind, "error", err)
		tracer.RecordError(span, err)
		s.emitChatAudit(ctx, identity, scope, text, "error")
		return s.classifier.Render(failure), nil
	}

	reply := resp.Message.Content
	s.store.AppendAssistant(identity, reply)
	s.quota.Increment(scope, scopeKey)

	s.logger.Debug("chat turn completed",
		"provider", s.provider.Name(),
		"model", resp.Model,
		"tokens", resp.Usage.TotalTokens,
	)
	tracer.SetOK(span)
	s.emitChatAudit(ctx, identity, scope, text, "ok")
	return reply, nil
}

// SetPersona replaces the system message for identity.
func (s *ChatService) SetPersona(ctx context.Context, identity, persona string) error {
	unlock, err := s.locker.Lock(ctx, identity)
	if err != nil {
		return domain.WrapOp("ChatService.SetPersona", err)
	}
	defer unlock()

	s.store.SetPersona(identity, persona)
	s.emitAudit(ctx, "Persona updated",
		domain.AuditField{Name: "identity", Value: identity},
		domain.AuditField{Name: "persona", Value: truncate(persona, auditPersonaMax)},
	)
	return nil
}

// ResetHistory removes the thread for identity.
func (s *ChatService) ResetHistory(ctx context.Context, identity string) error {
	unlock, err := s.locker.Lock(ctx, identity)
	if err != nil {
		return domain.WrapOp("ChatService.ResetHistory", err)
	}
	defer unlock()

	s.store.Reset(identity)
	s.emitAudit(ctx, "History reset",
		domain.AuditField{Name: "identity", Value: identity},
	)
	return nil
}

// HealthCheck probes the completion provider with a minimal request.
func (s *ChatService) HealthCheck(ctx context.Context) bool {
	_, err := s.provider.Chat(ctx, domain.ChatRequest{
		Model: s.cfg.Model,
		Messages: []domain.Message{
			{Role: domain.RoleUser, Content: "ping"},
		},
		MaxTokens: 8,
	})
	if err != nil {
		s.logger.Warn("health check failed", "provider", s.provider.Name(), "error", err)
		return false
	}
	return true
}

func (s *ChatService) emitChatAudit(ctx context.Context, identity string, scope domain.QuotaScope, prompt, outcome string) {
	s.emitAudit(ctx, "Chat turn",
		domain.AuditField{Name: "identity", Value: identity},
		domain.AuditField{Name: "scope", Value: string(scope)},
		domain.AuditField{Name: "prompt", Value: truncate(prompt, auditPromptMax)},
		domain.AuditField{Name: "outcome", Value: outcome},
	)
}

func (s *ChatService) emitAudit(ctx context.Context, title string, fields ...domain.AuditField) {
	if s.audit == nil {
		return
	}
	now := time.Now()
	s.audit.Emit(ctx, domain.AuditEvent{
		ID:        newEventID(now),
		Timestamp: now,
		Title:     title,
		Fields:    fields,
	})
}

func newEventID(t time.Time) string {
	entropy := ulid.Monotonic(rand.New(rand.NewSource(t.UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// truncate cuts s to at most max characters, never splitting a rune.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

// Compile-time interface check.
var _ domain.ChatBot = (*ChatService)(nil)
