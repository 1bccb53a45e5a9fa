// Package audit delivers audit events to an operator-facing channel.
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"rin-bot/internal/domain"
)

const (
	// deliverTimeout bounds a single webhook POST.
	deliverTimeout = 10 * time.Second

	// Webhook endpoints throttle aggressively; stay well under their limits.
	defaultEventsPerSecond = 2
	defaultBurst           = 5
)

// WebhookSink posts audit events to a Discord-compatible webhook URL as
// embeds. Delivery is fire-and-forget: Emit never blocks the caller on
// network I/O, and failures are logged rather than propagated.
type WebhookSink struct {
	url     string
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// NewWebhookSink creates a sink posting to url. A zero eventsPerSecond
// falls back to a conservative default.
func NewWebhookSink(url string, eventsPerSecond float64, logger *slog.Logger) *WebhookSink {
	if eventsPerSecond <= 0 {
		eventsPerSecond = defaultEventsPerSecond
	}
	return &WebhookSink{
		url:     url,
		client:  &http.Client{Timeout: deliverTimeout},
		limiter: rate.NewLimiter(rate.Limit(eventsPerSecond), defaultBurst),
		logger:  logger,
	}
}

// Emit implements domain.AuditSink. The event is delivered on a background
// goroutine; the caller's context only gates the rate limiter wait.
func (s *WebhookSink) Emit(ctx context.Context, event domain.AuditEvent) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		waitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deliverTimeout)
		defer cancel()

		if err := s.limiter.Wait(waitCtx); err != nil {
			s.logger.Warn("audit event dropped", "title", event.Title, "error", err)
			return
		}
		if err := s.deliver(waitCtx, event); err != nil {
			s.logger.Warn("audit delivery failed", "title", event.Title, "error", err)
		}
	}()
}

// Close waits for in-flight deliveries to finish.
func (s *WebhookSink) Close() error {
	s.wg.Wait()
	return nil
}

func (s *WebhookSink) deliver(ctx context.Context, event domain.AuditEvent) error {
	payload, err := json.Marshal(toWebhookPayload(event))
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook status %d", resp.StatusCode)
	}
	return nil
}

// --- Webhook wire types ---

type webhookPayload struct {
	Embeds []webhookEmbed `json:"embeds"`
}

type webhookEmbed struct {
	Title     string         `json:"title"`
	Timestamp string         `json:"timestamp,omitempty"`
	Fields    []webhookField `json:"fields,omitempty"`
}

type webhookField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

func toWebhookPayload(event domain.AuditEvent) webhookPayload {
	embed := webhookEmbed{Title: event.Title}
	if !event.Timestamp.IsZero() {
		embed.Timestamp = event.Timestamp.UTC().Format(time.RFC3339)
	}
	for _, f := range event.Fields {
		embed.Fields = append(embed.Fields, webhookField{
			Name:  f.Name,
			Value: f.Value,
		})
	}
	return webhookPayload{Embeds: []webhookEmbed{embed}}
}

// Compile-time interface check.
var _ domain.AuditSink = (*WebhookSink)(nil)
