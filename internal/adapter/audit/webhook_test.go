package audit

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"rin-bot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWebhookSinkDelivers(t *testing.T) {
	var mu sync.Mutex
	var got webhookPayload

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	sink := NewWebhookSink(server.URL, 100, testLogger())
	sink.Emit(context.Background(), domain.AuditEvent{
		ID:        "01HTESTEVENT",
		Timestamp: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Title:     "Chat turn",
		Fields: []domain.AuditField{
			{Name: "identity", Value: "U1"},
			{Name: "status", Value: "ok"},
		},
	})
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got.Embeds) != 1 {
		t.Fatalf("embeds = %d, want 1", len(got.Embeds))
	}
	embed := got.Embeds[0]
	if embed.Title != "Chat turn" {
		t.Errorf("title = %q", embed.Title)
	}
	if embed.Timestamp != "2025-06-01T12:00:00Z" {
		t.Errorf("timestamp = %q", embed.Timestamp)
	}
	if len(embed.Fields) != 2 || embed.Fields[0].Name != "identity" || embed.Fields[1].Value != "ok" {
		t.Errorf("fields = %+v", embed.Fields)
	}
}

func TestWebhookSinkFailureDoesNotPropagate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	sink := NewWebhookSink(server.URL, 100, testLogger())
	sink.Emit(context.Background(), domain.AuditEvent{Title: "Boom"})
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestWebhookSinkCloseWaitsForInflight(t *testing.T) {
	delivered := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(20 * time.Millisecond)
		close(delivered)
	}))
	defer server.Close()

	sink := NewWebhookSink(server.URL, 100, testLogger())
	sink.Emit(context.Background(), domain.AuditEvent{Title: "Slow"})
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	select {
	case <-delivered:
	default:
		t.Fatal("Close returned before delivery finished")
	}
}

func TestNoopSink(t *testing.T) {
	sink := NewNoopSink()
	sink.Emit(context.Background(), domain.AuditEvent{Title: "ignored"})
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
