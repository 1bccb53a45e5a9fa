package domain

import "context"

// ChatBot is the contract the channel adapters invoke. Chat returns a
// user-displayable string in every non-fatal case: either the assistant's
// reply or a rendered failure message. The error return is reserved for
// infrastructure problems (e.g. the caller's context was cancelled while
// waiting for the identity lock).
type ChatBot interface {
	SetPersona(ctx context.Context, identity, persona string) error
	ResetHistory(ctx context.Context, identity string) error
	Chat(ctx context.Context, identity string, scope QuotaScope, scopeKey, text string) (string, error)
	HealthCheck(ctx context.Context) bool
}
