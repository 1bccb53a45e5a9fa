package usecase

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"rin-bot/internal/domain"
)

// FailureKind is the closed taxonomy of completion-call failures. It is
// independent of any provider SDK's error hierarchy.
type FailureKind int

const (
	FailureUnknown FailureKind = iota
	FailureRateLimited
	FailureServiceError
	FailureConnection
)

// Failure holds the result of failure classification.
type Failure struct {
	Kind     FailureKind
	Status   int    // HTTP status for FailureServiceError, else 0
	Message  string // service-supplied detail, possibly empty
	Original error
}

// FailureClassifier analyzes completion provider errors and maps them onto
// the stable failure taxonomy.
type FailureClassifier struct{}

// NewFailureClassifier creates a new classifier.
func NewFailureClassifier() *FailureClassifier {
	return &FailureClassifier{}
}

// apiErrorPattern matches "API error <status_code>:" produced by the providers.
var apiErrorPattern = regexp.MustCompile(`API error (\d+): ?(.*)`)

// Classify inspects an error from a completion provider and returns the
// matching Failure.
func (c *FailureClassifier) Classify(err error) Failure {
	if err == nil {
		return Failure{}
	}

	// Wrapped domain sentinels first (from mapHTTPError and friends).
	if errors.Is(err, domain.ErrRateLimit) {
		return Failure{Kind: FailureRateLimited, Original: err}
	}
	if errors.Is(err, domain.ErrConnection) {
		return Failure{Kind: FailureConnection, Original: err}
	}
	if se, ok := domain.AsServiceError(err); ok {
		return Failure{Kind: FailureServiceError, Status: se.Status, Message: se.Message, Original: err}
	}

	errStr := err.Error()

	// Extract an HTTP status from the "API error NNN:" pattern. Covers
	// sentinels (e.g. auth) that carry a status in their detail.
	if m := apiErrorPattern.FindStringSubmatch(errStr); len(m) == 3 {
		code, _ := strconv.Atoi(m[1])
		return Failure{Kind: FailureServiceError, Status: code, Message: m[2], Original: err}
	}

	// String-based fallback for transport errors that reached us unwrapped.
	lower := strings.ToLower(errStr)
	for _, p := range []string{
		"connection refused", "no such host", "timeout",
		"deadline exceeded", "connection reset", "broken pipe",
	} {
		if strings.Contains(lower, p) {
			return Failure{Kind: FailureConnection, Original: err}
		}
	}
	for _, p := range []string{"rate limit", "too many requests"} {
		if strings.Contains(lower, p) {
			return Failure{Kind: FailureRateLimited, Original: err}
		}
	}

	return Failure{Kind: FailureUnknown, Original: err}
}

const (
	rateLimitedReply = "⚠️ The bot's AI quota is currently exhausted or rate-limited.\nPlease try again later (or top up billing)."
	connectionReply  = "⚠️ I couldn't reach the AI service. Please try again in a bit."
	fallbackDetail   = "Something went wrong. Please try again soon."

	// maxServiceDetail bounds how much of a service error body is echoed
	// back to the user.
	maxServiceDetail = 200
)

// Render converts a Failure into the safe, user-facing message for it.
func (c *FailureClassifier) Render(f Failure) string {
	switch f.Kind {
	case FailureRateLimited:
		return rateLimitedReply
	case FailureConnection:
		return connectionReply
	case FailureServiceError:
		detail := strings.TrimSpace(f.Message)
		if detail == "" {
			detail = fallbackDetail
		}
		if r := []rune(detail); len(r) > maxServiceDetail {
			detail = string(r[:maxServiceDetail])
		}
		return fmt.Sprintf("⚠️ AI service error %d: %s", f.Status, detail)
	default:
		return fmt.Sprintf("⚠️ Unexpected error: %s. Please try again.", kindOf(f.Original))
	}
}

// RenderQuotaExceeded is the fixed message for an admission-check rejection.
func RenderQuotaExceeded(scope domain.QuotaScope, limit int) string {
	return fmt.Sprintf("⚠️ Daily %s limit reached (%d). Please try again tomorrow.", scope.Label(), limit)
}

// kindOf names the innermost error type, mirroring what an exception class
// name would be.
func kindOf(err error) string {
	if err == nil {
		return "unknown"
	}
	for {
		inner := errors.Unwrap(err)
		if inner == nil {
			break
		}
		err = inner
	}
	return fmt.Sprintf("%T", err)
}
