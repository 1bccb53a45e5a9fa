package usecase

import (
	"sync"
	"time"

	"rin-bot/internal/domain"
)

const dateLayout = "2006-01-02"

// Rollover compares now (UTC) to the stored day watermark and reports
// whether all counters should be cleared. Pure so it can be exercised with
// arbitrary clocks in tests.
func Rollover(now time.Time, watermark string) (shouldReset bool, newWatermark string) {
	d := now.UTC().Format(dateLayout)
	return d != watermark, d
}

type quotaKey struct {
	scope domain.QuotaScope
	key   string
}

// QuotaTracker owns per-(scope, key) daily completion counters. The day
// boundary is detected lazily on access against a YYYY-MM-DD UTC watermark;
// no background timer is involved. All methods are safe for concurrent use.
type QuotaTracker struct {
	mu        sync.RWMutex
	counts    map[quotaKey]int
	watermark string
	now       func() time.Time
}

// NewQuotaTracker creates a tracker using the wall clock.
func NewQuotaTracker() *QuotaTracker {
	return newQuotaTracker(time.Now)
}

func newQuotaTracker(now func() time.Time) *QuotaTracker {
	return &QuotaTracker{
		counts:    make(map[quotaKey]int),
		watermark: now().UTC().Format(dateLayout),
		now:       now,
	}
}

// rolloverIfNewDay clears all counters when the date has advanced past the
// watermark.
func (t *QuotaTracker) rolloverIfNewDay() {
	t.mu.RLock()
	reset, d := Rollover(t.now(), t.watermark)
	t.mu.RUnlock()
	if !reset {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	// Double-check after acquiring write lock.
	if reset, d = Rollover(t.now(), t.watermark); !reset {
		return
	}
	t.counts = make(map[quotaKey]int)
	t.watermark = d
}

// IsOverQuota reports whether the counter for (scope, key) has reached
// limit. A limit of 0 means unlimited. The rollover check runs first, so a
// new day always starts with fresh counters.
func (t *QuotaTracker) IsOverQuota(scope domain.QuotaScope, key string, limit int) bool {
	t.rolloverIfNewDay()
	if limit <= 0 {
		return false
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.counts[quotaKey{scope, key}] >= limit
}

// Increment adds one completion to the counter for (scope, key).
func (t *QuotaTracker) Increment(scope domain.QuotaScope, key string) {
	t.rolloverIfNewDay()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts[quotaKey{scope, key}]++
}

// Count returns the current counter for (scope, key). Intended for testing
// and introspection.
func (t *QuotaTracker) Count(scope domain.QuotaScope, key string) int {
	t.rolloverIfNewDay()

	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.counts[quotaKey{scope, key}]
}
