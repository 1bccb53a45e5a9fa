package usecase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"rin-bot/internal/domain"
)

func TestRollover(t *testing.T) {
	day1 := time.Date(2025, 3, 1, 23, 59, 0, 0, time.UTC)
	day2 := time.Date(2025, 3, 2, 0, 1, 0, 0, time.UTC)

	reset, mark := Rollover(day1, "2025-03-01")
	assert.False(t, reset)
	assert.Equal(t, "2025-03-01", mark)

	reset, mark = Rollover(day2, "2025-03-01")
	assert.True(t, reset)
	assert.Equal(t, "2025-03-02", mark)
}

func TestRollover_UsesUTCDate(t *testing.T) {
	// 23:00 in UTC-5 is already the next day in UTC.
	loc := time.FixedZone("UTC-5", -5*3600)
	local := time.Date(2025, 3, 1, 23, 0, 0, 0, loc)

	reset, mark := Rollover(local, "2025-03-01")
	assert.True(t, reset)
	assert.Equal(t, "2025-03-02", mark)
}

func TestQuotaTracker_DailyLimit(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	tracker := newQuotaTracker(func() time.Time { return now })

	const limit = 3
	for i := 0; i < limit; i++ {
		assert.False(t, tracker.IsOverQuota(domain.ScopeDirect, "u1", limit))
		tracker.Increment(domain.ScopeDirect, "u1")
	}
	assert.True(t, tracker.IsOverQuota(domain.ScopeDirect, "u1", limit))

	// Advancing the clock past midnight clears all counters lazily.
	now = now.Add(24 * time.Hour)
	assert.False(t, tracker.IsOverQuota(domain.ScopeDirect, "u1", limit))
	assert.Equal(t, 0, tracker.Count(domain.ScopeDirect, "u1"))
}

func TestQuotaTracker_ZeroLimitMeansUnlimited(t *testing.T) {
	tracker := NewQuotaTracker()

	for i := 0; i < 100; i++ {
		tracker.Increment(domain.ScopeGroup, "g1")
	}
	assert.False(t, tracker.IsOverQuota(domain.ScopeGroup, "g1", 0))
}

func TestQuotaTracker_ScopesAndKeysAreIndependent(t *testing.T) {
	tracker := NewQuotaTracker()

	tracker.Increment(domain.ScopeDirect, "k1")
	tracker.Increment(domain.ScopeDirect, "k1")
	tracker.Increment(domain.ScopeGroup, "k1")

	assert.Equal(t, 2, tracker.Count(domain.ScopeDirect, "k1"))
	assert.Equal(t, 1, tracker.Count(domain.ScopeGroup, "k1"))
	assert.Equal(t, 0, tracker.Count(domain.ScopeDirect, "k2"))

	assert.True(t, tracker.IsOverQuota(domain.ScopeDirect, "k1", 2))
	assert.False(t, tracker.IsOverQuota(domain.ScopeGroup, "k1", 2))
	assert.False(t, tracker.IsOverQuota(domain.ScopeDirect, "k2", 2))
}
