package server

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRateLimiter(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{
		RequestsPerSecond: 10,
		Burst:             20,
		RequestsPerHour:   100,
		MaxRequestsPerDay: 1000,
		MaxDataPerDay:     1024 * 1024,
	})

	assert.NotNil(t, rl)
	assert.InDelta(t, 10.0, rl.requestsPerSecond, 0)
	assert.Equal(t, 20, rl.burst)
	assert.Equal(t, 100, rl.requestsPerHour)
	assert.Equal(t, 1000, rl.maxRequestsPerDay)
	assert.Equal(t, int64(1024*1024), rl.maxDataPerDay)
	assert.NotNil(t, rl.userRequests)
}

func TestNewRateLimiter_BurstDefaultsToOne(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{RequestsPerSecond: 5})
	assert.Equal(t, 1, rl.burst)

	rl = NewRateLimiter(RateLimitConfig{})
	assert.Equal(t, 0, rl.burst)
}

func TestRateLimiter_CheckRateLimit_NoLimits(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{})

	for range 50 {
		require.NoError(t, rl.CheckRateLimit("user1", 100))
	}

	usage := rl.GetUsage("user1")
	assert.Equal(t, 50, usage.requestsToday)
	assert.Equal(t, int64(5000), usage.dataToday)
}

func TestRateLimiter_CheckRateLimit_Burst(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{RequestsPerSecond: 1, Burst: 2})

	userID := "user1"

	assert.NoError(t, rl.CheckRateLimit(userID, 0))
	assert.NoError(t, rl.CheckRateLimit(userID, 0))

	err := rl.CheckRateLimit(userID, 0)
	require.Error(t, err)

	rateLimitErr := &RateLimitError{}
	require.ErrorAs(t, err, &rateLimitErr)
	assert.Equal(t, "burst", rateLimitErr.Type)
	assert.Equal(t, 2, rateLimitErr.Limit)
	assert.Positive(t, rateLimitErr.RetryAfter)
	assert.LessOrEqual(t, rateLimitErr.RetryAfter, time.Second)
}

func TestRateLimiter_CheckRateLimit_BurstRefills(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{RequestsPerSecond: 50, Burst: 1})

	require.NoError(t, rl.CheckRateLimit("user1", 0))
	require.Error(t, rl.CheckRateLimit("user1", 0))

	assert.Eventually(t, func() bool {
		return rl.CheckRateLimit("user1", 0) == nil
	}, time.Second, 10*time.Millisecond)
}

func TestRateLimiter_RejectedRequestDoesNotConsume(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{RequestsPerSecond: 0.001, Burst: 1, MaxDataPerDay: 10})

	// Rejected by the data quota, the token stays in the bucket.
	err := rl.CheckRateLimit("user1", 100)
	quotaErr := &QuotaExceededError{}
	require.ErrorAs(t, err, &quotaErr)
	assert.Equal(t, "data", quotaErr.Type)

	assert.NoError(t, rl.CheckRateLimit("user1", 5))
}

func TestRateLimiter_CheckRateLimit_RequestsPerHour(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{RequestsPerHour: 3})

	userID := "user1"

	for range 3 {
		assert.NoError(t, rl.CheckRateLimit(userID, 0))
	}

	err := rl.CheckRateLimit(userID, 0)
	assert.Error(t, err)

	rateLimitErr := &RateLimitError{}
	ok := errors.As(err, &rateLimitErr)
	require.True(t, ok)
	assert.Equal(t, "hour", rateLimitErr.Type)
	assert.Equal(t, 3, rateLimitErr.Limit)
	assert.Positive(t, rateLimitErr.RetryAfter)
}

func TestRateLimiter_CheckRateLimit_MaxRequestsPerDay(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{MaxRequestsPerDay: 2})

	userID := "user1"

	assert.NoError(t, rl.CheckRateLimit(userID, 0))
	assert.NoError(t, rl.CheckRateLimit(userID, 0))

	err := rl.CheckRateLimit(userID, 0)
	assert.Error(t, err)

	quotaErr := &QuotaExceededError{}
	ok := errors.As(err, &quotaErr)
	require.True(t, ok)
	assert.Equal(t, "requests", quotaErr.Type)
	assert.Equal(t, int64(2), quotaErr.Limit)
	assert.Equal(t, int64(2), quotaErr.Used)
	assert.True(t, quotaErr.Resets.After(time.Now()))
}

func TestRateLimiter_CheckRateLimit_MaxDataPerDay(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{MaxDataPerDay: 1000})

	userID := "user1"

	assert.NoError(t, rl.CheckRateLimit(userID, 500))
	assert.NoError(t, rl.CheckRateLimit(userID, 400))

	err := rl.CheckRateLimit(userID, 200)
	assert.Error(t, err)

	quotaErr := &QuotaExceededError{}
	ok := errors.As(err, &quotaErr)
	require.True(t, ok)
	assert.Equal(t, "data", quotaErr.Type)
	assert.Equal(t, int64(1000), quotaErr.Limit)
	assert.Equal(t, int64(900), quotaErr.Used)
}

func TestRateLimiter_CheckRateLimit_HourReset(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{RequestsPerHour: 1})

	userID := "user1"

	assert.NoError(t, rl.CheckRateLimit(userID, 0))
	assert.Error(t, rl.CheckRateLimit(userID, 0))

	rl.mu.Lock()
	if usage, exists := rl.userRequests[userID]; exists {
		usage.hourStartTime = time.Now().Add(-2 * time.Hour)
	}
	rl.mu.Unlock()

	assert.NoError(t, rl.CheckRateLimit(userID, 0))
}

func TestRateLimiter_CheckRateLimit_DayReset(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{MaxRequestsPerDay: 1})

	userID := "user1"

	assert.NoError(t, rl.CheckRateLimit(userID, 0))
	assert.Error(t, rl.CheckRateLimit(userID, 0))

	rl.mu.Lock()
	if usage, exists := rl.userRequests[userID]; exists {
		usage.dayStartTime = time.Now().AddDate(0, 0, -1)
	}
	rl.mu.Unlock()

	assert.NoError(t, rl.CheckRateLimit(userID, 0))
}

func TestRateLimiter_GetUsage(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{RequestsPerSecond: 100, Burst: 10, RequestsPerHour: 100, MaxRequestsPerDay: 1000, MaxDataPerDay: 10000})

	userID := "user1"

	usage := rl.GetUsage(userID)
	assert.Equal(t, 0, usage.requestsLastHour)
	assert.Equal(t, 0, usage.requestsToday)
	assert.Equal(t, int64(0), usage.dataToday)

	assert.NoError(t, rl.CheckRateLimit(userID, 500))
	assert.NoError(t, rl.CheckRateLimit(userID, 300))

	usage = rl.GetUsage(userID)
	assert.Equal(t, 2, usage.requestsLastHour)
	assert.Equal(t, 2, usage.requestsToday)
	assert.Equal(t, int64(800), usage.dataToday)
	assert.Nil(t, usage.limiter)
	assert.True(t, usage.lastRequestTime.After(time.Now().Add(-time.Minute)))
}

func TestRateLimiter_GetUsage_NonExistentUser(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{RequestsPerHour: 100})

	usage := rl.GetUsage("nonexistent")
	assert.Equal(t, 0, usage.requestsLastHour)
	assert.Equal(t, 0, usage.requestsToday)
	assert.Equal(t, int64(0), usage.dataToday)
	assert.True(t, usage.lastRequestTime.IsZero())
	assert.True(t, usage.dayStartTime.IsZero())
	assert.Equal(t, 0, rl.Clients())
}

func TestRateLimiter_MultipleUsers(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{RequestsPerSecond: 0.01, Burst: 2})

	for _, user := range []string{"user1", "user2"} {
		assert.NoError(t, rl.CheckRateLimit(user, 0))
		assert.NoError(t, rl.CheckRateLimit(user, 0))
		assert.Error(t, rl.CheckRateLimit(user, 0))
	}
	assert.Equal(t, 2, rl.Clients())
}

func TestRateLimiter_Concurrent(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{MaxRequestsPerDay: 100})

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 10 {
				if rl.CheckRateLimit("shared", 1) == nil {
					mu.Lock()
					allowed++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, allowed)
	assert.Equal(t, 100, rl.GetUsage("shared").requestsToday)
}

func TestRateLimitError_Error(t *testing.T) {
	err := &RateLimitError{
		Type:       "hour",
		Limit:      10,
		RetryAfter: time.Minute * 5,
	}

	expected := "rate limit exceeded for hour (limit: 10, retry after: 5m0s)"
	assert.Equal(t, expected, err.Error())
}

func TestQuotaExceededError_Error(t *testing.T) {
	resetTime := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	err := &QuotaExceededError{
		Type:   "data",
		Limit:  1000,
		Used:   950,
		Resets: resetTime,
	}

	expected := "quota exceeded for data (used: 950, limit: 1000, resets: 2024-01-02T00:00:00Z)"
	assert.Equal(t, expected, err.Error())
}

func BenchmarkRateLimiter_CheckRateLimit(b *testing.B) {
	rl := NewRateLimiter(RateLimitConfig{RequestsPerSecond: 1e9, Burst: 1 << 30, RequestsPerHour: 1 << 30})

	b.ResetTimer()
	for range b.N {
		_ = rl.CheckRateLimit("benchuser", 100)
	}
}
