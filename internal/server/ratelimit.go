package server

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter manages request rate limiting and quotas.
type RateLimiter struct {
	mu sync.RWMutex

	// Short-term token bucket per client
	requestsPerSecond float64
	burst             int

	requestsPerHour int

	// User quotas
	maxRequestsPerDay int
	maxDataPerDay     int64 // in bytes

	// Storage for tracking usage
	userRequests map[string]*UserUsage
}

// UserUsage tracks usage for a specific user/IP.
type UserUsage struct {
	limiter *rate.Limiter

	requestsLastHour int
	requestsToday    int

	// Data usage
	dataToday int64 // request bytes today

	// Timestamps
	lastRequestTime time.Time
	hourStartTime   time.Time
	dayStartTime    time.Time
}

// NewRateLimiter creates a new rate limiter with the given limits.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	burst := cfg.Burst
	if burst <= 0 && cfg.RequestsPerSecond > 0 {
		burst = 1
	}
	return &RateLimiter{
		requestsPerSecond: cfg.RequestsPerSecond,
		burst:             burst,
		requestsPerHour:   cfg.RequestsPerHour,
		maxRequestsPerDay: cfg.MaxRequestsPerDay,
		maxDataPerDay:     cfg.MaxDataPerDay,
		userRequests:      make(map[string]*UserUsage),
	}
}

// CheckRateLimit checks if a request from the given user/IP is allowed.
func (rl *RateLimiter) CheckRateLimit(userID string, dataSize int64) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	usage := rl.getOrCreateUserUsage(userID, now)

	rl.resetCountersIfNeeded(usage, now)

	if err := rl.checkRateLimits(usage, now); err != nil {
		return err
	}

	if err := rl.checkDailyQuotas(usage, dataSize, now); err != nil {
		return err
	}

	rl.updateUsageCounters(usage, dataSize, now)

	return nil
}

// resetCountersIfNeeded resets usage counters when time periods change.
func (rl *RateLimiter) resetCountersIfNeeded(usage *UserUsage, now time.Time) {
	if now.YearDay() != usage.dayStartTime.YearDay() || now.Year() != usage.dayStartTime.Year() {
		usage.requestsToday = 0
		usage.dataToday = 0
		usage.dayStartTime = now
	}

	if now.Sub(usage.hourStartTime) >= time.Hour {
		usage.requestsLastHour = 0
		usage.hourStartTime = now
	}
}

// checkRateLimits checks the token bucket and the hourly limit. The bucket
// is only inspected here; a token is taken once every check has passed.
func (rl *RateLimiter) checkRateLimits(usage *UserUsage, now time.Time) error {
	if usage.limiter != nil {
		if tokens := usage.limiter.TokensAt(now); tokens < 1 {
			wait := time.Duration((1 - tokens) / rl.requestsPerSecond * float64(time.Second))
			return &RateLimitError{
				Type:       "burst",
				Limit:      rl.burst,
				RetryAfter: wait,
			}
		}
	}

	if rl.requestsPerHour > 0 && usage.requestsLastHour >= rl.requestsPerHour {
		return &RateLimitError{
			Type:       "hour",
			Limit:      rl.requestsPerHour,
			RetryAfter: time.Hour - now.Sub(usage.hourStartTime),
		}
	}

	return nil
}

// checkDailyQuotas checks daily request and data quotas.
func (rl *RateLimiter) checkDailyQuotas(usage *UserUsage, dataSize int64, now time.Time) error {
	resets := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())

	if rl.maxRequestsPerDay > 0 && usage.requestsToday >= rl.maxRequestsPerDay {
		return &QuotaExceededError{
			Type:   "requests",
			Limit:  int64(rl.maxRequestsPerDay),
			Used:   int64(usage.requestsToday),
			Resets: resets,
		}
	}

	if rl.maxDataPerDay > 0 && usage.dataToday+dataSize > rl.maxDataPerDay {
		return &QuotaExceededError{
			Type:   "data",
			Limit:  rl.maxDataPerDay,
			Used:   usage.dataToday,
			Resets: resets,
		}
	}

	return nil
}

// updateUsageCounters increments usage counters after a successful request.
func (rl *RateLimiter) updateUsageCounters(usage *UserUsage, dataSize int64, now time.Time) {
	if usage.limiter != nil {
		usage.limiter.AllowN(now, 1)
	}
	usage.requestsLastHour++
	usage.requestsToday++
	usage.dataToday += dataSize
	usage.lastRequestTime = now
}

// getOrCreateUserUsage gets or creates usage tracking for a user.
func (rl *RateLimiter) getOrCreateUserUsage(userID string, now time.Time) *UserUsage {
	usage, exists := rl.userRequests[userID]
	if !exists {
		usage = &UserUsage{
			lastRequestTime: now,
			hourStartTime:   now,
			dayStartTime:    now,
		}
		if rl.requestsPerSecond > 0 {
			usage.limiter = rate.NewLimiter(rate.Limit(rl.requestsPerSecond), rl.burst)
		}
		rl.userRequests[userID] = usage
	}
	return usage
}

// GetUsage returns current usage statistics for a user.
func (rl *RateLimiter) GetUsage(userID string) *UserUsage {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	if usage, exists := rl.userRequests[userID]; exists {
		// Return a copy without the bucket
		return &UserUsage{
			requestsLastHour: usage.requestsLastHour,
			requestsToday:    usage.requestsToday,
			dataToday:        usage.dataToday,
			lastRequestTime:  usage.lastRequestTime,
			hourStartTime:    usage.hourStartTime,
			dayStartTime:     usage.dayStartTime,
		}
	}
	return &UserUsage{}
}

// Clients returns the number of tracked clients.
func (rl *RateLimiter) Clients() int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return len(rl.userRequests)
}

// RateLimitError represents a rate limit violation.
type RateLimitError struct {
	Type       string        // "burst" or "hour"
	Limit      int           // the limit that was exceeded
	RetryAfter time.Duration // how long to wait before retrying
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s (limit: %d, retry after: %v)", e.Type, e.Limit, e.RetryAfter)
}

// QuotaExceededError represents a quota violation.
type QuotaExceededError struct {
	Type   string    // "requests" or "data"
	Limit  int64     // the limit that was exceeded
	Used   int64     // current usage
	Resets time.Time // when the quota resets
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded for %s (used: %d, limit: %d, resets: %s)",
		e.Type, e.Used, e.Limit, e.Resets.Format(time.RFC3339))
}
