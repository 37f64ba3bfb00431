package shared

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// PortalRateLimiter enforces a minimum delay between outbound portal
// requests so concurrent detail fetches stay polite to the target site.
type PortalRateLimiter struct {
	minimumDelay    time.Duration
	lastRequestTime time.Time
	mutex           sync.Mutex
	requestCount    int64
}

// NewPortalRateLimiter creates a rate limiter with the specified minimum
// delay. A zero or negative delay disables waiting entirely.
func NewPortalRateLimiter(minimumDelay time.Duration) *PortalRateLimiter {
	return &PortalRateLimiter{
		minimumDelay:    minimumDelay,
		lastRequestTime: time.Now(),
	}
}

// EnforceRateLimit blocks until the minimum delay has elapsed since the
// previous request, then records the current request.
func (limiter *PortalRateLimiter) EnforceRateLimit() {
	limiter.mutex.Lock()
	defer limiter.mutex.Unlock()

	limiter.requestCount++
	if limiter.minimumDelay <= 0 {
		limiter.lastRequestTime = time.Now()
		return
	}

	elapsedTime := time.Since(limiter.lastRequestTime)
	if elapsedTime < limiter.minimumDelay {
		remainingDelay := limiter.minimumDelay - elapsedTime

		logrus.WithFields(logrus.Fields{
			"component":       "PortalRateLimiter",
			"elapsed_time":    elapsedTime,
			"remaining_delay": remainingDelay,
			"request_count":   limiter.requestCount,
		}).Debug("Enforcing politeness delay before portal request")

		time.Sleep(remainingDelay)
	}

	limiter.lastRequestTime = time.Now()
}

// GetRequestCount returns the total number of requests processed
func (limiter *PortalRateLimiter) GetRequestCount() int64 {
	limiter.mutex.Lock()
	defer limiter.mutex.Unlock()
	return limiter.requestCount
}

// Reset resets the rate limiter state
func (limiter *PortalRateLimiter) Reset() {
	limiter.mutex.Lock()
	defer limiter.mutex.Unlock()

	limiter.lastRequestTime = time.Now()
	limiter.requestCount = 0
}
