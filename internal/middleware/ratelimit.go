package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/time/rate"

	"github.com/gc-eligibility-server/internal/domain"
)

const defaultTrackedClients = 10000

// ClientRateLimiter keeps one token bucket per client IP. The set of tracked
// clients is bounded by an LRU so idle clients are forgotten.
type ClientRateLimiter struct {
	mu       sync.Mutex
	limiters *lru.Cache
	limit    rate.Limit
	burst    int
}

// NewClientRateLimiter creates a per-client limiter allowing rps requests per
// second with the given burst.
func NewClientRateLimiter(rps float64, burst, maxClients int) (*ClientRateLimiter, error) {
	if burst < 1 {
		burst = 1
	}
	if maxClients <= 0 {
		maxClients = defaultTrackedClients
	}
	cache, err := lru.New(maxClients)
	if err != nil {
		return nil, err
	}
	return &ClientRateLimiter{
		limiters: cache,
		limit:    rate.Limit(rps),
		burst:    burst,
	}, nil
}

// Allow reports whether the client may make a request now.
func (l *ClientRateLimiter) Allow(client string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if v, ok := l.limiters.Get(client); ok {
		return v.(*rate.Limiter).Allow()
	}
	limiter := rate.NewLimiter(l.limit, l.burst)
	l.limiters.Add(client, limiter)
	return limiter.Allow()
}

// Tracked returns the number of clients currently tracked.
func (l *ClientRateLimiter) Tracked() int {
	return l.limiters.Len()
}

// RateLimit rejects requests from clients that exceed their budget.
func RateLimit(limiter *ClientRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter.Allow(c.ClientIP()) {
			c.Next()
			return
		}
		c.Header("Retry-After", "1")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, &domain.AssessmentError{
			Code:      domain.ErrRateLimit,
			Message:   "Too many requests",
			Timestamp: time.Now().UTC(),
			RequestID: c.GetString(CorrelationIDKey),
		})
	}
}
