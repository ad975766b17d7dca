package handler

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

const (
	minLimiterIdle = time.Minute
	maxLimiterIdle = 24 * time.Hour
)

// RateLimiter throttles report submissions per caller (user id, else client IP).
// A caller's limiter is forgotten once it has been idle long enough to refill.
type RateLimiter struct {
	limiters     *gocache.Cache
	mu           sync.Mutex
	defaultRate  rate.Limit
	defaultBurst int
}

// NewRateLimiter allows requestsPerSecond with the given burst per caller.
// A non-positive rate disables limiting.
func NewRateLimiter(requestsPerSecond float64, burst int) *RateLimiter {
	if burst <= 0 {
		burst = 5
	}
	return newRateLimiter(requestsPerSecond, burst, refillTime(requestsPerSecond, burst))
}

func newRateLimiter(requestsPerSecond float64, burst int, idle time.Duration) *RateLimiter {
	return &RateLimiter{
		limiters:     gocache.New(idle, idle),
		defaultRate:  rate.Limit(requestsPerSecond),
		defaultBurst: burst,
	}
}

// refillTime is how long a bucket takes to fill from empty. After that a new
// limiter behaves exactly like the old one.
func refillTime(requestsPerSecond float64, burst int) time.Duration {
	if requestsPerSecond <= 0 {
		return minLimiterIdle
	}
	secs := float64(burst) / requestsPerSecond
	if secs >= maxLimiterIdle.Seconds() {
		return maxLimiterIdle
	}
	d := time.Duration(secs * float64(time.Second))
	if d < minLimiterIdle {
		return minLimiterIdle
	}
	return d
}

// Allow reports whether key may proceed now.
func (l *RateLimiter) Allow(key string) bool {
	if l == nil || l.defaultRate <= 0 {
		return true
	}
	return l.getLimiter(key).Allow()
}

func (l *RateLimiter) getLimiter(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	var limiter *rate.Limiter
	if v, found := l.limiters.Get(key); found {
		limiter = v.(*rate.Limiter)
	} else {
		limiter = rate.NewLimiter(l.defaultRate, l.defaultBurst)
	}
	// every use pushes the expiry back
	l.limiters.SetDefault(key, limiter)
	return limiter
}

// Middleware must run after authentication so it can key on the user id.
func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if id := IdentityFrom(c); id != nil && id.UserID != "" {
			key = "user:" + id.UserID
		}
		if !l.Allow(key) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"message": "Too many reports submitted, please wait a moment"})
			return
		}
		c.Next()
	}
}
