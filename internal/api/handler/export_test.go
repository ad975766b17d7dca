package handler

import "time"

var RefillTime = refillTime

func NewRateLimiterWithIdle(requestsPerSecond float64, burst int, idle time.Duration) *RateLimiter {
	return newRateLimiter(requestsPerSecond, burst, idle)
}

// Tracked sweeps expired limiters and counts the rest.
func (l *RateLimiter) Tracked() int {
	l.limiters.DeleteExpired()
	return l.limiters.ItemCount()
}
