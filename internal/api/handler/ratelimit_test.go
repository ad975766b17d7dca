package handler_test

import (
	"fmt"
	"testing"
	"time"

	"nagarpalika/backend/internal/api/handler"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_PerCaller(t *testing.T) {
	l := handler.NewRateLimiter(0.001, 2)

	assert.True(t, l.Allow("user:a"))
	assert.True(t, l.Allow("user:a"))
	assert.False(t, l.Allow("user:a"))
	assert.True(t, l.Allow("user:b"))
}

func TestRateLimiter_DisabledAllowsEverything(t *testing.T) {
	l := handler.NewRateLimiter(0, 0)
	for i := 0; i < 100; i++ {
		assert.True(t, l.Allow("user:a"))
	}
	assert.Zero(t, l.Tracked())

	var nilLimiter *handler.RateLimiter
	assert.True(t, nilLimiter.Allow("anyone"))
}

func TestRateLimiter_ForgetsIdleCallers(t *testing.T) {
	l := handler.NewRateLimiterWithIdle(0.001, 1, 50*time.Millisecond)

	for i := 0; i < 20; i++ {
		l.Allow(fmt.Sprintf("10.0.0.%d", i))
	}
	assert.Equal(t, 20, l.Tracked())
	assert.False(t, l.Allow("10.0.0.1"))

	time.Sleep(120 * time.Millisecond)
	assert.Zero(t, l.Tracked())
	assert.True(t, l.Allow("10.0.0.1"), "an evicted caller starts with a full bucket")
}

func TestRateLimiter_ActiveCallerIsKept(t *testing.T) {
	l := handler.NewRateLimiterWithIdle(0.001, 1, 250*time.Millisecond)

	assert.True(t, l.Allow("user:busy"))
	for i := 0; i < 4; i++ {
		time.Sleep(50 * time.Millisecond)
		assert.False(t, l.Allow("user:busy"), "still throttled after %d polls", i+1)
	}
	assert.Equal(t, 1, l.Tracked())
}

func TestRefillTime(t *testing.T) {
	assert.Equal(t, time.Minute, handler.RefillTime(10, 5), "short refills keep the floor")
	assert.Equal(t, 100*time.Minute, handler.RefillTime(0.5, 3000))
	assert.Equal(t, 24*time.Hour, handler.RefillTime(1e-9, 5))
	assert.Equal(t, time.Minute, handler.RefillTime(0, 5))
}
