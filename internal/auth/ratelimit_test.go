package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoginLimiter(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	limiter := NewLoginLimiter(LimiterConfig{MaxAttempts: 3, WindowDuration: time.Minute, LockoutDuration: 10 * time.Minute})
	limiter.now = func() time.Time { return now }

	allowed, _ := limiter.Allow("1.2.3.4", "reader")
	assert.True(t, allowed)

	assert.False(t, limiter.RecordFailure("1.2.3.4", "reader"))
	assert.False(t, limiter.RecordFailure("1.2.3.4", "reader"))
	assert.True(t, limiter.RecordFailure("1.2.3.4", "reader"))

	allowed, retryAfter := limiter.Allow("1.2.3.4", "reader")
	assert.False(t, allowed)
	assert.Equal(t, 10*time.Minute, retryAfter)

	allowed, _ = limiter.Allow("5.6.7.8", "reader")
	assert.True(t, allowed, "other clients are unaffected")

	now = now.Add(11 * time.Minute)
	allowed, _ = limiter.Allow("1.2.3.4", "reader")
	assert.True(t, allowed)
	assert.Equal(t, 1, limiter.Prune())
}

func TestLoginLimiter_SuccessResets(t *testing.T) {
	limiter := NewLoginLimiter(LimiterConfig{MaxAttempts: 2})

	limiter.RecordFailure("ip", "reader")
	limiter.RecordSuccess("ip", "reader")
	assert.False(t, limiter.RecordFailure("ip", "reader"))
}

func TestLoginLimiter_Defaults(t *testing.T) {
	limiter := NewLoginLimiter(LimiterConfig{})
	assert.Equal(t, 5, limiter.max)
	assert.Equal(t, 15*time.Minute, limiter.window)
}
