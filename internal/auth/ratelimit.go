package auth

import (
	"sync"
	"time"
)

// LoginLimiter throttles failed credential checks per client IP and username
// using a fixed window followed by a lockout.
type LoginLimiter struct {
	mu       sync.Mutex
	attempts map[string]*attemptRecord
	max      int
	window   time.Duration
	lockout  time.Duration
	now      func() time.Time
}

type attemptRecord struct {
	count        int
	firstAttempt time.Time
	lockedUntil  time.Time
}

type LimiterConfig struct {
	MaxAttempts     int           // default 5
	WindowDuration  time.Duration // default 15m
	LockoutDuration time.Duration // default 30m
}

func DefaultLimiterConfig() LimiterConfig {
	return LimiterConfig{
		MaxAttempts:     5,
		WindowDuration:  15 * time.Minute,
		LockoutDuration: 30 * time.Minute,
	}
}

func NewLoginLimiter(cfg LimiterConfig) *LoginLimiter {
	def := DefaultLimiterConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.WindowDuration <= 0 {
		cfg.WindowDuration = def.WindowDuration
	}
	if cfg.LockoutDuration <= 0 {
		cfg.LockoutDuration = def.LockoutDuration
	}
	return &LoginLimiter{
		attempts: make(map[string]*attemptRecord),
		max:      cfg.MaxAttempts,
		window:   cfg.WindowDuration,
		lockout:  cfg.LockoutDuration,
		now:      time.Now,
	}
}

func limiterKey(ip, username string) string {
	return ip + ":" + username
}

// Allow reports whether another attempt may be made, and if not, for how long
// the caller must wait.
func (l *LoginLimiter) Allow(ip, username string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	rec, ok := l.attempts[limiterKey(ip, username)]
	if !ok {
		return true, 0
	}
	if now.Before(rec.lockedUntil) {
		return false, rec.lockedUntil.Sub(now)
	}
	if now.Sub(rec.firstAttempt) > l.window || rec.count < l.max {
		return true, 0
	}
	return false, l.lockout
}

// RecordFailure counts a failed attempt and reports whether it triggered a lockout.
func (l *LoginLimiter) RecordFailure(ip, username string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	key := limiterKey(ip, username)
	rec, ok := l.attempts[key]
	if !ok || now.Sub(rec.firstAttempt) > l.window {
		rec = &attemptRecord{firstAttempt: now}
		l.attempts[key] = rec
	}

	rec.count++
	if rec.count >= l.max {
		rec.lockedUntil = now.Add(l.lockout)
		return true
	}
	return false
}

// RecordSuccess clears the failure record for a successful login.
func (l *LoginLimiter) RecordSuccess(ip, username string) {
	l.mu.Lock()
	delete(l.attempts, limiterKey(ip, username))
	l.mu.Unlock()
}

// Prune drops records whose window and lockout have both passed.
func (l *LoginLimiter) Prune() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for key, rec := range l.attempts {
		if now.Sub(rec.firstAttempt) > l.window && !now.Before(rec.lockedUntil) {
			delete(l.attempts, key)
			removed++
		}
	}
	return removed
}
