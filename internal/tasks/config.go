package tasks

import (
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/lending/internal/config"
)

// Config holds configuration for the task queue system.
type Config struct {
	// Workers is the number of concurrent task workers. Default: 2
	Workers int

	// MaxRetries caps the attempts of every registered queue. Default: 3
	MaxRetries int

	// RetryDelay is the backoff between attempts. Default: 1m
	RetryDelay time.Duration

	// TaskTimeout bounds a single task execution. Default: 5m
	TaskTimeout time.Duration

	// ReleaseAfter is when stuck tasks are released back to queue. Default: 15m
	ReleaseAfter time.Duration

	// CleanupInterval is how often completed tasks are purged. Default: 1h
	CleanupInterval time.Duration

	// RetentionDuration is how long finished tasks of retaining queues are kept. Default: 24h
	RetentionDuration time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Workers:           2,
		MaxRetries:        3,
		RetryDelay:        1 * time.Minute,
		TaskTimeout:       5 * time.Minute,
		ReleaseAfter:      15 * time.Minute,
		CleanupInterval:   1 * time.Hour,
		RetentionDuration: 24 * time.Hour,
	}
}

// ConfigFrom maps the environment-driven settings onto a Config, keeping
// defaults for anything left at zero.
func ConfigFrom(t config.Tasks) Config {
	return Config{
		Workers:           t.Workers,
		MaxRetries:        t.MaxRetries,
		RetryDelay:        t.RetryDelay,
		TaskTimeout:       t.TaskTimeout,
		ReleaseAfter:      t.ReleaseAfter,
		CleanupInterval:   t.CleanupInterval,
		RetentionDuration: t.RetentionDuration,
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Workers <= 0 {
		c.Workers = def.Workers
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = def.MaxRetries
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = def.RetryDelay
	}
	if c.TaskTimeout <= 0 {
		c.TaskTimeout = def.TaskTimeout
	}
	if c.ReleaseAfter <= 0 {
		c.ReleaseAfter = def.ReleaseAfter
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = def.CleanupInterval
	}
	if c.RetentionDuration <= 0 {
		c.RetentionDuration = def.RetentionDuration
	}
	return c
}

// configuredQueue overrides the attempt, timeout and retention settings a
// queue's task type declares.
type configuredQueue struct {
	backlite.Queue
	config *backlite.QueueConfig
}

func (q configuredQueue) Config() *backlite.QueueConfig {
	return q.config
}

// apply returns q with its settings replaced by the client's. The queue name
// and whether it retains tasks at all are left as declared.
func (c Config) apply(q backlite.Queue) backlite.Queue {
	cfg := *q.Config()
	cfg.MaxAttempts = c.MaxRetries
	cfg.Backoff = c.RetryDelay
	cfg.Timeout = c.TaskTimeout
	if cfg.Retention != nil {
		retention := *cfg.Retention
		retention.Duration = c.RetentionDuration
		cfg.Retention = &retention
	}
	return configuredQueue{Queue: q, config: &cfg}
}
