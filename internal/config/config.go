package config

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/mrlokans/lending/internal/lending"
)

type AuthMode string

const (
	AuthModeNone  AuthMode = "none"  // No authentication, caller identity comes from the request (default)
	AuthModeToken AuthMode = "token" // Bearer API tokens issued per user
)

type (
	Config struct {
		HTTP
		Global
		Database
		Lending
		Sweep
		Audit
		Tasks
		Auth
	}

	HTTP struct {
		Port int32
		Host string
	}
	Global struct {
		ShutdownTimeoutInSeconds int
	}
	Database struct {
		Path string
	}
	Lending struct {
		LoanPeriodDays   int
		MaxRenewals      int
		FinePerDay       string // decimal, e.g. "1.00"
		OperationTimeout time.Duration
	}
	Sweep struct {
		Enabled  bool
		Schedule string // Cron format: "0 * * * *" = hourly
	}
	Audit struct {
		RetentionDays   int    // Days to keep audit events (default: 90)
		CleanupSchedule string // Cron format: "0 3 * * *" = daily at 03:00
	}
	Tasks struct {
		Enabled           bool
		Workers           int
		MaxRetries        int
		RetryDelay        time.Duration
		TaskTimeout       time.Duration
		ReleaseAfter      time.Duration
		CleanupInterval   time.Duration
		RetentionDuration time.Duration
	}
	Auth struct {
		Mode        AuthMode
		TokenExpiry time.Duration
		BcryptCost  int
	}
)

// Policy converts the lending settings into a validated engine policy.
func (l Lending) Policy() (lending.Policy, error) {
	fine, err := decimal.NewFromString(l.FinePerDay)
	if err != nil {
		return lending.Policy{}, fmt.Errorf("invalid FINE_PER_DAY %q: %w", l.FinePerDay, err)
	}
	policy := lending.Policy{
		LoanPeriodDays: l.LoanPeriodDays,
		MaxRenewals:    l.MaxRenewals,
		FinePerDay:     fine,
	}
	if err := policy.Validate(); err != nil {
		return lending.Policy{}, err
	}
	return policy, nil
}

// AuditRetention is the age past which audit events are purged.
func (a Audit) AuditRetention() time.Duration {
	return time.Duration(a.RetentionDays) * 24 * time.Hour
}

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8188)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("shutdown_timeout_in_seconds", 2)
	v.SetDefault("database_path", DefaultDatabasePath)

	// Lending policy defaults
	v.SetDefault("loan_period_days", lending.DefaultLoanPeriodDays)
	v.SetDefault("max_renewals", lending.DefaultMaxRenewals)
	v.SetDefault("fine_per_day", "1.00")
	v.SetDefault("operation_timeout", "10s")

	// Maintenance defaults
	v.SetDefault("sweep_enabled", true)
	v.SetDefault("sweep_schedule", "0 * * * *") // Hourly at :00
	v.SetDefault("audit_retention_days", 90)
	v.SetDefault("audit_cleanup_schedule", "0 3 * * *") // Daily at 03:00

	// Auth defaults
	v.SetDefault("auth_mode", "none")
	v.SetDefault("auth_token_expiry", "720h") // 30 days
	v.SetDefault("auth_bcrypt_cost", 12)      // bcrypt cost factor

	// Task queue defaults
	v.SetDefault("tasks_enabled", true)
	v.SetDefault("task_workers", 2)
	v.SetDefault("task_max_retries", 3)
	v.SetDefault("task_retry_delay", "1m")
	v.SetDefault("task_timeout", "5m")
	v.SetDefault("task_release_after", "15m")
	v.SetDefault("task_cleanup_interval", "1h")
	v.SetDefault("task_retention_duration", "24h")

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Database: Database{
			Path: v.GetString("DATABASE_PATH"),
		},
		Lending: Lending{
			LoanPeriodDays:   v.GetInt("LOAN_PERIOD_DAYS"),
			MaxRenewals:      v.GetInt("MAX_RENEWALS"),
			FinePerDay:       v.GetString("FINE_PER_DAY"),
			OperationTimeout: v.GetDuration("OPERATION_TIMEOUT"),
		},
		Sweep: Sweep{
			Enabled:  v.GetBool("SWEEP_ENABLED"),
			Schedule: v.GetString("SWEEP_SCHEDULE"),
		},
		Audit: Audit{
			RetentionDays:   v.GetInt("AUDIT_RETENTION_DAYS"),
			CleanupSchedule: v.GetString("AUDIT_CLEANUP_SCHEDULE"),
		},
		Tasks: Tasks{
			Enabled:           v.GetBool("TASKS_ENABLED"),
			Workers:           v.GetInt("TASK_WORKERS"),
			MaxRetries:        v.GetInt("TASK_MAX_RETRIES"),
			RetryDelay:        v.GetDuration("TASK_RETRY_DELAY"),
			TaskTimeout:       v.GetDuration("TASK_TIMEOUT"),
			ReleaseAfter:      v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval:   v.GetDuration("TASK_CLEANUP_INTERVAL"),
			RetentionDuration: v.GetDuration("TASK_RETENTION_DURATION"),
		},
		Auth: Auth{
			Mode:        AuthMode(v.GetString("AUTH_MODE")),
			TokenExpiry: v.GetDuration("AUTH_TOKEN_EXPIRY"),
			BcryptCost:  v.GetInt("AUTH_BCRYPT_COST"),
		},
	}
}
