package tasks

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/lending/internal/lending"
)

const (
	SweepOverdueQueue       = "sweep_overdue"
	CleanupAuditEventsQueue = "cleanup_audit_events"

	// DefaultAuditRetentionDays applies when a cleanup task names no window.
	DefaultAuditRetentionDays = 90
)

var (
	errNoSweeper = errors.New("overdue sweeper not configured")
	errNoCleaner = errors.New("audit event cleaner not configured")
)

// Sweeper runs an overdue sweep as of the given instant.
type Sweeper interface {
	SweepOverdue(ctx context.Context, now time.Time) (lending.SweepResult, error)
}

// AuditEventCleaner deletes audit events older than a retention window.
type AuditEventCleaner interface {
	DeleteOldEvents(ctx context.Context, retention time.Duration) (int64, error)
}

// maintenanceQueue is shared by both maintenance tasks. Only failed payloads
// are kept around for inspection. Attempts, backoff, timeout and retention
// here are fallbacks; Client.Register replaces them with the client's Config.
func maintenanceQueue(name string, backoff, timeout time.Duration) backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        name,
		MaxAttempts: 3,
		Backoff:     backoff,
		Timeout:     timeout,
		Retention: &backlite.Retention{
			Duration: 24 * time.Hour,
			Data:     &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// SweepOverdueTask marks loans past their due date as overdue and refreshes
// their fines. A zero AsOf sweeps as of the moment the task runs.
type SweepOverdueTask struct {
	AsOf time.Time `json:"as_of,omitempty"`
}

func (t SweepOverdueTask) Config() backlite.QueueConfig {
	return maintenanceQueue(SweepOverdueQueue, time.Minute, 5*time.Minute)
}

// SweepOverdueProcessor creates a processor function for SweepOverdueTask.
// Errors are returned so backlite retries the run.
func SweepOverdueProcessor(sweeper Sweeper) backlite.QueueProcessor[SweepOverdueTask] {
	return func(ctx context.Context, task SweepOverdueTask) error {
		if sweeper == nil {
			return errNoSweeper
		}

		result, err := sweeper.SweepOverdue(ctx, task.AsOf)
		if err != nil {
			return fmt.Errorf("sweep overdue: %w", err)
		}

		log.Printf("[TASK] Overdue sweep %s: %d candidates, %d marked overdue, %d fines refreshed, %d skipped",
			result.RunID, result.Candidates, result.Transitioned, result.Refreshed, result.Skipped)
		return nil
	}
}

// CleanupAuditEventsTask purges audit events older than RetentionDays.
// Loan records themselves are never purged.
type CleanupAuditEventsTask struct {
	RetentionDays int `json:"retention_days"`
}

func (t CleanupAuditEventsTask) Config() backlite.QueueConfig {
	return maintenanceQueue(CleanupAuditEventsQueue, 5*time.Minute, 2*time.Minute)
}

func (t CleanupAuditEventsTask) retention() (int, time.Duration) {
	days := t.RetentionDays
	if days <= 0 {
		days = DefaultAuditRetentionDays
	}
	return days, time.Duration(days) * 24 * time.Hour
}

// CleanupAuditEventsProcessor creates a processor function for CleanupAuditEventsTask.
func CleanupAuditEventsProcessor(cleaner AuditEventCleaner) backlite.QueueProcessor[CleanupAuditEventsTask] {
	return func(ctx context.Context, task CleanupAuditEventsTask) error {
		if cleaner == nil {
			return errNoCleaner
		}

		days, window := task.retention()
		deleted, err := cleaner.DeleteOldEvents(ctx, window)
		if err != nil {
			return fmt.Errorf("cleanup audit events: %w", err)
		}
		if deleted > 0 {
			log.Printf("[TASK] Purged %d audit events older than %d days", deleted, days)
		}
		return nil
	}
}

// NewSweepOverdueQueue creates a backlite queue for sweep tasks.
func NewSweepOverdueQueue(sweeper Sweeper) backlite.Queue {
	return backlite.NewQueue(SweepOverdueProcessor(sweeper))
}

// NewCleanupAuditEventsQueue creates a backlite queue for audit cleanup tasks.
func NewCleanupAuditEventsQueue(cleaner AuditEventCleaner) backlite.Queue {
	return backlite.NewQueue(CleanupAuditEventsProcessor(cleaner))
}
