package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/mikestefanello/backlite"
	"github.com/robfig/cron/v3"

	"github.com/mrlokans/lending/internal/config"
	"github.com/mrlokans/lending/internal/lending"
	"github.com/mrlokans/lending/internal/tasks"
)

const inlineJobTimeout = 5 * time.Minute

// ErrSweepInProgress is returned by RunSweepNow when an inline sweep is
// already running.
var ErrSweepInProgress = errors.New("overdue sweep already in progress")

// Enqueuer hands work to the background task queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, task backlite.Task) (string, error)
}

// Config selects which maintenance jobs run and when.
type Config struct {
	SweepEnabled       bool
	SweepSchedule      string
	AuditRetentionDays int
	AuditSchedule      string // empty disables audit cleanup
}

func ConfigFrom(sweep config.Sweep, audit config.Audit) Config {
	return Config{
		SweepEnabled:       sweep.Enabled,
		SweepSchedule:      sweep.Schedule,
		AuditRetentionDays: audit.RetentionDays,
		AuditSchedule:      audit.CleanupSchedule,
	}
}

// MaintenanceScheduler fires the overdue sweep and audit cleanup on cron
// schedules. With a queue attached the jobs are enqueued as tasks, otherwise
// they run inline on the cron goroutine.
type MaintenanceScheduler struct {
	sweeper tasks.Sweeper
	cleaner tasks.AuditEventCleaner
	queue   Enqueuer
	config  Config

	cron         *cron.Cron
	sweepEntry   cron.EntryID
	cleanupEntry cron.EntryID
	mu           sync.RWMutex
	isRunning    bool
	isSweeping   bool
	cancelFunc   context.CancelFunc
}

type Option func(*MaintenanceScheduler)

// WithQueue routes jobs through the task queue instead of running them inline.
func WithQueue(queue Enqueuer) Option {
	return func(s *MaintenanceScheduler) {
		s.queue = queue
	}
}

func NewMaintenanceScheduler(sweeper tasks.Sweeper, cleaner tasks.AuditEventCleaner, cfg Config, opts ...Option) *MaintenanceScheduler {
	s := &MaintenanceScheduler{
		sweeper: sweeper,
		cleaner: cleaner,
		config:  cfg,
		cron:    cron.New(cron.WithParser(parser), cron.WithLocation(time.UTC)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start registers the enabled jobs and starts the cron loop. The scheduler
// stops when ctx is cancelled.
func (s *MaintenanceScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	scheduled := 0
	if s.config.SweepEnabled && s.sweeper != nil {
		if err := ValidateSchedule(s.config.SweepSchedule); err != nil {
			return fmt.Errorf("invalid sweep schedule '%s': %w", s.config.SweepSchedule, err)
		}
		id, err := s.cron.AddFunc(s.config.SweepSchedule, s.scheduledSweep)
		if err != nil {
			return fmt.Errorf("failed to schedule overdue sweep: %w", err)
		}
		s.sweepEntry = id
		scheduled++
		log.Printf("Maintenance scheduler: overdue sweep '%s' (%s)",
			s.config.SweepSchedule, DescribeSchedule(s.config.SweepSchedule))
	} else {
		log.Printf("Maintenance scheduler: overdue sweep disabled")
	}

	if s.config.AuditSchedule != "" && s.cleaner != nil {
		if err := ValidateSchedule(s.config.AuditSchedule); err != nil {
			return fmt.Errorf("invalid audit cleanup schedule '%s': %w", s.config.AuditSchedule, err)
		}
		id, err := s.cron.AddFunc(s.config.AuditSchedule, s.scheduledCleanup)
		if err != nil {
			return fmt.Errorf("failed to schedule audit cleanup: %w", err)
		}
		s.cleanupEntry = id
		scheduled++
		log.Printf("Maintenance scheduler: audit cleanup '%s' (%s), retention %d days",
			s.config.AuditSchedule, DescribeSchedule(s.config.AuditSchedule), s.config.AuditRetentionDays)
	}

	if scheduled == 0 {
		return nil
	}

	var cancelCtx context.Context
	cancelCtx, s.cancelFunc = context.WithCancel(ctx)

	s.cron.Start()
	s.isRunning = true

	go func() {
		<-cancelCtx.Done()
		s.Stop()
	}()

	return nil
}

// Stop stops the cron loop and waits for a running job to finish.
func (s *MaintenanceScheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	cancel := s.cancelFunc
	s.cancelFunc = nil
	s.mu.Unlock()

	// Jobs take mu themselves, so wait outside the lock.
	done := s.cron.Stop()
	<-done.Done()
	if cancel != nil {
		cancel()
	}

	log.Printf("Maintenance scheduler: stopped")
}

func (s *MaintenanceScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// IsSweeping reports whether an inline sweep is in progress.
func (s *MaintenanceScheduler) IsSweeping() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isSweeping
}

// NextSweep returns the next scheduled sweep, or nil when not scheduled.
func (s *MaintenanceScheduler) NextSweep() *time.Time {
	return s.next(func() cron.EntryID { return s.sweepEntry })
}

// NextCleanup returns the next scheduled audit cleanup, or nil.
func (s *MaintenanceScheduler) NextCleanup() *time.Time {
	return s.next(func() cron.EntryID { return s.cleanupEntry })
}

// next resolves the entry id under mu since Start assigns it.
func (s *MaintenanceScheduler) next(entryID func() cron.EntryID) *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id := entryID()
	if !s.isRunning || id == 0 {
		return nil
	}
	entry := s.cron.Entry(id)
	if !entry.Valid() {
		return nil
	}
	t := entry.Next
	return &t
}

// RunSweepNow triggers a sweep outside the schedule. When a queue is
// attached it returns the task id and a nil result, otherwise it sweeps
// inline and returns the result.
func (s *MaintenanceScheduler) RunSweepNow(ctx context.Context) (string, *lending.SweepResult, error) {
	if s.sweeper == nil {
		return "", nil, errors.New("overdue sweeper not configured")
	}
	if s.queue != nil {
		id, err := s.queue.Enqueue(ctx, tasks.SweepOverdueTask{})
		return id, nil, err
	}
	result, err := s.sweepInline(ctx)
	if err != nil {
		return "", nil, err
	}
	return "", &result, nil
}

func (s *MaintenanceScheduler) scheduledSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), inlineJobTimeout)
	defer cancel()

	if s.queue != nil {
		id, err := s.queue.Enqueue(ctx, tasks.SweepOverdueTask{})
		if err != nil {
			log.Printf("Overdue sweep: failed to enqueue: %v", err)
			return
		}
		log.Printf("Overdue sweep: enqueued task %s", id)
		return
	}

	if _, err := s.sweepInline(ctx); err != nil && !errors.Is(err, ErrSweepInProgress) {
		log.Printf("Overdue sweep: failed: %v", err)
	}
}

func (s *MaintenanceScheduler) sweepInline(ctx context.Context) (lending.SweepResult, error) {
	s.mu.Lock()
	if s.isSweeping {
		s.mu.Unlock()
		log.Printf("Overdue sweep: skipped (already sweeping)")
		return lending.SweepResult{}, ErrSweepInProgress
	}
	s.isSweeping = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.isSweeping = false
		s.mu.Unlock()
	}()

	// A zero instant lets the engine use its own clock.
	return s.sweeper.SweepOverdue(ctx, time.Time{})
}

func (s *MaintenanceScheduler) scheduledCleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), inlineJobTimeout)
	defer cancel()

	task := tasks.CleanupAuditEventsTask{RetentionDays: s.config.AuditRetentionDays}
	if s.queue != nil {
		if _, err := s.queue.Enqueue(ctx, task); err != nil {
			log.Printf("Audit cleanup: failed to enqueue: %v", err)
		}
		return
	}

	if err := tasks.CleanupAuditEventsProcessor(s.cleaner)(ctx, task); err != nil {
		log.Printf("Audit cleanup: failed: %v", err)
	}
}
