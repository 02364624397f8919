package tasks

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mikestefanello/backlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/lending/internal/config"
	"github.com/mrlokans/lending/internal/lending"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Workers = 1

	client, err := NewClient(filepath.Join(t.TempDir(), "library.db"), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

type fakeSweeper struct {
	mu     sync.Mutex
	calls  []time.Time
	result lending.SweepResult
	err    error
}

func (f *fakeSweeper) SweepOverdue(ctx context.Context, now time.Time) (lending.SweepResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, now)
	return f.result, f.err
}

func (f *fakeSweeper) Calls() []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Time(nil), f.calls...)
}

type fakeCleaner struct {
	retention time.Duration
	deleted   int64
	err       error
}

func (f *fakeCleaner) DeleteOldEvents(ctx context.Context, retention time.Duration) (int64, error) {
	f.retention = retention
	return f.deleted, f.err
}

func TestQueuePath(t *testing.T) {
	assert.Equal(t, filepath.Join("data", "library-tasks.db"), QueuePath(filepath.Join("data", "library.db")))
	assert.Equal(t, "library-tasks", QueuePath("library"))
}

func TestNewClient(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	cfg := DefaultConfig()
	cfg.Workers = 1

	client, err := NewClient(dbPath, cfg)
	require.NoError(t, err)
	require.NotNil(t, client)

	_, err = os.Stat(filepath.Join(tmpDir, "test-tasks.db"))
	assert.NoError(t, err, "tasks database should be created")
	assert.NotNil(t, client.DB())

	assert.NoError(t, client.Close())
}

func TestClientStartStop(t *testing.T) {
	client := newTestClient(t)

	assert.True(t, client.Stop(context.Background()), "stop before start is a no-op")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client.Start(ctx)
	assert.True(t, client.IsStarted())

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()
	assert.True(t, client.Stop(stopCtx), "stop should succeed gracefully")
}

type echoTask struct {
	Value string `json:"value"`
}

func (t echoTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "echo",
		MaxAttempts: 1,
		Backoff:     time.Second,
		Timeout:     5 * time.Second,
	}
}

func TestClientEnqueue(t *testing.T) {
	client := newTestClient(t)

	executed := make(chan string, 1)
	client.Register(backlite.NewQueue(func(ctx context.Context, task echoTask) error {
		executed <- task.Value
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client.Start(ctx)

	id, err := client.Enqueue(ctx, echoTask{Value: "hello"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	select {
	case val := <-executed:
		assert.Equal(t, "hello", val)
	case <-time.After(5 * time.Second):
		t.Fatal("task was not executed within timeout")
	}
}

func TestSweepOverdueTask_RunsThroughQueue(t *testing.T) {
	client := newTestClient(t)
	sweeper := &fakeSweeper{result: lending.SweepResult{RunID: "run-1", Candidates: 2, Transitioned: 1, Refreshed: 1}}
	client.RegisterMaintenance(sweeper, &fakeCleaner{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client.Start(ctx)

	asOf := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	_, err := client.Enqueue(ctx, SweepOverdueTask{AsOf: asOf})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(sweeper.Calls()) == 1
	}, 5*time.Second, 20*time.Millisecond)
	assert.True(t, asOf.Equal(sweeper.Calls()[0]))
}

func TestSweepOverdueProcessor(t *testing.T) {
	t.Run("zero as-of is passed through", func(t *testing.T) {
		sweeper := &fakeSweeper{}
		err := SweepOverdueProcessor(sweeper)(context.Background(), SweepOverdueTask{})
		require.NoError(t, err)
		require.Len(t, sweeper.Calls(), 1)
		assert.True(t, sweeper.Calls()[0].IsZero())
	})

	t.Run("sweep error is returned for retry", func(t *testing.T) {
		sweeper := &fakeSweeper{err: errors.New("database is locked")}
		err := SweepOverdueProcessor(sweeper)(context.Background(), SweepOverdueTask{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database is locked")
	})

	t.Run("missing sweeper", func(t *testing.T) {
		err := SweepOverdueProcessor(nil)(context.Background(), SweepOverdueTask{})
		assert.Error(t, err)
	})
}

func TestCleanupAuditEventsProcessor(t *testing.T) {
	t.Run("uses task retention", func(t *testing.T) {
		cleaner := &fakeCleaner{deleted: 4}
		err := CleanupAuditEventsProcessor(cleaner)(context.Background(), CleanupAuditEventsTask{RetentionDays: 7})
		require.NoError(t, err)
		assert.Equal(t, 7*24*time.Hour, cleaner.retention)
	})

	t.Run("falls back to default retention", func(t *testing.T) {
		cleaner := &fakeCleaner{}
		err := CleanupAuditEventsProcessor(cleaner)(context.Background(), CleanupAuditEventsTask{})
		require.NoError(t, err)
		assert.Equal(t, 90*24*time.Hour, cleaner.retention)
	})

	t.Run("propagates errors", func(t *testing.T) {
		cleaner := &fakeCleaner{err: errors.New("boom")}
		err := CleanupAuditEventsProcessor(cleaner)(context.Background(), CleanupAuditEventsTask{RetentionDays: 1})
		assert.ErrorContains(t, err, "boom")
	})
}

func TestQueueConfigs(t *testing.T) {
	sweep := SweepOverdueTask{}.Config()
	assert.Equal(t, "sweep_overdue", sweep.Name)
	assert.Equal(t, 3, sweep.MaxAttempts)
	assert.Equal(t, 5*time.Minute, sweep.Timeout)
	assert.NotNil(t, sweep.Retention)

	cleanup := CleanupAuditEventsTask{}.Config()
	assert.Equal(t, "cleanup_audit_events", cleanup.Name)
	assert.Equal(t, 3, cleanup.MaxAttempts)
	assert.Equal(t, 2*time.Minute, cleanup.Timeout)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, time.Minute, cfg.RetryDelay)
	assert.Equal(t, 5*time.Minute, cfg.TaskTimeout)
	assert.Equal(t, 15*time.Minute, cfg.ReleaseAfter)
	assert.Equal(t, time.Hour, cfg.CleanupInterval)
	assert.Equal(t, 24*time.Hour, cfg.RetentionDuration)
}

func TestConfigFrom(t *testing.T) {
	cfg := ConfigFrom(config.Tasks{Workers: 4, ReleaseAfter: time.Minute})
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, time.Minute, cfg.ReleaseAfter)
	assert.Equal(t, 3, cfg.MaxRetries, "unset fields keep defaults")
	assert.Equal(t, time.Hour, cfg.CleanupInterval)
}

func TestConfigApply(t *testing.T) {
	cfg := ConfigFrom(config.Tasks{
		MaxRetries:        7,
		RetryDelay:        9 * time.Second,
		TaskTimeout:       11 * time.Second,
		RetentionDuration: 2 * time.Hour,
	})

	sweeper := &fakeSweeper{}
	queue := cfg.apply(NewSweepOverdueQueue(sweeper))

	qc := queue.Config()
	assert.Equal(t, SweepOverdueQueue, qc.Name)
	assert.Equal(t, 7, qc.MaxAttempts)
	assert.Equal(t, 9*time.Second, qc.Backoff)
	assert.Equal(t, 11*time.Second, qc.Timeout)
	require.NotNil(t, qc.Retention)
	assert.Equal(t, 2*time.Hour, qc.Retention.Duration)
	require.NotNil(t, qc.Retention.Data)
	assert.True(t, qc.Retention.Data.OnlyFailed)

	assert.Equal(t, 3, SweepOverdueTask{}.Config().MaxAttempts, "task defaults are untouched")

	require.NoError(t, queue.Process(context.Background(), []byte(`{}`)))
	assert.Len(t, sweeper.Calls(), 1, "processing still reaches the sweeper")
}

func TestConfigApply_KeepsQueuesWithoutRetention(t *testing.T) {
	queue := DefaultConfig().apply(backlite.NewQueue(func(ctx context.Context, task echoTask) error {
		return nil
	}))
	assert.Nil(t, queue.Config().Retention)
	assert.Equal(t, 3, queue.Config().MaxAttempts)
}

func TestNewClient_FillsDefaults(t *testing.T) {
	client, err := NewClient(filepath.Join(t.TempDir(), "library.db"), Config{Workers: 1, MaxRetries: 5})
	require.NoError(t, err)
	defer client.Close()

	assert.Equal(t, 5, client.config.MaxRetries)
	assert.Equal(t, time.Minute, client.config.RetryDelay)
	assert.Equal(t, 24*time.Hour, client.config.RetentionDuration)
}
