package audit

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	auditRepo "github.com/mrlokans/lending/internal/database/audit"
	"github.com/mrlokans/lending/internal/entities"
	"github.com/mrlokans/lending/internal/lending"
)

func setupTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "audit.db")+"?_busy_timeout=5000"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&entities.AuditEvent{}))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	return NewService(auditRepo.NewRepository(db)), db
}

func lastEvent(t *testing.T, db *gorm.DB) entities.AuditEvent {
	t.Helper()
	var event entities.AuditEvent
	require.NoError(t, db.Order("id DESC").First(&event).Error)
	return event
}

func decodeMetadata(t *testing.T, event entities.AuditEvent) map[string]any {
	t.Helper()
	metadata := map[string]any{}
	require.NoError(t, jsoniter.ConfigFastest.UnmarshalFromString(event.Metadata, &metadata))
	return metadata
}

func TestService_Log(t *testing.T) {
	svc, db := setupTestService(t)

	event := &entities.AuditEvent{
		UserID:    1,
		EventType: entities.AuditEventAdmin,
		Action:    "test_action",
		Status:    entities.AuditStatusSuccess,
	}
	require.NoError(t, svc.Log(context.Background(), event))

	var saved entities.AuditEvent
	require.NoError(t, db.First(&saved, event.ID).Error)
	assert.Equal(t, "test_action", saved.Action)
}

func TestService_ObserveLending(t *testing.T) {
	svc, db := setupTestService(t)
	due := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	t.Run("successful borrow", func(t *testing.T) {
		svc.ObserveLending(lending.Event{
			Action:   lending.ActionBorrow,
			UserID:   3,
			BookID:   9,
			RecordID: 12,
			Record: &entities.BorrowRecord{
				ID: 12, UserID: 3, BookID: 9, DueDate: due,
				Status: entities.BorrowStatusBorrowed, FineAmount: decimal.Zero,
			},
		})
		svc.Wait()

		event := lastEvent(t, db)
		assert.Equal(t, entities.AuditEventBorrow, event.EventType)
		assert.Equal(t, "book_borrow", event.Action)
		assert.Equal(t, entities.AuditStatusSuccess, event.Status)
		assert.Equal(t, uint(3), event.UserID)
		require.NotNil(t, event.EntityID)
		assert.Equal(t, uint(12), *event.EntityID)

		metadata := decodeMetadata(t, event)
		assert.Equal(t, float64(9), metadata["book_id"])
		assert.Equal(t, "2024-02-01T00:00:00Z", metadata["due_date"])
		assert.NotContains(t, metadata, "fine_amount")
	})

	t.Run("declined borrow", func(t *testing.T) {
		svc.ObserveLending(lending.Event{
			Action: lending.ActionBorrow,
			UserID: 3,
			BookID: 9,
			Err:    &lending.DeclinedError{Reason: lending.ReasonNoAvailableCopies, Message: "no copies"},
		})
		svc.Wait()

		event := lastEvent(t, db)
		assert.Equal(t, entities.AuditStatusDeclined, event.Status)
		assert.Nil(t, event.EntityID)
		assert.Equal(t, "NO_AVAILABLE_COPIES", decodeMetadata(t, event)["reason"])
	})

	t.Run("late return", func(t *testing.T) {
		returned := due.Add(72 * time.Hour)
		svc.ObserveLending(lending.Event{
			Action:   lending.ActionReturn,
			UserID:   3,
			BookID:   9,
			RecordID: 12,
			Record: &entities.BorrowRecord{
				ID: 12, DueDate: due, ReturnDate: &returned,
				Status: entities.BorrowStatusReturned, FineAmount: decimal.NewFromInt(3),
			},
		})
		svc.Wait()

		event := lastEvent(t, db)
		assert.Equal(t, entities.AuditEventReturn, event.EventType)
		assert.Equal(t, "3.00", decodeMetadata(t, event)["fine_amount"])
	})

	t.Run("consistency fault", func(t *testing.T) {
		svc.ObserveLending(lending.Event{
			Action:   lending.ActionReturn,
			RecordID: 12,
			Err:      fmt.Errorf("%w: book 9", lending.ErrConsistencyFault),
		})
		svc.Wait()

		event := lastEvent(t, db)
		assert.Equal(t, entities.AuditStatusFailed, event.Status)
		assert.Contains(t, event.ErrorMsg, "consistency")
		assert.Equal(t, true, decodeMetadata(t, event)["consistency_fault"])
	})

	t.Run("sweep", func(t *testing.T) {
		svc.ObserveLending(lending.Event{
			Action: lending.ActionSweep,
			Sweep: &lending.SweepResult{
				RunID: "run-1", AsOf: due, Candidates: 3, Transitioned: 2, Refreshed: 1,
			},
		})
		svc.Wait()

		event := lastEvent(t, db)
		assert.Equal(t, entities.AuditEventSweep, event.EventType)
		assert.Equal(t, uint(0), event.UserID)
		metadata := decodeMetadata(t, event)
		assert.Equal(t, "run-1", metadata["run_id"])
		assert.Equal(t, float64(2), metadata["transitioned"])
	})
}

func TestService_LogAuth(t *testing.T) {
	svc, db := setupTestService(t)

	svc.LogAuth(5, "token_issue", "127.0.0.1", true)
	svc.LogAuth(0, "token_issue", "10.0.0.1", false)
	svc.Wait()

	var events []entities.AuditEvent
	require.NoError(t, db.Where("event_type = ?", entities.AuditEventAuth).Order("id ASC").Find(&events).Error)
	require.Len(t, events, 2)
	assert.Equal(t, entities.AuditStatusSuccess, events[0].Status)
	assert.Equal(t, entities.AuditStatusFailed, events[1].Status)
	assert.Nil(t, events[1].EntityID)
}

func TestService_LogAdmin(t *testing.T) {
	svc, db := setupTestService(t)

	svc.LogAdmin(1, "book_copies_set", "book", 4, "Set total copies to 5", nil)
	svc.LogAdmin(1, "user_disable", "user", 8, "Disabled user 8", errors.New("boom"))
	svc.Wait()

	var events []entities.AuditEvent
	require.NoError(t, db.Order("id ASC").Find(&events).Error)
	require.Len(t, events, 2)
	assert.Equal(t, entities.AuditEventInventory, events[0].EventType)
	assert.Equal(t, entities.AuditEventAdmin, events[1].EventType)
	assert.Equal(t, entities.AuditStatusFailed, events[1].Status)
	assert.Equal(t, "boom", events[1].ErrorMsg)
}

func TestService_GetEventsAndCleanup(t *testing.T) {
	svc, db := setupTestService(t)
	ctx := context.Background()

	require.NoError(t, db.Create(&entities.AuditEvent{
		EventType: entities.AuditEventSweep, Action: "old", Status: entities.AuditStatusSuccess,
		CreatedAt: time.Now().Add(-100 * 24 * time.Hour).UTC(),
	}).Error)
	require.NoError(t, svc.Log(ctx, &entities.AuditEvent{
		EventType: entities.AuditEventSweep, Action: "new", Status: entities.AuditStatusSuccess,
	}))

	deleted, err := svc.DeleteOldEvents(ctx, 90*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	events, total, err := svc.GetEvents(ctx, auditRepo.Filter{EventType: entities.AuditEventSweep})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "new", events[0].Action)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}
