package reports_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/lending/internal/database"
	"github.com/mrlokans/lending/internal/database/books"
	"github.com/mrlokans/lending/internal/database/users"
	"github.com/mrlokans/lending/internal/entities"
	"github.com/mrlokans/lending/internal/lending"
	"github.com/mrlokans/lending/internal/reports"
)

var start = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

type fixture struct {
	reporter *reports.Reporter
	engine   *lending.Engine
	now      time.Time
	books    []*entities.Book
	users    []*entities.User
}

func setup(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	db, err := database.NewDatabaseWithOptions(filepath.Join(t.TempDir(), "reports.db"), database.Options{LogLevel: logger.Silent})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	f := &fixture{now: start}
	f.engine, err = lending.NewEngine(db, lending.DefaultPolicy(), lending.WithClock(func() time.Time { return f.now }))
	require.NoError(t, err)

	sqlDB, err := db.SQLDB()
	require.NoError(t, err)
	f.reporter = reports.NewReporter(sqlDB)

	bookRepo := books.NewRepository(db.DB)
	for i, title := range []string{"Kindred", "Parable of the Sower", "Dawn"} {
		b := &entities.Book{Title: title, Author: "Octavia E. Butler", TotalCopies: 3 - i}
		require.NoError(t, bookRepo.CreateBook(ctx, b))
		f.books = append(f.books, b)
	}

	userRepo := users.NewRepository(db.DB)
	for _, name := range []string{"ann", "ben", "cat"} {
		u := &entities.User{Username: name, Email: name + "@example.com"}
		require.NoError(t, userRepo.CreateUser(ctx, u))
		f.users = append(f.users, u)
	}
	_, err = userRepo.SetStatus(ctx, f.users[2].ID, entities.UserStatusDisabled)
	require.NoError(t, err)

	return f
}

func (f *fixture) borrow(t *testing.T, user, book int) *entities.BorrowRecord {
	t.Helper()
	rec, err := f.engine.Borrow(context.Background(), f.users[user].ID, f.books[book].ID)
	require.NoError(t, err)
	return rec
}

func TestOverview(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	first := f.borrow(t, 0, 0)
	f.borrow(t, 1, 0)
	f.borrow(t, 0, 1)

	// Returned four days late: fine 4.
	f.now = first.DueDate.Add(4 * 24 * time.Hour)
	_, err := f.engine.Return(ctx, first.ID, nil)
	require.NoError(t, err)

	_, err = f.engine.SweepOverdue(ctx, f.now)
	require.NoError(t, err)

	overview, err := f.reporter.Overview(ctx, f.now)
	require.NoError(t, err)

	assert.Equal(t, int64(0), overview.LoansByStatus[entities.BorrowStatusBorrowed])
	assert.Equal(t, int64(2), overview.LoansByStatus[entities.BorrowStatusOverdue])
	assert.Equal(t, int64(1), overview.LoansByStatus[entities.BorrowStatusReturned])
	assert.Equal(t, int64(2), overview.OverdueNow)
	assert.True(t, decimal.NewFromInt(8).Equal(overview.OutstandingFines), overview.OutstandingFines.String())
	assert.True(t, decimal.NewFromInt(4).Equal(overview.FinesAssessed), overview.FinesAssessed.String())

	assert.Equal(t, reports.InventoryTotals{
		Titles:          3,
		TotalCopies:     6,
		AvailableCopies: 4,
		BorrowedCopies:  2,
	}, overview.Inventory)
	assert.Equal(t, int64(2), overview.ActiveUsers)
}

func TestOverview_Empty(t *testing.T) {
	f := setup(t)

	overview, err := f.reporter.Overview(context.Background(), f.now)
	require.NoError(t, err)
	assert.Equal(t, int64(0), overview.OverdueNow)
	assert.True(t, overview.OutstandingFines.IsZero())
	assert.Len(t, overview.LoansByStatus, 3)
}

func TestPopularBooks(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	rec := f.borrow(t, 0, 1)
	_, err := f.engine.Return(ctx, rec.ID, nil)
	require.NoError(t, err)
	f.borrow(t, 0, 1)
	f.borrow(t, 1, 1)
	f.borrow(t, 0, 0)

	popular, err := f.reporter.PopularBooks(ctx, 2)
	require.NoError(t, err)
	require.Len(t, popular, 2)
	assert.Equal(t, f.books[1].ID, popular[0].BookID)
	assert.Equal(t, int64(3), popular[0].Loans)
	assert.Equal(t, "Parable of the Sower", popular[0].Title)
	assert.Equal(t, f.books[0].ID, popular[1].BookID)
	assert.Equal(t, int64(1), popular[1].Loans)
}

func TestDueSoon(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	early := f.borrow(t, 0, 0)
	f.now = start.Add(10 * 24 * time.Hour)
	f.borrow(t, 1, 1)

	loans, err := f.reporter.DueSoon(ctx, early.DueDate.Add(-48*time.Hour), 0)
	require.NoError(t, err)
	require.Len(t, loans, 1)
	assert.Equal(t, early.ID, loans[0].RecordID)
	assert.Equal(t, "ann", loans[0].Username)
	assert.Equal(t, "Kindred", loans[0].Title)
	assert.True(t, loans[0].DueDate.Equal(early.DueDate))

	loans, err = f.reporter.DueSoon(ctx, early.DueDate.Add(time.Hour), 0)
	require.NoError(t, err)
	assert.Empty(t, loans)

	loans, err = f.reporter.DueSoon(ctx, start, 45*24*time.Hour)
	require.NoError(t, err)
	assert.Len(t, loans, 2)
}
