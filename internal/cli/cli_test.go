package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/lending/internal/config"
	"github.com/mrlokans/lending/internal/database"
	"github.com/mrlokans/lending/internal/database/books"
	"github.com/mrlokans/lending/internal/database/users"
	"github.com/mrlokans/lending/internal/entities"
	"github.com/mrlokans/lending/internal/lending"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Database: config.Database{Path: filepath.Join(t.TempDir(), "library.db")},
		Lending: config.Lending{
			LoanPeriodDays:   14,
			MaxRenewals:      2,
			FinePerDay:       "1.00",
			OperationTimeout: 5 * time.Second,
		},
		Auth: config.Auth{Mode: config.AuthModeToken, BcryptCost: 4, TokenExpiry: time.Hour},
	}
}

func TestSweepCommand_ParseFlags(t *testing.T) {
	cfg := testConfig(t)

	t.Run("defaults to configured database", func(t *testing.T) {
		cmd := NewSweepCommand(cfg)
		require.NoError(t, cmd.ParseFlags(nil))
		assert.Equal(t, cfg.Database.Path, cmd.DatabasePath)
		assert.Empty(t, cmd.AsOf)
	})

	t.Run("accepts RFC 3339 as-of", func(t *testing.T) {
		cmd := NewSweepCommand(cfg)
		require.NoError(t, cmd.ParseFlags([]string{"-as-of", "2024-06-01T00:00:00Z", "-json"}))
		assert.Equal(t, "2024-06-01T00:00:00Z", cmd.AsOf)
		assert.True(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC).Equal(cmd.asOf))
		assert.True(t, cmd.JSON)
	})

	t.Run("rejects malformed as-of", func(t *testing.T) {
		cmd := NewSweepCommand(cfg)
		assert.Error(t, cmd.ParseFlags([]string{"-as-of", "yesterday"}))
		assert.True(t, cmd.asOf.IsZero())
	})

	t.Run("no as-of sweeps now", func(t *testing.T) {
		cmd := NewSweepCommand(cfg)
		require.NoError(t, cmd.ParseFlags([]string{"-json"}))
		assert.True(t, cmd.asOf.IsZero())
	})
}

func TestSweepCommand_Run(t *testing.T) {
	cfg := testConfig(t)

	db, err := database.NewDatabase(cfg.Database.Path)
	require.NoError(t, err)

	ctx := context.Background()
	user := &entities.User{Username: "reader", Email: "reader@example.com", Role: entities.UserRoleReader}
	require.NoError(t, users.NewRepository(db.DB).CreateUser(ctx, user))
	book := &entities.Book{Title: "Dune", Author: "Frank Herbert", TotalCopies: 1}
	require.NoError(t, books.NewRepository(db.DB).CreateBook(ctx, book))

	borrowedAt := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	engine, err := lending.NewEngine(db, lending.DefaultPolicy(), lending.WithClock(func() time.Time { return borrowedAt }))
	require.NoError(t, err)
	record, err := engine.Borrow(ctx, user.ID, book.ID)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	var out bytes.Buffer
	cmd := NewSweepCommand(cfg)
	cmd.Out = &out
	require.NoError(t, cmd.ParseFlags([]string{"-as-of", "2024-06-01T09:00:00Z"}))
	require.NoError(t, cmd.Run(ctx))

	assert.Contains(t, out.String(), "Marked:       1")

	db, err = database.NewDatabase(cfg.Database.Path)
	require.NoError(t, err)
	defer db.Close()

	var stored entities.BorrowRecord
	require.NoError(t, db.DB.First(&stored, record.ID).Error)
	assert.Equal(t, entities.BorrowStatusOverdue, stored.Status)
	assert.True(t, stored.FineAmount.IsPositive())
}

func TestSweepCommand_RunJSON(t *testing.T) {
	cfg := testConfig(t)

	var out bytes.Buffer
	cmd := NewSweepCommand(cfg)
	cmd.Out = &out
	require.NoError(t, cmd.ParseFlags([]string{"-json"}))
	require.NoError(t, cmd.Run(context.Background()))

	assert.Contains(t, out.String(), `"candidates": 0`)
	assert.Contains(t, out.String(), `"run_id"`)
}

func TestSweepCommand_InvalidPolicy(t *testing.T) {
	cfg := testConfig(t)
	cfg.Lending.FinePerDay = "lots"

	cmd := NewSweepCommand(cfg)
	require.NoError(t, cmd.ParseFlags(nil))
	assert.Error(t, cmd.Run(context.Background()))
}

func TestCreateUserCommand_ParseFlags(t *testing.T) {
	cfg := testConfig(t)

	tests := []struct {
		name    string
		args    []string
		wantErr bool
	}{
		{"complete", []string{"-username", "admin", "-email", "admin@example.com", "-password", "correct-horse-battery", "-role", "admin"}, false},
		{"missing username", []string{"-email", "admin@example.com", "-password", "correct-horse-battery"}, true},
		{"missing password", []string{"-username", "admin", "-email", "admin@example.com"}, true},
		{"unknown role", []string{"-username", "admin", "-email", "admin@example.com", "-password", "correct-horse-battery", "-role", "root"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("LENDING_USER_PASSWORD", "")
			cmd := NewCreateUserCommand(cfg)
			err := cmd.ParseFlags(tt.args)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCreateUserCommand_PasswordFromEnv(t *testing.T) {
	t.Setenv("LENDING_USER_PASSWORD", "from-the-environment")

	cmd := NewCreateUserCommand(testConfig(t))
	require.NoError(t, cmd.ParseFlags([]string{"-username", "admin", "-email", "admin@example.com"}))
	assert.Equal(t, "from-the-environment", cmd.Password)
	assert.Equal(t, string(entities.UserRoleReader), cmd.Role)
}

func TestCreateUserCommand_Run(t *testing.T) {
	cfg := testConfig(t)

	var out bytes.Buffer
	cmd := NewCreateUserCommand(cfg)
	cmd.Out = &out
	require.NoError(t, cmd.ParseFlags([]string{
		"-username", "admin", "-email", "admin@example.com",
		"-password", "correct-horse-battery", "-role", "admin", "-token",
	}))
	require.NoError(t, cmd.Run(context.Background()))

	assert.Contains(t, out.String(), `Created admin "admin"`)
	assert.Contains(t, out.String(), "API token: ")

	db, err := database.NewDatabase(cfg.Database.Path)
	require.NoError(t, err)
	defer db.Close()

	user, err := users.NewRepository(db.DB).GetUserByUsername(context.Background(), "admin")
	require.NoError(t, err)
	assert.Equal(t, entities.UserRoleAdmin, user.Role)
	assert.NotEmpty(t, user.TokenHash)

	// Same username again fails.
	again := NewCreateUserCommand(cfg)
	again.Out = &out
	require.NoError(t, again.ParseFlags([]string{
		"-username", "admin", "-email", "other@example.com", "-password", "correct-horse-battery",
	}))
	assert.Error(t, again.Run(context.Background()))
}
