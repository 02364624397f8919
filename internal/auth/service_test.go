package auth

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/lending/internal/config"
	"github.com/mrlokans/lending/internal/database/users"
	"github.com/mrlokans/lending/internal/entities"
)

const testPassword = "a-long-enough-password"

func setupService(t *testing.T, mode config.AuthMode) (*Service, *users.Repository) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "auth.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&entities.User{}))
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})

	repo := users.NewRepository(db)
	cfg := config.Auth{
		Mode:        mode,
		BcryptCost:  4, // Low cost for faster tests
		TokenExpiry: time.Hour,
	}
	return NewService(repo, cfg), repo
}

func TestService_CreateUser(t *testing.T) {
	svc, _ := setupService(t, config.AuthModeToken)
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, "librarian", "lib@example.com", testPassword, entities.UserRoleAdmin)
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.True(t, user.IsAdmin())
	assert.NotEqual(t, testPassword, user.PasswordHash)

	tests := []struct {
		name     string
		username string
		email    string
		password string
		role     entities.UserRole
		wantErr  error
	}{
		{name: "duplicate", username: "librarian", email: "x@example.com", password: testPassword, wantErr: ErrUserExists},
		{name: "bad username", username: "a!", email: "x@example.com", password: testPassword, wantErr: ErrUsernameInvalid},
		{name: "bad email", username: "reader", email: "nope", password: testPassword, wantErr: ErrEmailInvalid},
		{name: "no password", username: "reader", email: "r@example.com", wantErr: ErrPasswordRequired},
		{name: "short password", username: "reader", email: "r@example.com", password: "short", wantErr: ErrPasswordTooShort},
		{name: "bad role", username: "reader", email: "r@example.com", password: testPassword, role: "owner", wantErr: ErrInvalidRole},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateUser(ctx, tt.username, tt.email, tt.password, tt.role)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("role defaults to reader", func(t *testing.T) {
		user, err := svc.CreateUser(ctx, "reader", "r@example.com", testPassword, "")
		require.NoError(t, err)
		assert.Equal(t, entities.UserRoleReader, user.Role)
	})
}

func TestService_Authenticate(t *testing.T) {
	svc, repo := setupService(t, config.AuthModeToken)
	ctx := context.Background()

	created, err := svc.CreateUser(ctx, "reader", "r@example.com", testPassword, entities.UserRoleReader)
	require.NoError(t, err)

	user, err := svc.Authenticate(ctx, "reader", testPassword)
	require.NoError(t, err)
	assert.Equal(t, created.ID, user.ID)

	stored, err := repo.GetUser(ctx, created.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.LastLoginAt)

	_, err = svc.Authenticate(ctx, "reader", "not-the-password")
	assert.ErrorIs(t, err, ErrInvalidPassword)

	_, err = svc.Authenticate(ctx, "ghost", testPassword)
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = repo.SetStatus(ctx, created.ID, entities.UserStatusDisabled)
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, "reader", testPassword)
	assert.ErrorIs(t, err, ErrUserDisabled)
}

func TestService_Tokens(t *testing.T) {
	svc, repo := setupService(t, config.AuthModeToken)
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, "reader", "r@example.com", testPassword, entities.UserRoleReader)
	require.NoError(t, err)

	token, expiresAt, err := svc.IssueToken(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, token, 64)
	require.NotNil(t, expiresAt)

	validated, err := svc.ValidateToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, validated.ID)

	t.Run("unknown token", func(t *testing.T) {
		_, err := svc.ValidateToken(ctx, "deadbeef")
		assert.ErrorIs(t, err, ErrInvalidToken)

		_, err = svc.ValidateToken(ctx, "")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired token", func(t *testing.T) {
		svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		defer func() { svc.now = time.Now }()

		_, err := svc.ValidateToken(ctx, token)
		assert.ErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("reissue invalidates previous token", func(t *testing.T) {
		newToken, _, err := svc.IssueToken(ctx, user.ID)
		require.NoError(t, err)

		_, err = svc.ValidateToken(ctx, token)
		assert.ErrorIs(t, err, ErrInvalidToken)
		_, err = svc.ValidateToken(ctx, newToken)
		assert.NoError(t, err)
		token = newToken
	})

	t.Run("disabled user", func(t *testing.T) {
		_, err := repo.SetStatus(ctx, user.ID, entities.UserStatusDisabled)
		require.NoError(t, err)
		defer repo.SetStatus(ctx, user.ID, entities.UserStatusActive)

		_, err = svc.ValidateToken(ctx, token)
		assert.ErrorIs(t, err, ErrUserDisabled)
	})

	t.Run("revoke", func(t *testing.T) {
		require.NoError(t, svc.RevokeToken(ctx, user.ID))
		_, err := svc.ValidateToken(ctx, token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	_, _, err = svc.IssueToken(ctx, 9999)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestService_Mode(t *testing.T) {
	svc, _ := setupService(t, config.AuthModeNone)
	assert.False(t, svc.IsAuthEnabled())
	assert.Equal(t, config.AuthModeNone, svc.GetAuthMode())

	svc, _ = setupService(t, config.AuthModeToken)
	assert.True(t, svc.IsAuthEnabled())
}
