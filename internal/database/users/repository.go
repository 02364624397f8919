// Package users provides database operations for user management.
//
// # Usage
//
//	repo := users.NewRepository(db)
//	user, err := repo.GetUserByTokenHash(ctx, auth.HashToken(token))
package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/lending/internal/entities"
	"github.com/mrlokans/lending/internal/lending"
)

var _ lending.UserStore = (*Repository)(nil)

var ErrInvalidStatus = errors.New("invalid user status")

// Repository handles all user database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new users repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// CreateUser inserts a user. Role and status default to reader / active.
func (r *Repository) CreateUser(ctx context.Context, user *entities.User) error {
	if user.Role == "" {
		user.Role = entities.UserRoleReader
	}
	if user.Status == "" {
		user.Status = entities.UserStatusActive
	}
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("failed to create user %q: %w", user.Username, err)
	}
	return nil
}

// GetUser returns lending.ErrNotFound when no user has the given id.
func (r *Repository) GetUser(ctx context.Context, id uint) (*entities.User, error) {
	var user entities.User
	err := r.db.WithContext(ctx).First(&user, id).Error
	if err != nil {
		return nil, notFound(err, "user %d", id)
	}
	return &user, nil
}

// GetUserByUsername retrieves a user by username.
func (r *Repository) GetUserByUsername(ctx context.Context, username string) (*entities.User, error) {
	var user entities.User
	err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if err != nil {
		return nil, notFound(err, "user %q", username)
	}
	return &user, nil
}

// GetUserByTokenHash retrieves the owner of an API token by the token's hash.
func (r *Repository) GetUserByTokenHash(ctx context.Context, tokenHash string) (*entities.User, error) {
	if tokenHash == "" {
		return nil, fmt.Errorf("empty token: %w", lending.ErrNotFound)
	}
	var user entities.User
	err := r.db.WithContext(ctx).Where("token_hash = ?", tokenHash).First(&user).Error
	if err != nil {
		return nil, notFound(err, "token")
	}
	return &user, nil
}

// SetTokenHash replaces the user's API token. An empty hash revokes it.
func (r *Repository) SetTokenHash(ctx context.Context, userID uint, tokenHash string, expiresAt *time.Time) error {
	result := r.db.WithContext(ctx).Model(&entities.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"token_hash":       tokenHash,
			"token_expires_at": expiresAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to store token for user %d: %w", userID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("user %d: %w", userID, lending.ErrNotFound)
	}
	return nil
}

// SetStatus enables or disables a user. Disabled users cannot borrow.
func (r *Repository) SetStatus(ctx context.Context, userID uint, status entities.UserStatus) (*entities.User, error) {
	if !entities.ValidUserStatus(status) {
		return nil, ErrInvalidStatus
	}
	result := r.db.WithContext(ctx).Model(&entities.User{}).
		Where("id = ?", userID).
		Update("status", status)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to update status of user %d: %w", userID, result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, fmt.Errorf("user %d: %w", userID, lending.ErrNotFound)
	}
	return r.GetUser(ctx, userID)
}

func (r *Repository) RecordLogin(ctx context.Context, userID uint, at time.Time) error {
	return r.db.WithContext(ctx).Model(&entities.User{}).
		Where("id = ?", userID).
		Update("last_login_at", at).Error
}

// HasUsers reports whether any account exists yet.
func (r *Repository) HasUsers(ctx context.Context) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&entities.User{}).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func notFound(err error, format string, args ...interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), lending.ErrNotFound)
	}
	return err
}
