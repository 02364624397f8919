package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/mrlokans/lending/internal/config"
	"github.com/mrlokans/lending/internal/database/users"
	"github.com/mrlokans/lending/internal/entities"
	"github.com/mrlokans/lending/internal/lending"
)

var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,64}$`)
	emailPattern    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
)

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrUserExists       = errors.New("user already exists")
	ErrUserDisabled     = errors.New("user is disabled")
	ErrInvalidToken     = errors.New("invalid token")
	ErrTokenExpired     = errors.New("token expired")
	ErrInvalidRole      = errors.New("invalid role")
	ErrPasswordRequired = errors.New("password is required")
	ErrUsernameInvalid  = errors.New("username must be 3-64 characters, alphanumeric and underscore/hyphen only")
	ErrEmailInvalid     = errors.New("invalid email format")
)

// Service handles credentials and API tokens.
type Service struct {
	users  *users.Repository
	config config.Auth
	now    func() time.Time
}

// NewService creates a new authentication service.
func NewService(repo *users.Repository, cfg config.Auth) *Service {
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	return &Service{
		users:  repo,
		config: cfg,
		now:    time.Now,
	}
}

// CreateUser registers a user with a password.
func (s *Service) CreateUser(ctx context.Context, username, email, password string, role entities.UserRole) (*entities.User, error) {
	if !usernamePattern.MatchString(username) {
		return nil, ErrUsernameInvalid
	}
	// RFC 5321 caps addresses at 254 characters.
	if len(email) > 254 || !emailPattern.MatchString(email) {
		return nil, ErrEmailInvalid
	}
	if password == "" {
		return nil, ErrPasswordRequired
	}
	if role == "" {
		role = entities.UserRoleReader
	}
	if !entities.ValidUserRole(role) {
		return nil, ErrInvalidRole
	}

	if _, err := s.users.GetUserByUsername(ctx, username); err == nil {
		return nil, ErrUserExists
	} else if !errors.Is(err, lending.ErrNotFound) {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}

	passwordHash, err := HashPassword(password, s.config.BcryptCost)
	if err != nil {
		return nil, err
	}

	user := &entities.User{
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
		Status:       entities.UserStatusActive,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Authenticate validates credentials and returns the user.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*entities.User, error) {
	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, lending.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user.PasswordHash == "" {
		return nil, ErrInvalidPassword
	}
	if err := CheckPassword(password, user.PasswordHash); err != nil {
		return nil, err
	}
	if !user.IsActive() {
		return nil, ErrUserDisabled
	}

	if err := s.users.RecordLogin(ctx, user.ID, s.now().UTC()); err != nil {
		return nil, fmt.Errorf("failed to record login: %w", err)
	}
	return user, nil
}

// IssueToken replaces the user's API token with a fresh one.
// The plaintext is returned once; only its hash is stored.
func (s *Service) IssueToken(ctx context.Context, userID uint) (string, *time.Time, error) {
	plaintext, hash, err := GenerateAPIToken()
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate token: %w", err)
	}

	var expiresAt *time.Time
	if s.config.TokenExpiry > 0 {
		t := s.now().Add(s.config.TokenExpiry).UTC()
		expiresAt = &t
	}

	if err := s.users.SetTokenHash(ctx, userID, hash, expiresAt); err != nil {
		if errors.Is(err, lending.ErrNotFound) {
			return "", nil, ErrUserNotFound
		}
		return "", nil, err
	}
	return plaintext, expiresAt, nil
}

// RevokeToken removes a user's API token.
func (s *Service) RevokeToken(ctx context.Context, userID uint) error {
	return s.users.SetTokenHash(ctx, userID, "", nil)
}

// ValidateToken checks a plaintext token and returns its active owner.
func (s *Service) ValidateToken(ctx context.Context, token string) (*entities.User, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	user, err := s.users.GetUserByTokenHash(ctx, HashToken(token))
	if err != nil {
		if errors.Is(err, lending.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if user.TokenExpiresAt != nil && s.now().After(*user.TokenExpiresAt) {
		return nil, ErrTokenExpired
	}
	if !user.IsActive() {
		return nil, ErrUserDisabled
	}
	return user, nil
}

// IsAuthEnabled returns true if requests must carry a token.
func (s *Service) IsAuthEnabled() bool {
	return s.config.Mode == config.AuthModeToken
}

func (s *Service) GetAuthMode() config.AuthMode {
	return s.config.Mode
}
