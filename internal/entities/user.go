package entities

import (
	"time"
)

type UserRole string

const (
	UserRoleAdmin  UserRole = "admin"
	UserRoleReader UserRole = "reader"
)

type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusDisabled UserStatus = "disabled"
)

type User struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	Username       string     `gorm:"uniqueIndex;size:100;not null" json:"username"`
	Email          string     `gorm:"uniqueIndex;size:255;not null" json:"email"`
	PasswordHash   string     `gorm:"size:100" json:"-"`
	TokenHash      string     `gorm:"index;size:64" json:"-"` // SHA-256 of the API token
	TokenExpiresAt *time.Time `json:"-"`
	Role           UserRole   `gorm:"size:20;default:'reader'" json:"role"`
	Status         UserStatus `gorm:"size:20;default:'active'" json:"status"`
	LastLoginAt    *time.Time `json:"last_login_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// IsActive reports whether the account is enabled.
func (u *User) IsActive() bool {
	return u.Status == UserStatusActive
}

func (u *User) IsAdmin() bool {
	return u.Role == UserRoleAdmin
}

func ValidUserRole(r UserRole) bool {
	return r == UserRoleAdmin || r == UserRoleReader
}

func ValidUserStatus(s UserStatus) bool {
	return s == UserStatusActive || s == UserStatusDisabled
}
