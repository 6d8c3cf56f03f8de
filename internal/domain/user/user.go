package user

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidEmail       = errors.New("email is required")
	ErrInvalidName        = errors.New("name is required")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrResetTokenInvalid  = errors.New("password reset token is invalid or expired")
)

const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"

	// ResetTokenTTL bounds how long a password reset token stays valid.
	ResetTokenTTL = time.Hour
)

// User is an account record. PasswordHash is bcrypt; ResetTokenHash stores
// the SHA-256 of the raw reset token so a database leak does not expose
// usable tokens.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`

	ResetTokenHash    string     `json:"-"`
	ResetTokenExpires *time.Time `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NormalizeEmail lowercases and trims an email the way the store indexes it.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// ResetTokenValid reports whether a reset token hash matches and has not
// expired. Tokens are single-use; the store clears them on consumption.
func (u *User) ResetTokenValid(tokenHash string, now time.Time) bool {
	if u.ResetTokenHash == "" || u.ResetTokenExpires == nil {
		return false
	}
	return u.ResetTokenHash == tokenHash && now.Before(*u.ResetTokenExpires)
}
