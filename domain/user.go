package domain

import (
	"net/mail"
	"strings"
	"time"
)

const (
	MinPasswordLength = 8
	// bcrypt ignores everything past 72 bytes.
	MaxPasswordLength = 72
)

// User represents a registered account. PasswordHash never leaves the server.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Registration is the sign-up input.
type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Normalize trims fields and lower-cases the email.
func (r Registration) Normalize() Registration {
	return Registration{
		Name:     strings.TrimSpace(r.Name),
		Email:    NormalizeEmail(r.Email),
		Password: r.Password,
	}
}

func (r Registration) Validate() error {
	if r.Name == "" {
		return NewError(ErrCodeInvalid, "name is required")
	}
	if r.Email == "" {
		return NewError(ErrCodeInvalid, "email is required")
	}
	if addr, err := mail.ParseAddress(r.Email); err != nil || addr.Address != r.Email {
		return NewError(ErrCodeInvalid, "email is invalid")
	}
	if len(r.Password) < MinPasswordLength {
		return NewError(ErrCodeInvalid, "password must be at least 8 characters")
	}
	if len(r.Password) > MaxPasswordLength {
		return NewError(ErrCodeInvalid, "password must be at most 72 bytes")
	}
	return nil
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
