package domain

import (
	"errors"
	"time"
)

// User is an account holder. PasswordHash is a bcrypt hash of Salt+password.
type User struct {
	ID                string
	Username          string
	Email             string
	Salt              string
	PasswordHash      string
	IsVerified        bool
	VerifiedAt        *time.Time
	VerificationToken string // SHA-256 of the pending verification token; empty when none
	CreatedAt         time.Time
	UpdatedAt         time.Time
	DeletedAt         *time.Time
}

// IsDeleted reports whether the user has been soft-deleted.
func (u *User) IsDeleted() bool {
	return u.DeletedAt != nil
}

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if u.Username == "" {
		return errors.New("username is required")
	}
	if u.Email == "" {
		return errors.New("email is required")
	}
	if u.PasswordHash == "" {
		return errors.New("password hash is required")
	}
	return nil
}
