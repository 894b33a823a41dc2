// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package auth

import (
	"context"
	"errors"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Identity format rules. An identity is accepted when it matches either one.
var (
	alphanumericIdentityRegex = regexp.MustCompile(`^[A-Za-z0-9+]*$`)
	emailIdentityRegex        = regexp.MustCompile(`^(([^<>()\[\]\\.,;:\s@"]+(\.[^<>()\[\]\\.,;:\s@"]+)*)|(".+"))@((\[[0-9]{1,3}\.[0-9]{1,3}\.[0-9]{1,3}\.[0-9]{1,3}])|(([a-zA-Z\-0-9]+\.)+[a-zA-Z]{2,}))$`)
)

var errIdentityFormat = errors.New("identity must be alphanumeric or an email address")

// User is a stored credential record.
type User struct {
	ID           ulid.ULID
	Name         string
	Email        string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewUser creates an inactive User ready to be persisted. The ID is left
// zero; the repository assigns it on Create.
func NewUser(name, email, passwordHash string) (*User, error) {
	if name == "" {
		return nil, oops.Code("USER_INVALID_NAME").Errorf("name cannot be empty")
	}
	if email == "" {
		return nil, oops.Code("USER_INVALID_EMAIL").Errorf("email cannot be empty")
	}
	if passwordHash == "" {
		return nil, oops.Code("USER_INVALID_PASSWORD_HASH").Errorf("password hash cannot be empty")
	}

	now := time.Now()
	return &User{
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// ValidateIdentity reports whether email is an acceptable identity: either a
// run of letters, digits and '+' or an email address.
func ValidateIdentity(email string) error {
	return validation.Validate(email, validation.By(func(value interface{}) error {
		s, _ := value.(string)
		if alphanumericIdentityRegex.MatchString(s) || emailIdentityRegex.MatchString(s) {
			return nil
		}
		return errIdentityFormat
	}))
}

// UserRepository manages credential record persistence.
type UserRepository interface {
	// GetByEmail returns the record whose email matches exactly, or an error
	// wrapping ErrNotFound.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// Create assigns user a new ID and inserts it. A record with the same
	// email yields an error wrapping ErrDuplicateIdentity.
	Create(ctx context.Context, user *User) error
}
