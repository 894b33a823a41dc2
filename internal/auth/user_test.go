// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package auth_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatekeep/gatekeep/internal/auth"
	"github.com/gatekeep/gatekeep/pkg/errutil"
)

func TestNewUser(t *testing.T) {
	t.Run("creates inactive user with timestamps", func(t *testing.T) {
		user, err := auth.NewUser("Alice", "alice@example.com", "$2a$10$hash")
		require.NoError(t, err)
		assert.True(t, user.ID.IsZero())
		assert.Equal(t, "Alice", user.Name)
		assert.Equal(t, "alice@example.com", user.Email)
		assert.Equal(t, "$2a$10$hash", user.PasswordHash)
		assert.False(t, user.IsActive)
		assert.False(t, user.CreatedAt.IsZero())
		assert.Equal(t, user.CreatedAt, user.UpdatedAt)
	})

	tests := []struct {
		name     string
		userName string
		email    string
		hash     string
		code     string
	}{
		{"empty name", "", "a@example.com", "h", "USER_INVALID_NAME"},
		{"empty email", "A", "", "h", "USER_INVALID_EMAIL"},
		{"empty hash", "A", "a@example.com", "", "USER_INVALID_PASSWORD_HASH"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := auth.NewUser(tt.userName, tt.email, tt.hash)
			require.Error(t, err)
			assert.Nil(t, user)
			errutil.AssertErrorCode(t, err, tt.code)
		})
	}
}

func TestValidateIdentity(t *testing.T) {
	valid := []string{
		"alice",
		"Alice123",
		"a+b",
		"alice@example.com",
		"first.last@sub.example.org",
		`"quoted name"@example.com`,
		"user@[192.168.0.1]",
		"+++",
	}
	for _, identity := range valid {
		t.Run("accepts "+identity, func(t *testing.T) {
			assert.NoError(t, auth.ValidateIdentity(identity))
		})
	}

	invalid := []string{
		"alice smith",
		"alice@",
		"@example.com",
		"alice@example",
		"alice@example.c",
		"a..b@example.com",
		"alice!",
		"user_name",
	}
	for _, identity := range invalid {
		t.Run("rejects "+identity, func(t *testing.T) {
			assert.Error(t, auth.ValidateIdentity(identity))
		})
	}
}
