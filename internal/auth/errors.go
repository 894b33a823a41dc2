// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package auth

import (
	"errors"

	"github.com/samber/oops"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// Error kinds surfaced by the sign-in and sign-up pipelines. Callers classify
// failures with errors.Is; anything that matches none of these is an internal
// failure.
var (
	ErrValidation         = errors.New("validation failed")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountInactive    = errors.New("account inactive")
	ErrDuplicateIdentity  = errors.New("identity already exists")
	ErrSigning            = errors.New("token signing failed")
)

// User-facing messages attached to errors with oops.Public.
const (
	MsgRequiredValueEmpty    = "Required value is empty!"
	MsgWrongCredentials      = "Wrong ID or password!"
	MsgAccountInactive       = "This account is not activated yet!"
	MsgInvalidIdentityFormat = "ID must be combination of alphabet and number, or email form!"
	MsgIdentityExists        = "ID already exists!"
	MsgPasswordTooLong       = "Password is too long!"
)

func validationError(public string, err error) error {
	return oops.Code("AUTH_VALIDATION_FAILED").
		Public(public).
		Wrap(errors.Join(ErrValidation, err))
}

func invalidCredentialsError() error {
	return oops.Code("AUTH_INVALID_CREDENTIALS").
		Public(MsgWrongCredentials).
		Wrap(ErrInvalidCredentials)
}

func duplicateIdentityError(email string) error {
	return oops.Code("AUTH_DUPLICATE_IDENTITY").
		Public(MsgIdentityExists).
		With("email", email).
		Wrap(ErrDuplicateIdentity)
}

func storeError(operation string, err error) error {
	return oops.Code("AUTH_STORE_FAILED").
		With("operation", operation).
		Wrap(err)
}
