// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

// Package auth provides credential verification and session token issuance.
//
// # Domain Types
//
// A User is a stored credential record. New records are built with NewUser,
// which validates required fields; the repository assigns the ID on Create.
//
// # Services
//
// Service coordinates the two pipelines:
//   - SignIn - presence check, lookup, password verification, activation
//     check, token issuance, audit
//   - SignUp - presence and identity format checks, uniqueness, hashing,
//     insert
//
// Services are created with NewService constructors that validate
// dependencies.
//
// # Errors
//
// Failures are samber/oops errors. Classify them with errors.Is against
// ErrValidation, ErrInvalidCredentials, ErrAccountInactive,
// ErrDuplicateIdentity and ErrSigning; anything else is internal. The
// user-facing message is available through oops.GetPublic.
package auth
