// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// SignInRequest carries the credentials and provenance of a sign-in attempt.
type SignInRequest struct {
	Email     string
	Password  string
	IPAddress string
	UserAgent string
}

// Validate checks that both credentials are present. Whitespace counts as
// present.
func (r SignInRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

// SignInResult is returned by a successful sign-in.
type SignInResult struct {
	Token  string
	UserID ulid.ULID
}

// SignUpRequest carries the fields of a new credential record.
type SignUpRequest struct {
	Name     string
	Email    string
	Password string
}

// Validate checks that all fields are present.
func (r SignUpRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required),
		validation.Field(&r.Email, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

// LoginRecord describes a successful sign-in for the audit trail.
type LoginRecord struct {
	Time      time.Time
	Token     string
	IPAddress string
}

// LoginAuditor receives a record of every successful sign-in.
// RecordLogin must not block and must not fail the sign-in.
type LoginAuditor interface {
	RecordLogin(rec LoginRecord)
}

type discardAuditor struct{}

func (discardAuditor) RecordLogin(LoginRecord) {}

// Service provides the sign-in and sign-up pipelines.
type Service struct {
	users  UserRepository
	hasher PasswordHasher
	tokens TokenSigner
	audit  LoginAuditor
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a new Service using slog.Default for logging.
// A nil auditor discards login records.
func NewService(users UserRepository, hasher PasswordHasher, tokens TokenSigner, auditor LoginAuditor) (*Service, error) {
	return NewServiceWithLogger(users, hasher, tokens, auditor, slog.Default())
}

// NewServiceWithLogger creates a new Service with an explicit logger.
func NewServiceWithLogger(
	users UserRepository,
	hasher PasswordHasher,
	tokens TokenSigner,
	auditor LoginAuditor,
	logger *slog.Logger,
) (*Service, error) {
	if users == nil {
		return nil, oops.Code("AUTH_INVALID_SERVICE").Errorf("users repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_SERVICE").Errorf("password hasher is required")
	}
	if tokens == nil {
		return nil, oops.Code("AUTH_INVALID_SERVICE").Errorf("token signer is required")
	}
	if logger == nil {
		return nil, oops.Code("AUTH_INVALID_SERVICE").Errorf("logger is required")
	}
	if auditor == nil {
		auditor = discardAuditor{}
	}
	return &Service{
		users:  users,
		hasher: hasher,
		tokens: tokens,
		audit:  auditor,
		logger: logger,
		now:    time.Now,
	}, nil
}

// dummyPasswordHash is used when a user doesn't exist to prevent timing attacks.
// It is a well-formed cost-10 bcrypt hash with no known preimage.
//
//nolint:gosec // G101: This is an intentionally fake hash for timing attack prevention, not a credential.
const dummyPasswordHash = "$2a$10$AAAAAAAAAAAAAAAAAAAAAOAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// SignIn authenticates a user by email and password and issues a session
// token. Unknown emails and wrong passwords produce the same error, and both
// run a full bcrypt comparison.
func (s *Service) SignIn(ctx context.Context, req SignInRequest) (*SignInResult, error) {
	if err := req.Validate(); err != nil {
		return nil, validationError(MsgRequiredValueEmpty, err)
	}

	user, lookupErr := s.users.GetByEmail(ctx, req.Email)

	var targetHash string
	var userExists bool

	if lookupErr != nil {
		if !errors.Is(lookupErr, ErrNotFound) {
			return nil, storeError("get user by email", lookupErr)
		}
		targetHash = dummyPasswordHash
	} else {
		targetHash = user.PasswordHash
		userExists = true
	}

	valid, verifyErr := s.hasher.Verify(req.Password, targetHash)
	if verifyErr != nil {
		if !userExists {
			return nil, invalidCredentialsError()
		}
		return nil, oops.Code("AUTH_SIGNIN_FAILED").
			With("operation", "verify password").
			With("user_id", user.ID.String()).
			Wrap(verifyErr)
	}

	if !userExists || !valid {
		return nil, invalidCredentialsError()
	}

	// Check activation AFTER password verification.
	if !user.IsActive {
		return nil, oops.Code("AUTH_ACCOUNT_INACTIVE").
			Public(MsgAccountInactive).
			With("user_id", user.ID.String()).
			Wrap(ErrAccountInactive)
	}

	token, err := s.tokens.Issue(Claims{
		UID:       user.ID.String(),
		Name:      user.Name,
		Email:     user.Email,
		IPAddress: req.IPAddress,
		UserAgent: req.UserAgent,
	})
	if err != nil {
		return nil, oops.Code("AUTH_SIGNIN_FAILED").
			With("operation", "issue token").
			With("user_id", user.ID.String()).
			Wrap(err)
	}

	s.audit.RecordLogin(LoginRecord{
		Time:      s.now(),
		Token:     token,
		IPAddress: req.IPAddress,
	})

	s.logger.InfoContext(ctx, "user signed in",
		"user_id", user.ID.String(),
		"ip_address", req.IPAddress,
	)

	return &SignInResult{Token: token, UserID: user.ID}, nil
}

// SignUp registers a new, inactive credential record.
func (s *Service) SignUp(ctx context.Context, req SignUpRequest) error {
	if err := req.Validate(); err != nil {
		return validationError(MsgRequiredValueEmpty, err)
	}
	if err := ValidateIdentity(req.Email); err != nil {
		return validationError(MsgInvalidIdentityFormat, err)
	}

	_, err := s.users.GetByEmail(ctx, req.Email)
	switch {
	case err == nil:
		return duplicateIdentityError(req.Email)
	case !errors.Is(err, ErrNotFound):
		return storeError("get user by email", err)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		if errors.Is(err, ErrPasswordTooLong) {
			return validationError(MsgPasswordTooLong, err)
		}
		return oops.Code("AUTH_SIGNUP_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	user, err := NewUser(req.Name, req.Email, hash)
	if err != nil {
		return oops.Code("AUTH_SIGNUP_FAILED").
			With("operation", "create user").
			Wrap(err)
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicateIdentity) {
			return oops.Code("AUTH_DUPLICATE_IDENTITY").
				Public(MsgIdentityExists).
				With("email", req.Email).
				Wrap(err)
		}
		return storeError("create user", err)
	}

	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID.String())
	return nil
}
