// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/oops"
)

// SessionTokenExpiry is the lifetime of an issued session token.
const SessionTokenExpiry = 12 * time.Hour

// SigningKeyBits is the RSA modulus size used by GenerateSigningKey.
const SigningKeyBits = 2048

// Claims are the identity and provenance assertions carried by a session token.
type Claims struct {
	UID       string `json:"uid"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
	jwt.RegisteredClaims
}

// TokenSigner issues signed session tokens.
type TokenSigner interface {
	Issue(claims Claims) (string, error)
}

// TokenIssuer signs and verifies RS256 session tokens with a fixed key.
type TokenIssuer struct {
	key    *rsa.PrivateKey
	now    func() time.Time
	expiry time.Duration
}

// IssuerOption configures a TokenIssuer.
type IssuerOption func(*TokenIssuer)

// WithClock overrides the issuer's time source.
func WithClock(now func() time.Time) IssuerOption {
	return func(i *TokenIssuer) {
		i.now = now
	}
}

// NewTokenIssuer creates a TokenIssuer that signs with key.
func NewTokenIssuer(key *rsa.PrivateKey, opts ...IssuerOption) (*TokenIssuer, error) {
	if key == nil {
		return nil, oops.Code("TOKEN_KEY_MISSING").Wrapf(ErrSigning, "signing key is required")
	}
	i := &TokenIssuer{
		key:    key,
		now:    time.Now,
		expiry: SessionTokenExpiry,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// Issue signs claims, stamping iat, exp and sub. Any registered claims set
// by the caller are replaced.
func (i *TokenIssuer) Issue(claims Claims) (string, error) {
	now := i.now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   claims.UID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(i.expiry)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(i.key)
	if err != nil {
		return "", oops.Code("TOKEN_SIGN_FAILED").
			With("uid", claims.UID).
			Wrap(joinSigning(err))
	}
	return signed, nil
}

// Verify parses token, checks its RS256 signature against the issuer's
// public key and validates its time-based claims.
func (i *TokenIssuer) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) {
			return &i.key.PublicKey, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, oops.Code("TOKEN_INVALID").Wrap(err)
	}
	return claims, nil
}

// DecodeUnverified returns the claims of token without checking its
// signature. It must only be used on tokens this process just issued.
func DecodeUnverified(token string) (map[string]any, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, oops.Code("TOKEN_DECODE_FAILED").Wrap(err)
	}
	return claims, nil
}

// LoadSigningKey reads a PEM encoded RSA private key (PKCS#1 or PKCS#8).
func LoadSigningKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from operator configuration
	if err != nil {
		return nil, oops.Code("TOKEN_KEY_LOAD_FAILED").
			With("path", path).
			Wrap(joinSigning(err))
	}

	key, err := jwt.ParseRSAPrivateKeyFromPEM(data)
	if err != nil {
		return nil, oops.Code("TOKEN_KEY_LOAD_FAILED").
			With("path", path).
			Wrap(joinSigning(err))
	}
	return key, nil
}

// GenerateSigningKey creates a new RSA signing key.
func GenerateSigningKey() (*rsa.PrivateKey, error) {
	key, err := rsa.GenerateKey(rand.Reader, SigningKeyBits)
	if err != nil {
		return nil, oops.Code("TOKEN_KEY_GENERATE_FAILED").Wrap(joinSigning(err))
	}
	return key, nil
}

// EncodeSigningKey encodes key as a PKCS#1 PEM block.
func EncodeSigningKey(key *rsa.PrivateKey) []byte {
	return pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
}

func joinSigning(err error) error {
	return fmt.Errorf("%w: %w", ErrSigning, err)
}
