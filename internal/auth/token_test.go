// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package auth_test

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatekeep/gatekeep/internal/auth"
	"github.com/gatekeep/gatekeep/pkg/errutil"
)

var (
	signingKeyOnce sync.Once
	signingKey     *rsa.PrivateKey
	signingKeyErr  error
)

func testSigningKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	signingKeyOnce.Do(func() {
		signingKey, signingKeyErr = auth.GenerateSigningKey()
	})
	require.NoError(t, signingKeyErr)
	return signingKey
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func sampleClaims() auth.Claims {
	return auth.Claims{
		UID:       "01HZZZZZZZZZZZZZZZZZZZZZZZ",
		Name:      "Alice",
		Email:     "alice@example.com",
		IPAddress: "203.0.113.9",
		UserAgent: "Mozilla/5.0",
	}
}

func TestNewTokenIssuer_RequiresKey(t *testing.T) {
	issuer, err := auth.NewTokenIssuer(nil)
	require.Error(t, err)
	assert.Nil(t, issuer)
	assert.ErrorIs(t, err, auth.ErrSigning)
	errutil.AssertErrorCode(t, err, "TOKEN_KEY_MISSING")
}

func TestTokenIssuer_IssueAndVerify(t *testing.T) {
	issuedAt := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	issuer, err := auth.NewTokenIssuer(testSigningKey(t), auth.WithClock(fixedClock(issuedAt)))
	require.NoError(t, err)

	token, err := issuer.Issue(sampleClaims())
	require.NoError(t, err)

	claims, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "01HZZZZZZZZZZZZZZZZZZZZZZZ", claims.UID)
	assert.Equal(t, claims.UID, claims.Subject)
	assert.Equal(t, "Alice", claims.Name)
	assert.Equal(t, "alice@example.com", claims.Email)
	assert.Equal(t, "203.0.113.9", claims.IPAddress)
	assert.Equal(t, "Mozilla/5.0", claims.UserAgent)
	require.NotNil(t, claims.IssuedAt)
	require.NotNil(t, claims.ExpiresAt)
	assert.True(t, claims.IssuedAt.Time.Equal(issuedAt))
	assert.Equal(t, auth.SessionTokenExpiry, claims.ExpiresAt.Sub(claims.IssuedAt.Time))
}

func TestTokenIssuer_Header(t *testing.T) {
	issuer, err := auth.NewTokenIssuer(testSigningKey(t))
	require.NoError(t, err)

	token, err := issuer.Issue(sampleClaims())
	require.NoError(t, err)

	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	require.NoError(t, err)
	assert.Equal(t, "RS256", parsed.Header["alg"])
	assert.Equal(t, "JWT", parsed.Header["typ"])
}

func TestTokenIssuer_VerifyRejects(t *testing.T) {
	issuedAt := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	key := testSigningKey(t)

	issuer, err := auth.NewTokenIssuer(key, auth.WithClock(fixedClock(issuedAt)))
	require.NoError(t, err)
	token, err := issuer.Issue(sampleClaims())
	require.NoError(t, err)

	t.Run("expired token", func(t *testing.T) {
		later, err := auth.NewTokenIssuer(key, auth.WithClock(fixedClock(issuedAt.Add(13*time.Hour))))
		require.NoError(t, err)

		_, err = later.Verify(token)
		require.Error(t, err)
		assert.ErrorIs(t, err, jwt.ErrTokenExpired)
		errutil.AssertErrorCode(t, err, "TOKEN_INVALID")
	})

	t.Run("token from another key", func(t *testing.T) {
		otherKey, err := auth.GenerateSigningKey()
		require.NoError(t, err)
		other, err := auth.NewTokenIssuer(otherKey, auth.WithClock(fixedClock(issuedAt)))
		require.NoError(t, err)

		_, err = other.Verify(token)
		require.Error(t, err)
		assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
	})

	t.Run("symmetric algorithm", func(t *testing.T) {
		forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"uid": "x",
			"exp": issuedAt.Add(time.Hour).Unix(),
		}).SignedString([]byte("secret"))
		require.NoError(t, err)

		_, err = issuer.Verify(forged)
		require.Error(t, err)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := issuer.Verify("not-a-token")
		require.Error(t, err)
	})
}

func TestDecodeUnverified(t *testing.T) {
	issuedAt := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	issuer, err := auth.NewTokenIssuer(testSigningKey(t), auth.WithClock(fixedClock(issuedAt)))
	require.NoError(t, err)

	token, err := issuer.Issue(sampleClaims())
	require.NoError(t, err)

	claims, err := auth.DecodeUnverified(token)
	require.NoError(t, err)
	assert.Equal(t, "01HZZZZZZZZZZZZZZZZZZZZZZZ", claims["uid"])
	assert.Equal(t, "203.0.113.9", claims["ip_address"])
	assert.Equal(t, "Mozilla/5.0", claims["user_agent"])
	assert.InDelta(t, float64(issuedAt.Unix()), claims["iat"], 0)
	assert.InDelta(t, float64(issuedAt.Add(12*time.Hour).Unix()), claims["exp"], 0)

	_, err = auth.DecodeUnverified("a.b")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "TOKEN_DECODE_FAILED")
}

func TestLoadSigningKey(t *testing.T) {
	key := testSigningKey(t)
	dir := t.TempDir()

	t.Run("PKCS#1", func(t *testing.T) {
		path := filepath.Join(dir, "pkcs1.key")
		require.NoError(t, os.WriteFile(path, auth.EncodeSigningKey(key), 0o600))

		loaded, err := auth.LoadSigningKey(path)
		require.NoError(t, err)
		assert.True(t, key.Equal(loaded))
	})

	t.Run("PKCS#8", func(t *testing.T) {
		der, err := x509.MarshalPKCS8PrivateKey(key)
		require.NoError(t, err)
		path := filepath.Join(dir, "pkcs8.key")
		require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), 0o600))

		loaded, err := auth.LoadSigningKey(path)
		require.NoError(t, err)
		assert.True(t, key.Equal(loaded))
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := auth.LoadSigningKey(filepath.Join(dir, "absent.key"))
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrSigning)
		errutil.AssertErrorCode(t, err, "TOKEN_KEY_LOAD_FAILED")
		errutil.AssertErrorContext(t, err, "path", filepath.Join(dir, "absent.key"))
	})

	t.Run("not a key", func(t *testing.T) {
		path := filepath.Join(dir, "garbage.key")
		require.NoError(t, os.WriteFile(path, []byte("hello"), 0o600))

		_, err := auth.LoadSigningKey(path)
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrSigning)
	})
}
