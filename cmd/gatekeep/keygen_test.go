// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatekeep/gatekeep/internal/auth"
	"github.com/gatekeep/gatekeep/pkg/errutil"
)

func TestKeygen_WritesLoadableKey(t *testing.T) {
	isolateConfig(t)
	out := filepath.Join(t.TempDir(), "ssl", "server.key")

	output, err := execute(t, "keygen", "--out", out)
	require.NoError(t, err)
	assert.Contains(t, output, "Wrote signing key to "+out)

	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	key, err := auth.LoadSigningKey(out)
	require.NoError(t, err)
	assert.Equal(t, auth.SigningKeyBits, key.N.BitLen())
}

func TestKeygen_DefaultsToConfiguredKeyPath(t *testing.T) {
	isolateConfig(t)
	out := filepath.Join(t.TempDir(), "configured.key")

	_, err := execute(t, "keygen", "--token-key", out)
	require.NoError(t, err)

	_, err = auth.LoadSigningKey(out)
	require.NoError(t, err)
}

func TestKeygen_RefusesToOverwrite(t *testing.T) {
	isolateConfig(t)
	out := filepath.Join(t.TempDir(), "server.key")
	require.NoError(t, os.WriteFile(out, []byte("keep me"), 0o600))

	_, err := execute(t, "keygen", "--out", out)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "KEYGEN_KEY_EXISTS")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "keep me", string(data))
}

func TestKeygen_ForceOverwrites(t *testing.T) {
	isolateConfig(t)
	out := filepath.Join(t.TempDir(), "server.key")
	require.NoError(t, os.WriteFile(out, []byte("old"), 0o644))

	_, err := execute(t, "keygen", "--out", out, "--force")
	require.NoError(t, err)

	_, err = auth.LoadSigningKey(out)
	require.NoError(t, err)

	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}
