// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package main

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/gatekeep/gatekeep/internal/auth"
	"github.com/gatekeep/gatekeep/internal/xdg"
)

type keygenConfig struct {
	out   string
	force bool
}

// NewKeygenCmd creates the keygen subcommand.
func NewKeygenCmd() *cobra.Command {
	kc := &keygenConfig{}

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an RSA signing key",
		Long: `Generate a 2048-bit RSA private key in PKCS#1 PEM form for signing
session tokens. The file is written with mode 0600.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := kc.out
			if out == "" {
				cfg, err := loadConfig(cmd)
				if err != nil {
					return err
				}
				out = cfg.Token.Key
			}
			return runKeygen(cmd, out, kc.force)
		},
	}

	cmd.Flags().StringVar(&kc.out, "out", "", "output path (default: token.key)")
	cmd.Flags().BoolVar(&kc.force, "force", false, "overwrite an existing key")

	return cmd
}

func runKeygen(cmd *cobra.Command, out string, force bool) error {
	key, err := auth.GenerateSigningKey()
	if err != nil {
		return err //nolint:wrapcheck // auth errors carry their own codes
	}

	if dir := filepath.Dir(out); dir != "." {
		if err := xdg.EnsureDir(dir); err != nil {
			return oops.Code("KEYGEN_WRITE_FAILED").With("path", out).Wrap(err)
		}
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if force {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	f, err := os.OpenFile(out, flags, 0o600) //nolint:gosec // G304: path comes from the operator
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return oops.Code("KEYGEN_KEY_EXISTS").
				With("path", out).
				Errorf("%s already exists (use --force to overwrite)", out)
		}
		return oops.Code("KEYGEN_WRITE_FAILED").With("path", out).Wrap(err)
	}

	if _, err := f.Write(auth.EncodeSigningKey(key)); err != nil {
		_ = f.Close() //nolint:errcheck // write error takes precedence
		return oops.Code("KEYGEN_WRITE_FAILED").With("path", out).Wrap(err)
	}
	if err := f.Close(); err != nil {
		return oops.Code("KEYGEN_WRITE_FAILED").With("path", out).Wrap(err)
	}
	if force {
		if err := os.Chmod(out, 0o600); err != nil {
			return oops.Code("KEYGEN_WRITE_FAILED").With("path", out).Wrap(err)
		}
	}

	cmd.Printf("Wrote signing key to %s\n", out)
	return nil
}
