// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package main

import (
	"encoding/json"
	"fmt"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/gatekeep/gatekeep/internal/auth"
)

// NewTokenCmd creates the token command group.
func NewTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Session token utilities",
	}
	cmd.AddCommand(newTokenInspectCmd())
	return cmd
}

func newTokenInspectCmd() *cobra.Command {
	var unverified bool

	cmd := &cobra.Command{
		Use:   "inspect TOKEN",
		Short: "Verify a session token and print its claims",
		Long: `Verify TOKEN against the configured signing key and print its claims
as JSON. With --unverified the signature and expiry are not checked.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if unverified {
				return runTokenDecode(cmd, args[0])
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runTokenInspect(cmd, cfg.Token.Key, args[0])
		},
	}

	cmd.Flags().BoolVar(&unverified, "unverified", false, "decode without verifying the signature")

	return cmd
}

func runTokenInspect(cmd *cobra.Command, keyPath, token string) error {
	key, err := auth.LoadSigningKey(keyPath)
	if err != nil {
		return err //nolint:wrapcheck // auth errors carry their own codes
	}
	issuer, err := auth.NewTokenIssuer(key)
	if err != nil {
		return err //nolint:wrapcheck // auth errors carry their own codes
	}

	claims, err := issuer.Verify(token)
	if err != nil {
		return err //nolint:wrapcheck // auth errors carry their own codes
	}
	return printJSON(cmd, claims)
}

func runTokenDecode(cmd *cobra.Command, token string) error {
	claims, err := auth.DecodeUnverified(token)
	if err != nil {
		return err //nolint:wrapcheck // auth errors carry their own codes
	}
	return printJSON(cmd, claims)
}

func printJSON(cmd *cobra.Command, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return oops.Code("TOKEN_ENCODE_FAILED").Wrap(err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return err //nolint:wrapcheck // stdout write failure
}
