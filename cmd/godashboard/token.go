/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"godashboard/internal/auth"
	"godashboard/internal/config"
)

func newTokenCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "token <user>",
		Short: "Issue a bearer token for a configured user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.secret == "" {
				return errNoSecret
			}
			dir, err := auth.NewDirectory(c.cfg.Users, c.cfg.Groups)
			if err != nil {
				return err
			}
			acc, ok := dir.Lookup(args[0])
			if !ok {
				return fmt.Errorf("unknown user %q", args[0])
			}
			tok, exp, err := newTokens(c.cfg, c.secret).Issue(acc.ID(), acc.Name())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", exp.Format(time.RFC3339))
			return nil
		},
	}
}

func newSecretCmd() *cobra.Command {
	var remove bool
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Generate the token signing secret and store it in the OS keyring",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if remove {
				if err := config.DeleteSecret(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "signing secret removed")
				return nil
			}
			buf := make([]byte, 32)
			if _, err := rand.Read(buf); err != nil {
				return err
			}
			if err := config.StoreSecret(hex.EncodeToString(buf)); err != nil {
				return fmt.Errorf("store secret: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "signing secret stored in the OS keyring; existing tokens are now invalid")
			return nil
		},
	}
	cmd.Flags().BoolVar(&remove, "delete", false, "remove the stored secret")
	return cmd
}
