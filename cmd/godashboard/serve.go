/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"godashboard/internal/config"
	"godashboard/internal/crash"
)

// errNoSecret is returned when no signing secret is configured.
var errNoSecret = errors.New("no signing secret: set " + config.EnvAuthSecret + " or run `godashboard secret`")

func newServeCmd(c *cli) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			defer crash.Recover(c.cfg.Server.CrashDir)
			if c.secret == "" {
				return errNoSecret
			}
			if addr != "" {
				c.cfg.Server.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := openApp(ctx, c.cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			svc, err := a.buildServices(c.secret)
			if err != nil {
				return err
			}
			srv := a.newServer(svc)
			defer srv.Close()

			cfg := c.cfg.Server
			return srv.ListenAndServe(ctx, cfg.Addr,
				config.Duration(cfg.ReadTimeoutMs, 10*time.Second),
				config.Duration(cfg.WriteTimeoutMs, 15*time.Second))
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}
