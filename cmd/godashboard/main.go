/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Command godashboard serves the per-user dashboard API and offers a few
// maintenance commands around it.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"godashboard/internal/config"
	"godashboard/internal/crash"
	applog "godashboard/internal/log"
	"godashboard/internal/telemetry"
)

// cli carries the loaded configuration from the root command to subcommands.
type cli struct {
	configPath string
	cfg        config.AppConfig
	secret     string
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "godashboard",
		Short: "Per-user customizable dashboard service",
		Long: `godashboard serves a per-user dashboard: a set of widgets arranged in a
main and a sidebar region, plus a permission filtered navigation menu.

Layouts, hidden widgets and collapsed menu sections are stored per user in
the configured preference store (memory, file, sqlite, postgres or redis).`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, secret, err := config.Load(c.configPath)
			if err != nil {
				return err
			}
			c.cfg, c.secret = cfg, secret
			applog.Init(applog.Options{
				Level:     cfg.Logging.Level,
				Format:    cfg.Logging.Format,
				AddSource: cfg.Logging.Source,
				File:      cfg.Logging.File,
				Writer:    cmd.ErrOrStderr(),
			})
			telemetry.SetDefault(telemetry.New(telemetry.Config{
				OptIn:     cfg.Telemetry.OptIn,
				EventsURL: cfg.Telemetry.EventsURL,
				CrashURL:  cfg.Telemetry.CrashURL,
				Timeout:   config.Duration(cfg.Telemetry.TimeoutMs, 1500*time.Millisecond),
			}))
			return nil
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default is the per-user config dir)")

	root.AddCommand(
		newServeCmd(c),
		newMigrateCmd(c),
		newTokenCmd(c),
		newSecretCmd(),
		newRecordEditCmd(c),
		newWidgetsCmd(c),
		newVersionCmd(),
	)
	return root
}

func main() {
	defer crash.Recover("")
	err := newRootCmd().ExecuteContext(context.Background())
	telemetry.Default().Close()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
