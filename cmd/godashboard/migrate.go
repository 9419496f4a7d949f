/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	applog "godashboard/internal/log"
	"godashboard/internal/storage"
)

func newMigrateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations for the SQL stores",
		Long: `Apply the embedded schema migrations to the sqlite or postgres database
used by the preference store and the activity source. Other drivers need no
migration.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			targets := map[string]string{}
			if d := strings.ToLower(c.cfg.Store.Driver); d == storage.DialectSQLite || d == storage.DialectPostgres {
				targets[d] = c.cfg.Store.DSN
			}
			if d := strings.ToLower(c.cfg.Activity.Driver); d == storage.DialectSQLite || d == storage.DialectPostgres {
				if _, ok := targets[d]; !ok || c.cfg.Activity.DSN != c.cfg.Store.DSN {
					targets["activity "+d] = c.cfg.Activity.DSN
				}
			}
			if len(targets) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "nothing to migrate")
				return nil
			}
			a := &app{cfg: c.cfg, log: applog.WithComponent("app")}
			defer a.Close()
			for name, dsn := range targets {
				dialect := strings.TrimPrefix(name, "activity ")
				db, err := a.openDB(cmd.Context(), dialect, dsn)
				if err != nil {
					return fmt.Errorf("%s: %w", name, err)
				}
				v, dirty, err := db.Version(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: schema version %d (dirty=%t)\n", name, v, dirty)
			}
			return nil
		},
	}
}
