/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"godashboard/internal/auth"
	"godashboard/internal/client"
)

func newWidgetsCmd(c *cli) *cobra.Command {
	var (
		serverURL string
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "widgets <user>",
		Short: "List the widgets a user can see, as reported by a running server",
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
			tok, _, err := newTokens(c.cfg, c.secret).Issue(acc.ID(), acc.Name())
			if err != nil {
				return err
			}
			if serverURL == "" {
				serverURL = localURL(c.cfg.Server.Addr)
			}
			widgets, err := client.NewClient(serverURL, tok).Widgets(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(widgets)
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tREGION\tHIDEABLE\tTITLE")
			for _, w := range widgets {
				fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", w.ID, w.Region, w.Hideable, w.Title)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", "", "base URL of the server (default derived from server.addr)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

// localURL turns a listen address such as ":8080" into a base URL.
func localURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr
}
