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
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"godashboard/internal/activity"
	"godashboard/internal/domain"
)

func newRecordEditCmd(c *cli) *cobra.Command {
	var (
		editType string
		summary  string
	)
	cmd := &cobra.Command{
		Use:   "record-edit <user> <title>",
		Short: "Append an edit to a user's activity history",
		Long: `Append an edit to the activity source so that it appears in the
recent-activity widget. Needs a persistent (sqlite or postgres) activity source.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), c.cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			if _, mem := a.recorder.(*activity.Memory); mem || a.recorder == nil {
				return errors.New("record-edit needs a sqlite or postgres activity source")
			}
			e, err := a.recorder.Record(cmd.Context(), domain.RecentEdit{
				UserID:    args[0],
				Title:     args[1],
				Type:      editType,
				Summary:   summary,
				Timestamp: time.Now().UTC(),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "recorded edit %d\n", e.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&editType, "type", "edit", "edit type (create, edit, undo, rollback, delete, move, upload, comment)")
	cmd.Flags().StringVar(&summary, "summary", "", "edit summary")
	return cmd
}
