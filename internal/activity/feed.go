/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package activity

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"godashboard/internal/domain"
)

var typeIcons = map[string]string{
	"create":   "article",
	"edit":     "edit",
	"delete":   "trash",
	"move":     "move",
	"undo":     "undo",
	"rollback": "reload",
	"upload":   "upload",
	"comment":  "chat",
}

// Icon maps an edit type to its icon name; unknown types use "edit".
func Icon(editType string) string {
	if icon, ok := typeIcons[editType]; ok {
		return icon
	}
	return "edit"
}

// RelativeTime renders ts relative to now: "just now", "N minutes ago", "N hours ago", "N days ago".
func RelativeTime(now, ts time.Time) string {
	d := now.Sub(ts)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return plural(int(d/time.Minute), "minute")
	case d < 24*time.Hour:
		return plural(int(d/time.Hour), "hour")
	default:
		return plural(int(d/(24*time.Hour)), "day")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}

// PageURL is the article path for a title.
func PageURL(title string) string {
	return "/wiki/" + url.PathEscape(strings.ReplaceAll(title, " ", "_"))
}

// Entry is one line of the rendered activity feed.
type Entry struct {
	domain.RecentEdit
	Icon     string `json:"icon"`
	Relative string `json:"relative"`
	URL      string `json:"url"`
}

// Feed loads the newest edits of userID and decorates them for display.
func Feed(ctx context.Context, src Source, userID string, limit int, now time.Time) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	edits, err := src.RecentEdits(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(edits))
	for _, e := range edits {
		out = append(out, Entry{RecentEdit: e, Icon: Icon(e.Type), Relative: RelativeTime(now, e.Timestamp), URL: PageURL(e.Title)})
	}
	return out, nil
}
