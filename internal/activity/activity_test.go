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
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"godashboard/internal/domain"
	"godashboard/internal/storage"
)

type recordingSource interface {
	Source
	Recorder
}

func sourceContract(t *testing.T, s recordingSource) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	_, err := s.Record(ctx, domain.RecentEdit{UserID: "alice"})
	require.Error(t, err, "title is required")

	for i, typ := range []string{"create", "edit", "", "rollback"} {
		e, err := s.Record(ctx, domain.RecentEdit{
			UserID:    "alice",
			Title:     "Page " + string(rune('A'+i)),
			Type:      typ,
			Timestamp: base.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
		require.NotZero(t, e.ID)
	}
	_, err = s.Record(ctx, domain.RecentEdit{UserID: "bob", Title: "Other", Timestamp: base})
	require.NoError(t, err)

	edits, err := s.RecentEdits(ctx, "alice", 3)
	require.NoError(t, err)
	require.Len(t, edits, 3)
	require.Equal(t, "Page D", edits[0].Title, "newest first")
	require.Equal(t, "rollback", edits[0].Type)
	require.Equal(t, "edit", edits[1].Type, "empty type defaults to edit")
	require.True(t, edits[0].Timestamp.Equal(base.Add(3*time.Hour)))

	n, err := s.CountSince(ctx, "alice", base.Add(2*time.Hour))
	require.NoError(t, err)
	require.Equal(t, 2, n)

	none, err := s.RecentEdits(ctx, "nobody", 5)
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestMemorySource(t *testing.T) { sourceContract(t, NewMemory()) }

func TestSQLiteSource(t *testing.T) {
	ctx := context.Background()
	db, err := storage.Open(ctx, storage.DialectSQLite, storage.SQLitePath(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate(ctx))
	sourceContract(t, NewSQL(db))
}

func TestRelativeTime(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		ago  time.Duration
		want string
	}{
		{10 * time.Second, "just now"},
		{time.Minute, "1 minute ago"},
		{59 * time.Minute, "59 minutes ago"},
		{time.Hour, "1 hour ago"},
		{23 * time.Hour, "23 hours ago"},
		{24 * time.Hour, "1 day ago"},
		{72 * time.Hour, "3 days ago"},
	}
	for _, c := range cases {
		require.Equal(t, c.want, RelativeTime(now, now.Add(-c.ago)), "ago=%s", c.ago)
	}
}

func TestIcon(t *testing.T) {
	require.Equal(t, "article", Icon("create"))
	require.Equal(t, "reload", Icon("rollback"))
	require.Equal(t, "chat", Icon("comment"))
	require.Equal(t, "edit", Icon("something-new"))
}

func TestFeed(t *testing.T) {
	ctx := context.Background()
	src := NewMemory()
	now := time.Now()
	_, err := src.Record(ctx, domain.RecentEdit{UserID: "alice", Title: "Main Page", Type: "create", Timestamp: now.Add(-2 * time.Hour)})
	require.NoError(t, err)

	feed, err := Feed(ctx, src, "alice", 0, now)
	require.NoError(t, err)
	require.Len(t, feed, 1)
	require.Equal(t, "article", feed[0].Icon)
	require.Equal(t, "2 hours ago", feed[0].Relative)
	require.Equal(t, "/wiki/Main_Page", feed[0].URL)
}
