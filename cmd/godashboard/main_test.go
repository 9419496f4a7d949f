/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"godashboard/internal/auth"
	"godashboard/internal/client"
	"godashboard/internal/config"
	"godashboard/internal/dashboard"
	"godashboard/internal/domain"
	"godashboard/internal/version"
)

const testSecret = "cmd-test-secret"

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv(config.EnvAuthSecret, testSecret)
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func testConfig(t *testing.T) config.AppConfig {
	cfg := config.Defaults()
	cfg.Store = config.StoreConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "dash.sqlite")}
	cfg.Users = map[string]config.UserConfig{
		"alice": {RealName: "Alice", Registered: "2024-01-02"},
		"admin": {Groups: []string{"sysop"}},
	}
	return cfg
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "--config", writeConfig(t, "store:\n  driver: memory\n"), "version")
	require.NoError(t, err)
	require.Equal(t, version.String()+"\n", out)
}

func TestTokenCommand(t *testing.T) {
	path := writeConfig(t, "store:\n  driver: memory\nusers:\n  alice:\n    real_name: Alice\n")
	out, err := run(t, "--config", path, "token", "alice")
	require.NoError(t, err)

	claims, err := auth.NewTokens(testSecret, "godashboard", time.Hour).Verify(strings.TrimSpace(out))
	require.NoError(t, err)
	require.Equal(t, "alice", claims.Subject)
	require.Equal(t, "Alice", claims.Name)

	_, err = run(t, "--config", path, "token", "mallory")
	require.ErrorContains(t, err, "unknown user")
}

func TestOpenAppDrivers(t *testing.T) {
	ctx := context.Background()
	for _, driver := range []string{"memory", "file", "sqlite"} {
		t.Run(driver, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.Store.Driver = driver
			cfg.Store.Dir = t.TempDir()
			a, err := openApp(ctx, cfg)
			require.NoError(t, err)
			defer a.Close()

			require.NoError(t, a.prefs.Set(ctx, "alice", "k", "v"))
			v, ok, err := a.prefs.Get(ctx, "alice", "k")
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, "v", v)
			require.NotNil(t, a.activity)
			require.NotNil(t, a.recorder)
		})
	}

	cfg := testConfig(t)
	cfg.Store.Driver = "carrier-pigeon"
	_, err := openApp(ctx, cfg)
	require.ErrorContains(t, err, "unknown store driver")
}

func TestServeStackEndToEnd(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	ext := filepath.Join(t.TempDir(), "ext.yaml")
	require.NoError(t, os.WriteFile(ext, []byte(`
widgets:
  - id: announcements
    region: sidebar
    body: "Maintenance on Friday"
    visible_if: 'can("siteadmin")'
remove_sections: [site]
`), 0o600))
	cfg.Extensions = ext

	a, err := openApp(ctx, cfg)
	require.NoError(t, err)
	defer a.Close()
	require.NotNil(t, a.ready)
	require.NoError(t, a.ready(ctx))

	_, err = a.recorder.Record(ctx, domain.RecentEdit{UserID: "alice", Title: "Main Page", Type: "edit", Timestamp: time.Now().Add(-time.Hour)})
	require.NoError(t, err)

	svc, err := a.buildServices(testSecret)
	require.NoError(t, err)
	srv := a.newServer(svc)
	defer srv.Close()
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	issue := func(user string) *client.Client {
		tok, _, err := svc.tokens.Issue(user, user)
		require.NoError(t, err)
		c := client.NewClient(ts.URL, tok)
		_, err = c.FetchToken(ctx)
		require.NoError(t, err)
		return c
	}
	alice := issue("alice")
	d, err := alice.Dashboard(ctx, "")
	require.NoError(t, err)
	require.NotContains(t, d.Layout.Sidebar, "announcements")
	require.Contains(t, d.Layout.Main, dashboard.WidgetRecentActivity)
	require.Contains(t, string(d.Widgets[dashboard.WidgetRecentActivity]), "Main Page")

	_, err = alice.HideWidget(ctx, dashboard.WidgetNotifications)
	require.NoError(t, err)
	d, err = alice.Dashboard(ctx, "")
	require.NoError(t, err)
	require.NotContains(t, d.Layout.Sidebar, dashboard.WidgetNotifications)

	admin := issue("admin")
	d, err = admin.Dashboard(ctx, "")
	require.NoError(t, err)
	require.Contains(t, d.Layout.Sidebar, "announcements")
	menu, err := admin.Navigation(ctx, "", false)
	require.NoError(t, err)
	for _, s := range menu.Sections {
		require.NotEqual(t, "site", s.ID)
	}

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Contains(t, string(body), `godashboard_store_operations_total`)
}

func TestRecordEditCommand(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "dash.sqlite")
	path := writeConfig(t, "store:\n  driver: sqlite\n  dsn: "+dsn+"\n")

	out, err := run(t, "--config", path, "record-edit", "alice", "Help:Contents", "--type", "create")
	require.NoError(t, err)
	require.Contains(t, out, "recorded edit")

	cfg := config.Defaults()
	cfg.Store = config.StoreConfig{Driver: "sqlite", DSN: dsn}
	a, err := openApp(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()
	edits, err := a.activity.RecentEdits(context.Background(), "alice", 5)
	require.NoError(t, err)
	require.Len(t, edits, 1)
	require.Equal(t, "Help:Contents", edits[0].Title)
	require.Equal(t, "create", edits[0].Type)

	_, err = run(t, "--config", writeConfig(t, "store:\n  driver: memory\n"), "record-edit", "alice", "X")
	require.ErrorContains(t, err, "needs a sqlite or postgres")
}

func TestMigrateCommand(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "dash.sqlite")
	out, err := run(t, "--config", writeConfig(t, "store:\n  driver: sqlite\n  dsn: "+dsn+"\n"), "migrate")
	require.NoError(t, err)
	require.Contains(t, out, "sqlite: schema version")

	out, err = run(t, "--config", writeConfig(t, "store:\n  driver: memory\n"), "migrate")
	require.NoError(t, err)
	require.Equal(t, "nothing to migrate\n", out)
}

func TestLocalURL(t *testing.T) {
	require.Equal(t, "http://localhost:8080", localURL(":8080"))
	require.Equal(t, "http://10.0.0.1:9000", localURL("10.0.0.1:9000"))
}
