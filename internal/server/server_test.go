/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"godashboard/internal/activity"
	"godashboard/internal/auth"
	"godashboard/internal/config"
	"godashboard/internal/dashboard"
	"godashboard/internal/layout"
	"godashboard/internal/metrics"
	"godashboard/internal/navigation"
	"godashboard/internal/prefstore"
	"godashboard/internal/widget"
)

const testSecret = "test-secret"

type harness struct {
	t      *testing.T
	srv    *Server
	ts     *httptest.Server
	tokens *auth.Tokens
	csrf   *auth.CSRF
}

type harnessOpts struct {
	prefs     prefstore.Store
	writeRate int
	ready     func(context.Context) error
	crashDir  string
}

func newHarness(t *testing.T, opts harnessOpts) *harness {
	t.Helper()
	if opts.prefs == nil {
		opts.prefs = prefstore.NewMemory()
	}
	reg := widget.NewRegistry()
	require.NoError(t, dashboard.Builtins{Activity: activity.NewMemory()}.Register(reg))
	tree, err := navigation.NewDefaultTree()
	require.NoError(t, err)
	dir, err := auth.NewDirectory(map[string]config.UserConfig{
		"alice": {Groups: []string{"editor"}, Registered: "2024-02-03"},
		"bob":   {},
		"root":  {Groups: []string{"editor", "sysop"}},
	}, map[string][]string{
		"user":   {"read", "viewdashboard"},
		"editor": {"customizedashboard", "createpage"},
		"sysop":  {"viewalldashboards", "siteadmin"},
	})
	require.NoError(t, err)

	h := &harness{
		t:      t,
		tokens: auth.NewTokens(testSecret, "godashboard", time.Hour),
		csrf:   auth.NewCSRF(time.Minute),
	}
	h.srv = New(Deps{
		Dashboard:          dashboard.NewAssembler(reg, layout.NewStore(opts.prefs, reg)),
		Navigation:         navigation.NewRenderer(tree),
		Directory:          dir,
		Tokens:             h.tokens,
		CSRF:               h.csrf,
		Metrics:            metrics.New(),
		Ready:              opts.ready,
		CrashDir:           opts.crashDir,
		WriteRatePerMinute: opts.writeRate,
	})
	h.ts = httptest.NewServer(h.srv.Handler())
	t.Cleanup(func() {
		h.ts.Close()
		h.srv.Close()
	})
	return h
}

func (h *harness) bearer(user string) string {
	tok, _, err := h.tokens.Issue(user, user)
	require.NoError(h.t, err)
	return tok
}

type reply struct {
	status int
	header http.Header
	body   map[string]any
}

func (r reply) errorCode() string {
	e, _ := r.body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func (h *harness) do(method, path, user, csrf string, body any) reply {
	h.t.Helper()
	var rdr io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rdr = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(h.t, err)
		rdr = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, h.ts.URL+path, rdr)
	require.NoError(h.t, err)
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+h.bearer(user))
	}
	if csrf != "" {
		req.Header.Set(HeaderCSRF, csrf)
	}
	resp, err := h.ts.Client().Do(req)
	require.NoError(h.t, err)
	defer resp.Body.Close()
	out := reply{status: resp.StatusCode, header: resp.Header}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(h.t, err)
	_ = json.Unmarshal(raw, &out.body)
	return out
}

func (h *harness) token(user string) string {
	tok, _ := h.csrf.Issue(user)
	return tok
}

func TestOperationalEndpoints(t *testing.T) {
	h := newHarness(t, harnessOpts{ready: func(context.Context) error { return errors.New("down") }})

	resp, err := http.Get(h.ts.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get(HeaderRequestID))

	resp, err = http.Get(h.ts.URL + "/readyz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp, err = http.Get(h.ts.URL + "/version")
	require.NoError(t, err)
	b, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NotEmpty(t, string(b))

	h.do(http.MethodGet, "/api/dashboard/widgets", "alice", "", nil)
	resp, err = http.Get(h.ts.URL + "/metrics")
	require.NoError(t, err)
	b, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Contains(t, string(b), `path="GET /api/dashboard/widgets"`)
}

func TestRequestIDIsEchoed(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	req, _ := http.NewRequest(http.MethodGet, h.ts.URL+"/healthz", nil)
	req.Header.Set(HeaderRequestID, "req-123")
	resp, err := h.ts.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, "req-123", resp.Header.Get(HeaderRequestID))
}

func TestAuthentication(t *testing.T) {
	h := newHarness(t, harnessOpts{})

	r := h.do(http.MethodGet, "/api/dashboard/widgets", "", "", nil)
	require.Equal(t, http.StatusForbidden, r.status)
	require.Equal(t, CodeNotLoggedIn, r.errorCode())

	r = h.do(http.MethodGet, "/api/dashboard/widgets", "mallory", "", nil)
	require.Equal(t, http.StatusForbidden, r.status)
	require.Equal(t, CodeNotLoggedIn, r.errorCode())

	req, _ := http.NewRequest(http.MethodGet, h.ts.URL+"/api/dashboard/widgets", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	resp, err := h.ts.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestWidgetsCatalog(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	r := h.do(http.MethodGet, "/api/dashboard/widgets", "alice", "", nil)
	require.Equal(t, http.StatusOK, r.status)
	require.Equal(t, "success", r.body["result"])
	widgets := r.body["widgets"].([]any)
	require.Len(t, widgets, 5)
	first := widgets[0].(map[string]any)
	require.Equal(t, "welcome", first["id"])
	require.Equal(t, false, first["canHide"])
	require.Equal(t, "main", first["defaultSection"])
}

func TestWritesRequireCSRF(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	body := map[string]string{"widget": "notifications"}

	r := h.do(http.MethodPost, "/api/dashboard/hidewidget", "alice", "", body)
	require.Equal(t, http.StatusForbidden, r.status)
	require.Equal(t, CodeBadToken, r.errorCode())

	r = h.do(http.MethodPost, "/api/dashboard/hidewidget", "alice", h.token("root"), body)
	require.Equal(t, CodeBadToken, r.errorCode())

	r = h.do(http.MethodPost, "/api/dashboard/hidewidget", "alice", h.token("alice"), body)
	require.Equal(t, http.StatusOK, r.status)
	require.Equal(t, []any{"notifications"}, r.body["hiddenWidgets"])
}

func TestTokenEndpoint(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	r := h.do(http.MethodGet, "/api/dashboard/token", "alice", "", nil)
	require.Equal(t, http.StatusOK, r.status)
	tok, _ := r.body["token"].(string)
	require.True(t, h.csrf.Valid("alice", tok))
}

func TestWritesRequireCustomizeRight(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	r := h.do(http.MethodPost, "/api/dashboard/hidewidget", "bob", h.token("bob"), map[string]string{"widget": "notifications"})
	require.Equal(t, http.StatusForbidden, r.status)
	require.Equal(t, CodePermissionDenied, r.errorCode())
}

func TestSaveLayoutValidation(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	post := func(body any) reply {
		return h.do(http.MethodPost, "/api/dashboard/savelayout", "alice", h.token("alice"), body)
	}

	r := post(`{"layout":`)
	require.Equal(t, http.StatusBadRequest, r.status)
	require.Equal(t, CodeBadJSON, r.errorCode())

	r = post(`{}`)
	require.Equal(t, http.StatusBadRequest, r.status)
	require.Equal(t, "missingparam", r.errorCode())

	r = post(map[string]any{"layout": map[string]any{"main": []string{"welcome"}, "sidebar": []string{"welcome"}}})
	require.Equal(t, http.StatusBadRequest, r.status)
	require.Equal(t, "duplicatewidget", r.errorCode())

	r = post(map[string]any{"layout": map[string]any{"main": []string{"welcome"}}})
	require.Equal(t, http.StatusBadRequest, r.status)
	require.Equal(t, "invalidlayout", r.errorCode())

	r = post(map[string]any{"layout": map[string]any{"main": []string{"quick-actions", "welcome"}, "sidebar": []string{}}})
	require.Equal(t, http.StatusOK, r.status)
	require.Equal(t, "success", r.body["result"])
	saved := r.body["layout"].(map[string]any)
	require.Equal(t, []any{"quick-actions", "welcome"}, saved["main"])
}

func TestHideWidgetValidation(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	for widgetID, code := range map[string]string{
		"":        "missingparam",
		"nope":    "unknownwidget",
		"welcome": "widgetnothideable",
	} {
		r := h.do(http.MethodPost, "/api/dashboard/hidewidget", "alice", h.token("alice"), map[string]string{"widget": widgetID})
		require.Equal(t, http.StatusBadRequest, r.status, widgetID)
		require.Equal(t, code, r.errorCode(), widgetID)
	}
}

func TestDashboardFlow(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	tok := h.token("alice")

	r := h.do(http.MethodGet, "/api/dashboard", "alice", "", nil)
	require.Equal(t, http.StatusOK, r.status)
	model := r.body["dashboard"].(map[string]any)
	header := model["header"].(map[string]any)
	require.Equal(t, []any{"user", "editor"}, header["groups"])
	require.Equal(t, "2024-02-03T00:00:00Z", header["lastSeen"])
	require.Equal(t, "/wiki/User:alice", header["profileUrl"])
	require.Equal(t, map[string]any{
		"main":    []any{"welcome", "recent-activity"},
		"sidebar": []any{"quick-actions", "notifications", "quick-links"},
	}, model["layout"])

	r = h.do(http.MethodPost, "/api/dashboard/hidewidget", "alice", tok, map[string]string{"widget": "recent-activity"})
	require.Equal(t, http.StatusOK, r.status)
	r = h.do(http.MethodGet, "/api/dashboard", "alice", "", nil)
	model = r.body["dashboard"].(map[string]any)
	require.NotContains(t, model["widgets"], "recent-activity")

	r = h.do(http.MethodPost, "/api/dashboard/showwidget", "alice", tok, map[string]string{"widget": "recent-activity"})
	require.Equal(t, http.StatusOK, r.status)
	require.Equal(t, []any{}, r.body["hiddenWidgets"])
}

func TestViewOtherDashboard(t *testing.T) {
	h := newHarness(t, harnessOpts{})

	r := h.do(http.MethodGet, "/api/dashboard?user=bob", "alice", "", nil)
	require.Equal(t, http.StatusForbidden, r.status)
	require.Equal(t, CodePermissionDenied, r.errorCode())

	r = h.do(http.MethodGet, "/api/dashboard?user=bob", "root", "", nil)
	require.Equal(t, http.StatusOK, r.status)
	require.Equal(t, "bob", r.body["dashboard"].(map[string]any)["user"])

	r = h.do(http.MethodGet, "/api/dashboard?user=ghost", "root", "", nil)
	require.Equal(t, http.StatusNotFound, r.status)
	require.Equal(t, CodeNoSuchUser, r.errorCode())

	r = h.do(http.MethodGet, "/api/dashboard?user=alice", "alice", "", nil)
	require.Equal(t, http.StatusOK, r.status)
}

type downStore struct{}

func (downStore) Get(context.Context, string, string) (string, bool, error) {
	return "", false, errors.New("connection refused")
}

func (downStore) Set(context.Context, string, string, string) error {
	return errors.New("connection refused")
}

func TestPersistFailure(t *testing.T) {
	h := newHarness(t, harnessOpts{prefs: downStore{}})

	r := h.do(http.MethodGet, "/api/dashboard", "alice", "", nil)
	require.Equal(t, http.StatusInternalServerError, r.status)
	require.Equal(t, CodePersistFailed, r.errorCode())

	r = h.do(http.MethodPost, "/api/dashboard/savelayout", "alice", h.token("alice"),
		map[string]any{"layout": map[string]any{"main": []string{}, "sidebar": []string{}}})
	require.Equal(t, http.StatusInternalServerError, r.status)
	require.Equal(t, CodePersistFailed, r.errorCode())
}

func TestWriteRateLimit(t *testing.T) {
	h := newHarness(t, harnessOpts{writeRate: 2})
	tok := h.token("alice")
	body := map[string]string{"widget": "notifications"}

	for i := 0; i < 2; i++ {
		r := h.do(http.MethodPost, "/api/dashboard/hidewidget", "alice", tok, body)
		require.Equal(t, http.StatusOK, r.status)
	}
	r := h.do(http.MethodPost, "/api/dashboard/hidewidget", "alice", tok, body)
	require.Equal(t, http.StatusTooManyRequests, r.status)
	require.Equal(t, CodeRateLimited, r.errorCode())
	require.NotEmpty(t, r.header.Get("Retry-After"))

	r = h.do(http.MethodPost, "/api/dashboard/hidewidget", "root", h.token("root"), body)
	require.Equal(t, http.StatusOK, r.status)

	r = h.do(http.MethodGet, "/api/dashboard", "alice", "", nil)
	require.Equal(t, http.StatusOK, r.status)
}

func TestNavigationEndpoints(t *testing.T) {
	h := newHarness(t, harnessOpts{})

	r := h.do(http.MethodGet, "/api/dashboard/navigation?path=/wiki/Special:CreatePage&mobile=1", "alice", "", nil)
	require.Equal(t, http.StatusOK, r.status)
	nav := r.body["navigation"].(map[string]any)
	require.Equal(t, "dashboard-navigation mobile-navigation", nav["classes"])
	sections := nav["sections"].([]any)
	require.Len(t, sections, 2)
	content := sections[1].(map[string]any)
	require.Equal(t, "content", content["id"])
	require.Equal(t, true, content["items"].([]any)[0].(map[string]any)["active"])

	r = h.do(http.MethodPost, "/api/dashboard/navigation/collapse", "alice", h.token("alice"), map[string]any{"section": "content", "collapsed": true})
	require.Equal(t, http.StatusOK, r.status)
	require.Equal(t, []any{"content"}, r.body["collapsedSections"])

	r = h.do(http.MethodPost, "/api/dashboard/navigation/collapse", "alice", h.token("alice"), map[string]any{"section": "content"})
	require.Equal(t, http.StatusBadRequest, r.status)

	r = h.do(http.MethodGet, "/api/dashboard/navigation", "alice", "", nil)
	sections = r.body["navigation"].(map[string]any)["sections"].([]any)
	require.Equal(t, true, sections[1].(map[string]any)["collapsed"])
	require.Equal(t, false, sections[0].(map[string]any)["collapsed"])
}

func TestPanicsAreRecovered(t *testing.T) {
	dir := t.TempDir()
	h := newHarness(t, harnessOpts{crashDir: dir})
	handler := h.srv.requestID(h.srv.recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/dashboard", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, files, 1)
}

func TestPanicsAreCounted(t *testing.T) {
	h := newHarness(t, harnessOpts{crashDir: t.TempDir()})
	mux := http.NewServeMux()
	mux.HandleFunc("GET /boom", func(http.ResponseWriter, *http.Request) { panic("boom") })
	handler := h.srv.requestID(h.srv.instrument(h.srv.recoverer(mux)))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	resp, err := http.Get(h.ts.URL + "/metrics")
	require.NoError(t, err)
	b, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Contains(t, string(b), `path="GET /boom",status_code="500"`)
}

func TestMethodNotAllowed(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	r := h.do(http.MethodGet, "/api/dashboard/savelayout", "alice", "", nil)
	require.Equal(t, http.StatusMethodNotAllowed, r.status)
}
