/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"godashboard/internal/domain"
	"godashboard/internal/layout"
	"godashboard/internal/navigation"
	"godashboard/internal/telemetry"
	"godashboard/internal/version"
)

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Ready(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("store not ready"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(version.String()))
}

func (s *Server) handleToken(w http.ResponseWriter, _ *http.Request, user domain.User) {
	tok, exp := s.deps.CSRF.Issue(user.ID())
	writeSuccess(w, map[string]any{"token": tok, "expires_at": exp.UTC().Format(time.RFC3339)})
}

func (s *Server) handleWidgets(w http.ResponseWriter, _ *http.Request, user domain.User) {
	writeSuccess(w, map[string]any{"widgets": s.deps.Dashboard.Catalog(user)})
}

// handleDashboard renders the requester's dashboard, or another user's for
// holders of the view-all right.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request, user domain.User) {
	target := user
	if name := strings.TrimSpace(r.URL.Query().Get("user")); name != "" && name != user.ID() {
		if !user.IsAllowed(domain.RightViewAll) {
			writeError(w, http.StatusForbidden, CodePermissionDenied, "you may only view your own dashboard")
			return
		}
		acc, ok := s.deps.Directory.Lookup(name)
		if !ok {
			writeError(w, http.StatusNotFound, CodeNoSuchUser, "no such user: "+name)
			return
		}
		target = acc
	}
	model, err := s.deps.Dashboard.BuildRenderModel(r.Context(), target)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeSuccess(w, map[string]any{"dashboard": model})
}

func (s *Server) handleNavigation(w http.ResponseWriter, r *http.Request, user domain.User) {
	q := r.URL.Query()
	collapsed, err := s.deps.Dashboard.Layouts().LoadCollapsed(r.Context(), user.ID())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	menu := s.deps.Navigation.Render(user, navigation.Options{
		CurrentPath:   q.Get("path"),
		Mobile:        queryBool(q.Get("mobile")),
		Collapsed:     queryBool(q.Get("collapsed")),
		UserCollapsed: collapsed,
	})
	writeSuccess(w, map[string]any{"navigation": menu})
}

func queryBool(v string) bool {
	b, _ := strconv.ParseBool(v)
	return b
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return domain.Invalid(CodeBadJSON, "request body is not valid JSON: %v", err)
	}
	return nil
}

func (s *Server) handleSaveLayout(w http.ResponseWriter, r *http.Request, user domain.User) {
	var body struct {
		Layout json.RawMessage `json:"layout"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	if len(body.Layout) == 0 || string(body.Layout) == "null" {
		s.fail(w, r, domain.Invalid(domain.CodeMissingParameter, "layout is required"))
		return
	}
	l, err := layout.ParseLayout(body.Layout)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.deps.Dashboard.SaveLayout(r.Context(), user, l); err != nil {
		s.fail(w, r, err)
		return
	}
	s.customized(telemetry.EventLayoutSaved, map[string]any{"main": len(l.Main), "sidebar": len(l.Sidebar)})
	writeSuccess(w, map[string]any{"layout": l})
}

type widgetBody struct {
	Widget string `json:"widget"`
}

func (s *Server) handleHideWidget(w http.ResponseWriter, r *http.Request, user domain.User) {
	var body widgetBody
	if err := decodeBody(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	hidden, err := s.deps.Dashboard.HideWidget(r.Context(), user, body.Widget)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.customized(telemetry.EventWidgetHidden, map[string]any{"widget": body.Widget})
	writeSuccess(w, map[string]any{"hiddenWidgets": hidden.IDs()})
}

func (s *Server) handleShowWidget(w http.ResponseWriter, r *http.Request, user domain.User) {
	var body widgetBody
	if err := decodeBody(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	hidden, err := s.deps.Dashboard.ShowWidget(r.Context(), user, body.Widget)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.customized(telemetry.EventWidgetShown, map[string]any{"widget": body.Widget})
	writeSuccess(w, map[string]any{"hiddenWidgets": hidden.IDs()})
}

func (s *Server) handleCollapse(w http.ResponseWriter, r *http.Request, user domain.User) {
	var body struct {
		Section   string `json:"section"`
		Collapsed *bool  `json:"collapsed"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	if strings.TrimSpace(body.Section) == "" || body.Collapsed == nil {
		s.fail(w, r, domain.Invalid(domain.CodeMissingParameter, "section and collapsed are required"))
		return
	}
	set, err := s.deps.Dashboard.Layouts().SetCollapsed(r.Context(), user.ID(), body.Section, *body.Collapsed)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeSuccess(w, map[string]any{"collapsedSections": set.IDs()})
}

func (s *Server) customized(kind string, props map[string]any) {
	if s.deps.Metrics != nil {
		s.deps.Metrics.Customized(kind)
	}
	s.deps.Telemetry.Event(kind, props)
}
