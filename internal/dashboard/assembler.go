/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package dashboard assembles the per-user render model from the widget
// registry and the stored layout state, and applies the customization
// operations (save layout, hide and show widgets).
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"godashboard/internal/domain"
	"godashboard/internal/layout"
	applog "godashboard/internal/log"
	"godashboard/internal/widget"
)

// maxContentWorkers bounds concurrent widget providers per request.
const maxContentWorkers = 4

// Instance is a placed widget with its rendered content.
type Instance struct {
	widget.Summary
	Content any    `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Header is the user summary shown above the widgets. LastSeen is the last
// login, else the registration date; nil when neither is known.
type Header struct {
	Title      string     `json:"title"`
	Name       string     `json:"name"`
	ProfileURL string     `json:"profileUrl"`
	Groups     []string   `json:"groups"`
	LastSeen   *time.Time `json:"lastSeen"`
}

// HeaderFor builds the header of user.
func HeaderFor(user domain.User) Header {
	h := Header{
		Title:      "dashboard-dashboard",
		Name:       user.Name(),
		ProfileURL: domain.UserPage(user.ID()),
		Groups:     []string{},
	}
	var seen time.Time
	if m, ok := user.(domain.Member); ok {
		if g := m.Groups(); g != nil {
			h.Groups = g
		}
		seen = m.LastSeen()
	}
	if p, ok := user.(domain.Profile); ok && seen.IsZero() {
		seen = p.RegisteredAt()
	}
	if !seen.IsZero() {
		h.LastSeen = &seen
	}
	return h
}

// RenderModel is everything a client needs to draw the dashboard.
type RenderModel struct {
	User    string              `json:"user"`
	Header  Header              `json:"header"`
	Layout  domain.Layout       `json:"layout"`
	Widgets map[string]Instance `json:"widgets"`
	Modules []string            `json:"modules"`
}

// Assembler merges the registry with per-user layout state.
type Assembler struct {
	registry *widget.Registry
	layouts  *layout.Store
	log      *slog.Logger
}

func NewAssembler(registry *widget.Registry, layouts *layout.Store) *Assembler {
	return &Assembler{registry: registry, layouts: layouts, log: applog.WithComponent("dashboard")}
}

// Registry exposes the widget catalog the assembler renders from.
func (a *Assembler) Registry() *widget.Registry { return a.registry }

// Layouts exposes the layout store.
func (a *Assembler) Layouts() *layout.Store { return a.layouts }

// Catalog lists the widgets visible to user.
func (a *Assembler) Catalog(user domain.User) []widget.Summary {
	defs := a.registry.ListFor(user)
	out := make([]widget.Summary, 0, len(defs))
	for _, d := range defs {
		out = append(out, d.Summary())
	}
	return out
}

// BuildRenderModel computes the effective layout of user and renders each
// placed widget. It never writes. Store failures are returned; provider
// failures are recorded on the instance.
func (a *Assembler) BuildRenderModel(ctx context.Context, user domain.User) (RenderModel, error) {
	l := applog.WithOperation(a.log, "render")
	visible := a.registry.ListFor(user)

	var (
		hidden domain.IDSet
		stored domain.Layout
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		hidden, err = a.layouts.LoadHidden(gctx, user.ID())
		return err
	})
	g.Go(func() error {
		var err error
		stored, err = a.layouts.Load(gctx, user)
		return err
	})
	if err := g.Wait(); err != nil {
		l.ErrorContext(ctx, "load layout state", slog.String("user", user.ID()), slog.Any("err", err))
		return RenderModel{}, err
	}

	effective := Effective(visible, hidden, stored)
	byID := make(map[string]widget.Definition, len(visible))
	for _, d := range visible {
		byID[d.ID] = d
	}

	placed := make([]widget.Definition, 0, effective.Len())
	for _, r := range domain.Regions {
		for _, id := range effective.In(r) {
			placed = append(placed, byID[id])
		}
	}
	instances := a.render(ctx, l, user, placed)

	model := RenderModel{
		User:    user.ID(),
		Header:  HeaderFor(user),
		Layout:  effective,
		Widgets: make(map[string]Instance, len(placed)),
		Modules: []string{},
	}
	for i, d := range placed {
		model.Widgets[d.ID] = instances[i]
		for _, m := range d.Modules {
			if !slices.Contains(model.Modules, m) {
				model.Modules = append(model.Modules, m)
			}
		}
	}
	return model, nil
}

func (a *Assembler) render(ctx context.Context, l *slog.Logger, user domain.User, defs []widget.Definition) []Instance {
	out := make([]Instance, len(defs))
	var g errgroup.Group
	g.SetLimit(maxContentWorkers)
	for i, d := range defs {
		out[i] = Instance{Summary: d.Summary()}
		if d.Provider == nil {
			continue
		}
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					l.ErrorContext(ctx, "widget content panicked", slog.String("widget", d.ID), slog.Any("panic", r))
					out[i].Content = nil
					out[i].Error = fmt.Sprintf("panic: %v", r)
				}
			}()
			content, err := d.Provider.Content(ctx, user)
			if err != nil {
				l.WarnContext(ctx, "widget content failed", slog.String("widget", d.ID), slog.Any("err", err))
				out[i].Error = err.Error()
				return nil
			}
			out[i].Content = content
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Effective filters stored to the visible, non-hidden widgets and appends
// any visible widget not yet placed to its default region, in registry
// order. Widgets that cannot be hidden ignore the hidden set. Repeated ids
// keep their first position.
func Effective(visible []widget.Definition, hidden domain.IDSet, stored domain.Layout) domain.Layout {
	defs := make(map[string]widget.Definition, len(visible))
	for _, d := range visible {
		defs[d.ID] = d
	}
	shown := func(id string) bool {
		d, ok := defs[id]
		return ok && (!d.Hideable || !hidden.Has(id))
	}

	out := domain.NewLayout()
	placed := make(map[string]struct{}, len(visible))
	for _, r := range domain.Regions {
		for _, id := range stored.In(r) {
			if _, dup := placed[id]; dup || !shown(id) {
				continue
			}
			placed[id] = struct{}{}
			out.Append(r, id)
		}
	}
	for _, d := range visible {
		if _, ok := placed[d.ID]; ok || !shown(d.ID) {
			continue
		}
		placed[d.ID] = struct{}{}
		out.Append(d.DefaultRegion, d.ID)
	}
	return out
}

// SaveLayout validates and stores the layout of user.
func (a *Assembler) SaveLayout(ctx context.Context, user domain.User, l domain.Layout) error {
	if err := a.layouts.Save(ctx, user.ID(), l); err != nil {
		return err
	}
	applog.WithOperation(a.log, "save").InfoContext(ctx, "layout saved",
		slog.String("user", user.ID()), slog.Int("main", len(l.Main)), slog.Int("sidebar", len(l.Sidebar)))
	return nil
}

// HideWidget hides a registered, hideable widget for user.
func (a *Assembler) HideWidget(ctx context.Context, user domain.User, widgetID string) (domain.IDSet, error) {
	def, err := a.lookup(widgetID)
	if err != nil {
		return domain.IDSet{}, err
	}
	if !def.Hideable {
		return domain.IDSet{}, domain.Invalid(domain.CodeNotHideable, "widget %q cannot be hidden", def.ID)
	}
	return a.layouts.Hide(ctx, user.ID(), def.ID)
}

// ShowWidget removes a widget from the hidden set of user.
func (a *Assembler) ShowWidget(ctx context.Context, user domain.User, widgetID string) (domain.IDSet, error) {
	def, err := a.lookup(widgetID)
	if err != nil {
		return domain.IDSet{}, err
	}
	return a.layouts.Show(ctx, user.ID(), def.ID)
}

func (a *Assembler) lookup(widgetID string) (widget.Definition, error) {
	widgetID = strings.TrimSpace(widgetID)
	if widgetID == "" {
		return widget.Definition{}, domain.Invalid(domain.CodeMissingParameter, "widget is required")
	}
	def, ok := a.registry.Get(widgetID)
	if !ok {
		return widget.Definition{}, domain.Invalid(domain.CodeUnknownWidget, "unknown widget %q", widgetID)
	}
	return def, nil
}

// IsPersistFailure reports whether err came from a backing store.
func IsPersistFailure(err error) bool {
	var pe *domain.PersistError
	return errors.As(err, &pe)
}
