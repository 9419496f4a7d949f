/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package widget holds the catalog of dashboard widget types. Definitions are
// registered once at startup and never change afterwards; per-user views of
// the catalog are computed on each call.
package widget

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"godashboard/internal/domain"
)

// VisibilityRule decides whether a user may see a widget.
type VisibilityRule func(user domain.User) bool

// Provider builds the per-user content of a widget.
type Provider interface {
	Content(ctx context.Context, user domain.User) (any, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, user domain.User) (any, error)

func (f ProviderFunc) Content(ctx context.Context, user domain.User) (any, error) { return f(ctx, user) }

// Definition describes one widget type.
type Definition struct {
	ID             string
	Type           string
	TitleKey       string
	DescriptionKey string
	DefaultRegion  domain.Region
	Hideable       bool
	Icon           string
	Editable       bool
	Modules        []string // client modules the widget needs
	Visible        VisibilityRule
	Provider       Provider
}

// VisibleTo applies the visibility rule; no rule means visible to everyone.
func (d Definition) VisibleTo(user domain.User) bool {
	return d.Visible == nil || d.Visible(user)
}

// Summary is the client facing description of a definition.
type Summary struct {
	ID          string        `json:"id"`
	Type        string        `json:"type,omitempty"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Region      domain.Region `json:"defaultSection"`
	Hideable    bool          `json:"canHide"`
	Icon        string        `json:"icon,omitempty"`
	Editable    bool          `json:"editable"`
}

func (d Definition) Summary() Summary {
	return Summary{
		ID:          d.ID,
		Type:        d.Type,
		Title:       d.TitleKey,
		Description: d.DescriptionKey,
		Region:      d.DefaultRegion,
		Hideable:    d.Hideable,
		Icon:        d.Icon,
		Editable:    d.Editable,
	}
}

// DuplicateWidgetError is returned when an id is registered twice.
type DuplicateWidgetError struct{ ID string }

func (e *DuplicateWidgetError) Error() string {
	return fmt.Sprintf("widget %q is already registered", e.ID)
}

// InvalidWidgetError is returned for definitions that cannot be registered.
type InvalidWidgetError struct {
	ID     string
	Reason string
}

func (e *InvalidWidgetError) Error() string {
	return fmt.Sprintf("invalid widget %q: %s", e.ID, e.Reason)
}

// Registry is the ordered catalog of widget definitions.
type Registry struct {
	mu   sync.RWMutex
	defs []Definition
	idx  map[string]int
}

func NewRegistry() *Registry { return &Registry{idx: make(map[string]int)} }

// Register adds def to the catalog. An empty region defaults to main.
func (r *Registry) Register(def Definition) error {
	switch {
	case strings.TrimSpace(def.ID) == "":
		return &InvalidWidgetError{ID: def.ID, Reason: "empty id"}
	case strings.Contains(def.ID, "|"):
		return &InvalidWidgetError{ID: def.ID, Reason: `id must not contain "|"`}
	}
	if def.DefaultRegion == "" {
		def.DefaultRegion = domain.RegionMain
	}
	if !def.DefaultRegion.Valid() {
		return &InvalidWidgetError{ID: def.ID, Reason: fmt.Sprintf("unknown region %q", def.DefaultRegion)}
	}
	if def.TitleKey == "" {
		def.TitleKey = "dashboard-widget-" + def.ID
	}
	def.Modules = append([]string(nil), def.Modules...)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.idx[def.ID]; dup {
		return &DuplicateWidgetError{ID: def.ID}
	}
	r.idx[def.ID] = len(r.defs)
	r.defs = append(r.defs, def)
	return nil
}

// Get looks up a definition by id.
func (r *Registry) Get(id string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.idx[id]
	if !ok {
		return Definition{}, false
	}
	return r.defs[i], true
}

// All returns every definition in registration order.
func (r *Registry) All() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Definition(nil), r.defs...)
}

// ListFor returns the definitions visible to user in registration order.
func (r *Registry) ListFor(user domain.User) []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Definition, 0, len(r.defs))
	for _, d := range r.defs {
		if d.VisibleTo(user) {
			out = append(out, d)
		}
	}
	return out
}

// DefaultLayoutFor buckets the visible definitions by their default region.
// Both regions are non-nil.
func (r *Registry) DefaultLayoutFor(user domain.User) domain.Layout {
	l := domain.NewLayout()
	for _, d := range r.ListFor(user) {
		l.Append(d.DefaultRegion, d.ID)
	}
	return l
}
