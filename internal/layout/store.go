/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package layout persists the per-user dashboard arrangement: the layout
// document, the hidden widget set and the collapsed navigation sections.
// All three live in the preference store under fixed keys.
package layout

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"godashboard/internal/domain"
	applog "godashboard/internal/log"
	"godashboard/internal/prefstore"
)

// Preference keys.
const (
	KeyLayout    = "dashboard-layout"
	KeyHidden    = "dashboard-hidden-widgets"
	KeyCollapsed = "dashboard-collapsed-sections"

	// Separator joins ids in the hidden and collapsed values.
	Separator = "|"
)

//go:embed layout.schema.json
var schemaJSON []byte

var loadSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaJSON))
})

// Defaults yields the layout a user starts from.
type Defaults interface {
	DefaultLayoutFor(user domain.User) domain.Layout
}

// Store reads and writes layout state through a preference store.
type Store struct {
	prefs    prefstore.Store
	defaults Defaults
	log      *slog.Logger
}

func NewStore(prefs prefstore.Store, defaults Defaults) *Store {
	return &Store{prefs: prefs, defaults: defaults, log: applog.WithComponent("layout")}
}

// Load returns the stored layout of user, or the default layout when nothing
// usable is stored. Only store failures are returned, as *domain.PersistError.
func (s *Store) Load(ctx context.Context, user domain.User) (domain.Layout, error) {
	raw, ok, err := s.prefs.Get(ctx, user.ID(), KeyLayout)
	if err != nil {
		return domain.Layout{}, &domain.PersistError{Op: "get", Key: KeyLayout, Err: err}
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return s.defaults.DefaultLayoutFor(user), nil
	}
	l, reason := decodeStored([]byte(raw))
	if reason != "" {
		s.log.DebugContext(ctx, "stored layout unusable, using defaults",
			slog.String("user", user.ID()), slog.String("reason", reason))
		return s.defaults.DefaultLayoutFor(user), nil
	}
	return l, nil
}

// Save validates l and writes it as the user's layout. Nothing is written when
// validation fails.
func (s *Store) Save(ctx context.Context, userID string, l domain.Layout) error {
	if err := Validate(l); err != nil {
		return err
	}
	b, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("marshal layout: %w", err)
	}
	if err := s.prefs.Set(ctx, userID, KeyLayout, string(b)); err != nil {
		return &domain.PersistError{Op: "set", Key: KeyLayout, Err: err}
	}
	return nil
}

// Validate checks that both regions are present and that no id is empty or
// appears more than once across the two regions.
func Validate(l domain.Layout) error {
	if l.Main == nil {
		return domain.Invalid(domain.CodeInvalidLayout, "layout must contain a %q list", domain.RegionMain)
	}
	if l.Sidebar == nil {
		return domain.Invalid(domain.CodeInvalidLayout, "layout must contain a %q list", domain.RegionSidebar)
	}
	seen := make(map[string]domain.Region, l.Len())
	for _, r := range domain.Regions {
		for _, id := range l.In(r) {
			if strings.TrimSpace(id) == "" {
				return domain.Invalid(domain.CodeInvalidLayout, "widget ids must not be empty")
			}
			if prev, dup := seen[id]; dup {
				return domain.Invalid(domain.CodeDuplicateWidget, "widget %q appears in %s and %s", id, prev, r)
			}
			seen[id] = r
		}
	}
	return nil
}

// ParseLayout decodes and validates a client supplied layout document.
func ParseLayout(raw []byte) (domain.Layout, error) {
	if msg := checkSchema(raw); msg != "" {
		return domain.Layout{}, domain.Invalid(domain.CodeInvalidLayout, "%s", msg)
	}
	var l domain.Layout
	if err := json.Unmarshal(raw, &l); err != nil {
		return domain.Layout{}, domain.Invalid(domain.CodeInvalidLayout, "%v", err)
	}
	if err := Validate(l); err != nil {
		return domain.Layout{}, err
	}
	return l, nil
}

// decodeStored is the lenient read path: structure must match the schema,
// repeated ids are tolerated and resolved at render time.
func decodeStored(raw []byte) (domain.Layout, string) {
	if msg := checkSchema(raw); msg != "" {
		return domain.Layout{}, msg
	}
	var l domain.Layout
	if err := json.Unmarshal(raw, &l); err != nil {
		return domain.Layout{}, err.Error()
	}
	return l, ""
}

// checkSchema returns a description of the first problems found, or "".
func checkSchema(raw []byte) string {
	if !json.Valid(raw) {
		return "layout is not valid JSON"
	}
	schema, err := loadSchema()
	if err != nil {
		return fmt.Sprintf("layout schema: %v", err)
	}
	res, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return err.Error()
	}
	if res.Valid() {
		return ""
	}
	msgs := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		msgs = append(msgs, e.String())
	}
	return strings.Join(msgs, "; ")
}
