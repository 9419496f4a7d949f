/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package navigation holds the dashboard sidebar menu: a tree of sections and
// items filtered per user, and the renderer that turns the filtered tree into
// a view model with active and collapsed state.
package navigation

import (
	"cmp"
	"fmt"
	"regexp"
	"slices"
	"sync"

	"godashboard/internal/domain"
)

// UnsetOrder is the sort position of items registered without an order.
const UnsetOrder = 999

// Item is one menu entry.
type Item struct {
	ID         string
	Label      string
	Icon       string
	URL        string
	Permission string
	// Order sorts items within a section. 0 means unset and sorts as
	// UnsetOrder, so explicit positions start at 1.
	Order int
	// ActivePattern, when set, marks the item active for matching paths.
	ActivePattern *regexp.Regexp
	Badge         string
}

func (it Item) sortKey() int {
	if it.Order == 0 {
		return UnsetOrder
	}
	return it.Order
}

// Section groups items under a heading. A section with a URL is a page of
// its own and is kept even when none of its items are visible.
type Section struct {
	ID         string
	Label      string
	Icon       string
	Permission string
	URL        string
	Items      []Item
}

type DuplicateSectionError struct{ ID string }

func (e *DuplicateSectionError) Error() string {
	return fmt.Sprintf("navigation section %q is already registered", e.ID)
}

type UnknownSectionError struct{ ID string }

func (e *UnknownSectionError) Error() string {
	return fmt.Sprintf("navigation section %q is not registered", e.ID)
}

type DuplicateItemError struct{ Section, ID string }

func (e *DuplicateItemError) Error() string {
	return fmt.Sprintf("navigation item %q is already registered in section %q", e.ID, e.Section)
}

// Tree is the registered menu. Sections keep registration order.
type Tree struct {
	mu       sync.RWMutex
	sections []Section
}

func NewTree() *Tree { return &Tree{} }

func (t *Tree) find(id string) int {
	return slices.IndexFunc(t.sections, func(s Section) bool { return s.ID == id })
}

// RegisterSection adds s together with any items it carries.
func (t *Tree) RegisterSection(s Section) error {
	if s.ID == "" {
		return fmt.Errorf("navigation section id must not be empty")
	}
	items := s.Items
	s.Items = nil
	for i, it := range items {
		if it.ID == "" {
			return fmt.Errorf("navigation item %d in section %q has no id", i, s.ID)
		}
		if slices.ContainsFunc(s.Items, func(x Item) bool { return x.ID == it.ID }) {
			return &DuplicateItemError{Section: s.ID, ID: it.ID}
		}
		s.Items = append(s.Items, it)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.find(s.ID) >= 0 {
		return &DuplicateSectionError{ID: s.ID}
	}
	t.sections = append(t.sections, s)
	return nil
}

// RegisterItem appends it to the section sectionID.
func (t *Tree) RegisterItem(sectionID string, it Item) error {
	if it.ID == "" {
		return fmt.Errorf("navigation item id must not be empty")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	i := t.find(sectionID)
	if i < 0 {
		return &UnknownSectionError{ID: sectionID}
	}
	s := &t.sections[i]
	if slices.ContainsFunc(s.Items, func(x Item) bool { return x.ID == it.ID }) {
		return &DuplicateItemError{Section: sectionID, ID: it.ID}
	}
	s.Items = append(s.Items, it)
	return nil
}

// RemoveSection deletes a section and reports whether it existed.
func (t *Tree) RemoveSection(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	i := t.find(id)
	if i < 0 {
		return false
	}
	t.sections = slices.Delete(t.sections, i, i+1)
	return true
}

// RemoveItem deletes an item and reports whether it existed.
func (t *Tree) RemoveItem(sectionID, itemID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	i := t.find(sectionID)
	if i < 0 {
		return false
	}
	s := &t.sections[i]
	j := slices.IndexFunc(s.Items, func(x Item) bool { return x.ID == itemID })
	if j < 0 {
		return false
	}
	s.Items = slices.Delete(s.Items, j, j+1)
	return true
}

// Sections returns a copy of the full tree in registration order.
func (t *Tree) Sections() []Section {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Section, len(t.sections))
	for i, s := range t.sections {
		s.Items = slices.Clone(s.Items)
		out[i] = s
	}
	return out
}

// ForUser returns the sections and items user may see. Items are stably
// sorted by order; sections keep registration order.
func (t *Tree) ForUser(user domain.User) []Section {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Section, 0, len(t.sections))
	for _, s := range t.sections {
		if s.Permission != "" && !user.IsAllowed(s.Permission) {
			continue
		}
		items := make([]Item, 0, len(s.Items))
		for _, it := range s.Items {
			if it.Permission == "" || user.IsAllowed(it.Permission) {
				items = append(items, it)
			}
		}
		if len(items) == 0 && s.URL == "" {
			continue
		}
		slices.SortStableFunc(items, func(a, b Item) int { return cmp.Compare(a.sortKey(), b.sortKey()) })
		s.Items = items
		out = append(out, s)
	}
	return out
}
