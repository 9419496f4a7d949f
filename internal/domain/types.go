/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package domain holds the value types shared by the dashboard components:
// the acting user, the two-region layout document, ordered id sets and the
// recent edit records shown in the activity feed.
package domain

import (
	"slices"
	"time"
)

// Rights checked by the dashboard itself.
const (
	RightView      = "viewdashboard"
	RightCustomize = "customizedashboard"
	RightViewAll   = "viewalldashboards"
)

// User is the identity a request acts as.
type User interface {
	ID() string
	Name() string
	IsAllowed(permission string) bool
}

// Profile is implemented by users that can report account statistics.
type Profile interface {
	EditCount() int
	RegisteredAt() time.Time
}

// Member is implemented by users that belong to named groups and have a
// recorded last login.
type Member interface {
	Groups() []string
	LastSeen() time.Time
}

// Region names one of the two dashboard columns.
type Region string

const (
	RegionMain    Region = "main"
	RegionSidebar Region = "sidebar"
)

// Regions lists the regions in render order.
var Regions = []Region{RegionMain, RegionSidebar}

// Valid reports whether r is a known region.
func (r Region) Valid() bool { return r == RegionMain || r == RegionSidebar }

// Layout is the persisted per-user arrangement of widget ids.
// Both lists are serialized even when empty.
type Layout struct {
	Main    []string `json:"main"`
	Sidebar []string `json:"sidebar"`
}

// NewLayout returns a layout with non-nil, empty regions.
func NewLayout() Layout { return Layout{Main: []string{}, Sidebar: []string{}} }

// In returns the ids placed in region r.
func (l Layout) In(r Region) []string {
	if r == RegionSidebar {
		return l.Sidebar
	}
	return l.Main
}

// Append adds id to the end of region r.
func (l *Layout) Append(r Region, id string) {
	if r == RegionSidebar {
		l.Sidebar = append(l.Sidebar, id)
		return
	}
	l.Main = append(l.Main, id)
}

// Contains reports whether id is placed in either region.
func (l Layout) Contains(id string) bool {
	return slices.Contains(l.Main, id) || slices.Contains(l.Sidebar, id)
}

// Clone returns a deep copy with non-nil regions.
func (l Layout) Clone() Layout {
	return Layout{
		Main:    append(make([]string, 0, len(l.Main)), l.Main...),
		Sidebar: append(make([]string, 0, len(l.Sidebar)), l.Sidebar...),
	}
}

// Len is the number of placed ids over both regions.
func (l Layout) Len() int { return len(l.Main) + len(l.Sidebar) }

// RecentEdit is one entry of a user's contribution history.
type RecentEdit struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user"`
	Title     string    `json:"title"`
	Type      string    `json:"type"` // create|edit|undo|rollback|delete|move|upload|comment
	Summary   string    `json:"summary,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
