/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package navigation

import (
	"strings"

	"godashboard/internal/domain"
)

// Options are the per-request inputs to Render.
type Options struct {
	CurrentPath string
	Collapsed   bool // whole menu collapsed to icons
	Mobile      bool
	// CollapsedSections overrides the stored preference per section.
	CollapsedSections map[string]bool
	// UserCollapsed is the stored set of collapsed section ids.
	UserCollapsed domain.IDSet
}

// Menu is the navigation view model.
type Menu struct {
	Classes  string        `json:"classes"`
	Header   Header        `json:"header"`
	Sections []SectionView `json:"sections"`
	Footer   UserMenu      `json:"footer"`
}

type Header struct {
	Title   string `json:"title"`
	HomeURL string `json:"homeUrl"`
	Toggle  bool   `json:"toggle"`
}

type SectionView struct {
	ID        string     `json:"id"`
	Label     string     `json:"label"`
	Icon      string     `json:"icon,omitempty"`
	URL       string     `json:"url,omitempty"`
	Collapsed bool       `json:"collapsed"`
	Items     []ItemView `json:"items"`
}

type ItemView struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Icon   string `json:"icon,omitempty"`
	URL    string `json:"url"`
	Active bool   `json:"active"`
	Badge  string `json:"badge,omitempty"`
}

type UserMenu struct {
	Name   string     `json:"name"`
	Avatar string     `json:"avatar"`
	Links  []MenuLink `json:"links"`
}

type MenuLink struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	URL   string `json:"url"`
}

// Renderer builds menus from a tree.
type Renderer struct {
	tree *Tree
}

func NewRenderer(tree *Tree) *Renderer { return &Renderer{tree: tree} }

// IsActive reports whether it is the page at currentPath: the URL matches
// exactly, query string included, or the item's pattern matches.
func IsActive(it Item, currentPath string) bool {
	if currentPath == "" {
		return false
	}
	if it.URL != "" && it.URL == currentPath {
		return true
	}
	return it.ActivePattern != nil && it.ActivePattern.MatchString(currentPath)
}

// Render filters the tree for user and decorates it for display.
func (r *Renderer) Render(user domain.User, opts Options) Menu {
	m := Menu{
		Classes:  menuClasses(opts),
		Header:   Header{Title: "dashboard-nav-dashboard", HomeURL: "/wiki/Main_Page", Toggle: !opts.Mobile},
		Sections: []SectionView{},
		Footer:   userMenu(user),
	}
	for _, s := range r.tree.ForUser(user) {
		sv := SectionView{
			ID:        s.ID,
			Label:     s.Label,
			Icon:      s.Icon,
			URL:       s.URL,
			Collapsed: sectionCollapsed(s.ID, opts),
			Items:     make([]ItemView, 0, len(s.Items)),
		}
		for _, it := range s.Items {
			u := it.URL
			if u == "" {
				u = "#"
			}
			sv.Items = append(sv.Items, ItemView{
				ID:     it.ID,
				Label:  it.Label,
				Icon:   it.Icon,
				URL:    u,
				Active: IsActive(it, opts.CurrentPath),
				Badge:  it.Badge,
			})
		}
		m.Sections = append(m.Sections, sv)
	}
	return m
}

func menuClasses(opts Options) string {
	classes := []string{"dashboard-navigation"}
	if opts.Collapsed {
		classes = append(classes, "collapsed")
	}
	if opts.Mobile {
		classes = append(classes, "mobile-navigation")
	}
	return strings.Join(classes, " ")
}

func sectionCollapsed(id string, opts Options) bool {
	if c, ok := opts.CollapsedSections[id]; ok {
		return c
	}
	return opts.UserCollapsed.Has(id)
}

func userMenu(user domain.User) UserMenu {
	page := domain.UserPage(user.ID())
	return UserMenu{
		Name:   user.Name(),
		Avatar: "userAvatar",
		Links: []MenuLink{
			{ID: "profile", Label: "dashboard-nav-profile", URL: page},
			{ID: "preferences", Label: "preferences", URL: "/wiki/Special:Preferences"},
			{ID: "logout", Label: "logout", URL: "/wiki/Special:UserLogout"},
		},
	}
}
