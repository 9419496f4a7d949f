/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package navigation

import (
	"fmt"
	"regexp"
	"strings"

	"godashboard/internal/config"
	"godashboard/internal/domain"
)

// DefaultSections is the menu every installation starts with.
func DefaultSections() []Section {
	return []Section{
		{
			ID: "dashboard", Label: "dashboard-nav-dashboard", Icon: "dashboard",
			Items: []Item{
				{ID: "overview", Label: "dashboard-nav-overview", Icon: "home", URL: "/wiki/Special:Dashboard", Permission: domain.RightView, Order: 10},
				{ID: "activity", Label: "dashboard-nav-activity", Icon: "recentChanges", URL: "/wiki/Special:Dashboard/activity", Permission: domain.RightView, Order: 20},
			},
		},
		{
			ID: "content", Label: "dashboard-nav-content", Icon: "article",
			Items: []Item{
				{ID: "create-page", Label: "dashboard-nav-createpage", Icon: "add", URL: "/wiki/Special:CreatePage", Permission: "createpage", Order: 10},
				{ID: "create-blog", Label: "dashboard-nav-createblog", Icon: "article", URL: "/wiki/Special:CreateBlogPost", Permission: "createpage", Order: 20},
				{ID: "upload", Label: "dashboard-nav-upload", Icon: "upload", URL: "/wiki/Special:Upload", Permission: "upload", Order: 30},
				{ID: "categories", Label: "dashboard-nav-categories", Icon: "folder", URL: "/wiki/Special:Categories", Permission: "read", Order: 40},
			},
		},
		{
			ID: "users", Label: "dashboard-nav-users", Icon: "userGroup", Permission: "userrights",
			Items: []Item{
				{ID: "user-list", Label: "dashboard-nav-userlist", Icon: "userGroup", URL: "/wiki/Special:ListUsers", Permission: "userrights", Order: 10},
				{ID: "user-rights", Label: "dashboard-nav-userrights", Icon: "userRights", URL: "/wiki/Special:UserRights", Permission: "userrights", Order: 20},
			},
		},
		{
			ID: "site", Label: "dashboard-nav-site", Icon: "settings", Permission: "siteadmin",
			Items: []Item{
				{ID: "site-notice", Label: "dashboard-nav-sitenotice", Icon: "notice", URL: "/wiki/MediaWiki:Sitenotice", Permission: "siteadmin", Order: 10},
				{ID: "announcements", Label: "dashboard-nav-announcements", Icon: "announce", URL: "/wiki/Special:Announcements", Permission: "siteadmin", Order: 20},
			},
		},
	}
}

// NewDefaultTree returns a tree holding DefaultSections.
func NewDefaultTree() (*Tree, error) {
	t := NewTree()
	for _, s := range DefaultSections() {
		if err := t.RegisterSection(s); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// ApplyExtensions removes, then adds, the navigation declared in ext.
// Removing something that is absent is not an error.
func (t *Tree) ApplyExtensions(ext config.Extensions) error {
	for _, id := range ext.RemoveSections {
		t.RemoveSection(id)
	}
	for _, ref := range ext.RemoveItems {
		section, item, ok := strings.Cut(ref, "/")
		if !ok {
			return fmt.Errorf("remove item %q: want section/item", ref)
		}
		t.RemoveItem(section, item)
	}
	for _, spec := range ext.Sections {
		s := Section{ID: spec.ID, Label: spec.Label, Icon: spec.Icon, Permission: spec.Permission, URL: spec.URL}
		for _, is := range spec.Items {
			it, err := itemFromSpec(is)
			if err != nil {
				return err
			}
			s.Items = append(s.Items, it)
		}
		if err := t.RegisterSection(s); err != nil {
			return err
		}
	}
	for _, is := range ext.Items {
		it, err := itemFromSpec(is)
		if err != nil {
			return err
		}
		if err := t.RegisterItem(is.Section, it); err != nil {
			return err
		}
	}
	return nil
}

func itemFromSpec(s config.ItemSpec) (Item, error) {
	it := Item{ID: s.ID, Label: s.Label, Icon: s.Icon, URL: s.URL, Permission: s.Permission, Order: s.Order, Badge: s.Badge}
	if s.ActivePattern != "" {
		re, err := regexp.Compile(s.ActivePattern)
		if err != nil {
			return Item{}, fmt.Errorf("navigation item %q: active pattern: %w", s.ID, err)
		}
		it.ActivePattern = re
	}
	return it, nil
}
