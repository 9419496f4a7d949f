/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package dashboard

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"godashboard/internal/activity"
	"godashboard/internal/config"
	"godashboard/internal/domain"
	"godashboard/internal/widget"
)

// Built-in widget ids.
const (
	WidgetWelcome        = "welcome"
	WidgetRecentActivity = "recent-activity"
	WidgetQuickActions   = "quick-actions"
	WidgetNotifications  = "notifications"
	WidgetQuickLinks     = "quick-links"
)

// activityWindow is the span counted by the welcome widget's recent edits stat.
const activityWindow = 7 * 24 * time.Hour

// Builtins carries what the built-in widgets read from.
type Builtins struct {
	Activity   activity.Source
	QuickLinks []config.LinkConfig
	FeedLimit  int
	Now        func() time.Time
}

// Link is a labelled URL shown by a widget.
type Link struct {
	ID    string `json:"id,omitempty"`
	Label string `json:"label"`
	URL   string `json:"url"`
	Icon  string `json:"icon,omitempty"`
}

// Stats are the account figures on the welcome banner.
type Stats struct {
	Edits          int `json:"edits"`
	DaysRegistered int `json:"daysRegistered"`
	RecentEdits    int `json:"recentEdits"`
}

type welcomeContent struct {
	Greeting string `json:"greeting"`
	Name     string `json:"name"`
	Stats    Stats  `json:"stats"`
	Links    []Link `json:"links"`
}

type activityContent struct {
	Entries     []activity.Entry `json:"entries"`
	Suggestions []Link           `json:"suggestions,omitempty"`
}

type notificationsContent struct {
	Items   []any  `json:"items"`
	Message string `json:"message"`
}

type quickAction struct {
	Link
	permission string
}

var quickActions = []quickAction{
	{Link{ID: "create-page", Label: "dashboard-action-create-page", URL: "/wiki/Special:CreatePage", Icon: "add"}, "edit"},
	{Link{ID: "upload-file", Label: "dashboard-action-upload-file", URL: "/wiki/Special:Upload", Icon: "upload"}, "upload"},
	{Link{ID: "recent-changes", Label: "dashboard-action-recent-changes", URL: "/wiki/Special:RecentChanges", Icon: "history"}, "viewrecentchanges"},
	{Link{ID: "watchlist", Label: "dashboard-action-watchlist", URL: "/wiki/Special:Watchlist", Icon: "watchlist"}, "viewmywatchlist"},
	{Link{ID: "my-contributions", Label: "dashboard-action-my-contributions", URL: "/wiki/Special:Contributions/", Icon: "userContributions"}, "read"},
}

var emptyFeedSuggestions = []Link{
	{ID: "create-page", Label: "dashboard-suggest-create-page", URL: "/wiki/Special:CreatePage", Icon: "add"},
	{ID: "random-page", Label: "dashboard-suggest-random-page", URL: "/wiki/Special:Random", Icon: "die"},
}

// Register adds the built-in widgets to reg in their canonical order.
func (b Builtins) Register(reg *widget.Registry) error {
	if b.Now == nil {
		b.Now = time.Now
	}
	defs := []widget.Definition{
		{
			ID: WidgetWelcome, Type: "welcome", DefaultRegion: domain.RegionMain,
			Hideable: false, Icon: "userAvatar", Modules: []string{"dashboard.widget.welcome"},
			Provider: widget.ProviderFunc(b.welcome),
		},
		{
			ID: WidgetRecentActivity, Type: "activity", DefaultRegion: domain.RegionMain,
			Hideable: true, Icon: "history", Modules: []string{"dashboard.widget.activity"},
			Provider: widget.ProviderFunc(b.recentActivity),
		},
		{
			ID: WidgetQuickActions, Type: "actions", DefaultRegion: domain.RegionSidebar,
			Hideable: true, Icon: "lightning",
			Provider: widget.ProviderFunc(b.quickActions),
		},
		{
			ID: WidgetNotifications, Type: "notifications", DefaultRegion: domain.RegionSidebar,
			Hideable: true, Icon: "bell",
			Provider: widget.ProviderFunc(b.notifications),
		},
		{
			ID: WidgetQuickLinks, Type: "links", DefaultRegion: domain.RegionSidebar,
			Hideable: true, Icon: "link",
			Provider: widget.ProviderFunc(b.quickLinks),
		},
	}
	for _, d := range defs {
		d.DescriptionKey = "dashboard-widget-" + d.ID + "-desc"
		if err := reg.Register(d); err != nil {
			return fmt.Errorf("register builtin %s: %w", d.ID, err)
		}
	}
	return nil
}

func (b Builtins) welcome(ctx context.Context, user domain.User) (any, error) {
	now := b.Now()
	c := welcomeContent{
		Greeting: "dashboard-welcome-greeting",
		Name:     user.Name(),
		Links:    b.links(user),
	}
	if p, ok := user.(domain.Profile); ok {
		c.Stats.Edits = p.EditCount()
		c.Stats.DaysRegistered = DaysSince(now, p.RegisteredAt())
	}
	if b.Activity != nil {
		n, err := b.Activity.CountSince(ctx, user.ID(), now.Add(-activityWindow))
		if err != nil {
			return nil, fmt.Errorf("count recent edits: %w", err)
		}
		c.Stats.RecentEdits = n
	}
	return c, nil
}

func (b Builtins) recentActivity(ctx context.Context, user domain.User) (any, error) {
	c := activityContent{Entries: []activity.Entry{}}
	if b.Activity != nil {
		entries, err := activity.Feed(ctx, b.Activity, user.ID(), b.FeedLimit, b.Now())
		if err != nil {
			return nil, fmt.Errorf("load feed: %w", err)
		}
		c.Entries = entries
	}
	if len(c.Entries) == 0 {
		c.Suggestions = emptyFeedSuggestions
	}
	return c, nil
}

func (b Builtins) quickActions(_ context.Context, user domain.User) (any, error) {
	out := make([]Link, 0, len(quickActions))
	for _, a := range quickActions {
		if !user.IsAllowed(a.permission) {
			continue
		}
		l := a.Link
		if a.ID == "my-contributions" {
			l.URL += url.PathEscape(user.ID())
		}
		out = append(out, l)
	}
	return map[string]any{"actions": out}, nil
}

func (b Builtins) notifications(context.Context, domain.User) (any, error) {
	return notificationsContent{Items: []any{}, Message: "dashboard-no-notifications"}, nil
}

func (b Builtins) quickLinks(_ context.Context, user domain.User) (any, error) {
	return map[string]any{"links": b.links(user)}, nil
}

func (b Builtins) links(user domain.User) []Link {
	out := make([]Link, 0, len(b.QuickLinks))
	for _, ql := range b.QuickLinks {
		if ql.Permission != "" && !user.IsAllowed(ql.Permission) {
			continue
		}
		out = append(out, Link{Label: ql.Label, URL: ql.URL, Icon: ql.Icon})
	}
	return out
}

// DaysSince counts whole days from since to now; zero for an unknown or future time.
func DaysSince(now, since time.Time) int {
	if since.IsZero() || since.After(now) {
		return 0
	}
	return int(now.Sub(since) / (24 * time.Hour))
}
