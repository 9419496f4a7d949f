/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package client is a small HTTP client for the dashboard API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"godashboard/internal/dashboard"
	"godashboard/internal/domain"
	"godashboard/internal/navigation"
	"godashboard/internal/widget"
)

// APIError is a failure reported in the error envelope.
type APIError struct {
	Status  int
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d %s: %s", e.Status, e.Code, e.Message)
}

// Client calls the dashboard API as one user.
type Client struct {
	BaseURL string
	Token   string // bearer token
	client  *http.Client
	csrf    string
}

// NewClient creates a client. baseURL may include a trailing slash; it will be normalized.
func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, dest any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	if method != http.MethodGet && c.csrf != "" {
		req.Header.Set("X-CSRF-Token", c.csrf)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var env struct {
			Error *APIError `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&env); err != nil || env.Error == nil {
			return fmt.Errorf("server %s %s: %s", method, path, resp.Status)
		}
		env.Error.Status = resp.StatusCode
		return env.Error
	}
	if dest == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}

// FetchToken obtains a CSRF token and keeps it for later writes.
func (c *Client) FetchToken(ctx context.Context) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/dashboard/token", nil, &out); err != nil {
		return "", err
	}
	c.csrf = out.Token
	return out.Token, nil
}

// SetCSRF overrides the CSRF token sent with writes.
func (c *Client) SetCSRF(token string) { c.csrf = token }

// Widgets lists the widgets the user can see.
func (c *Client) Widgets(ctx context.Context) ([]widget.Summary, error) {
	var out struct {
		Widgets []widget.Summary `json:"widgets"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/dashboard/widgets", nil, &out); err != nil {
		return nil, err
	}
	return out.Widgets, nil
}

// Dashboard is the decoded render model. Widget content is left raw.
type Dashboard struct {
	User    string                     `json:"user"`
	Header  dashboard.Header           `json:"header"`
	Layout  domain.Layout              `json:"layout"`
	Widgets map[string]json.RawMessage `json:"widgets"`
	Modules []string                   `json:"modules"`
}

// Instance decodes the summary part of one rendered widget.
func (d Dashboard) Instance(id string) (dashboard.Instance, bool) {
	raw, ok := d.Widgets[id]
	if !ok {
		return dashboard.Instance{}, false
	}
	var inst dashboard.Instance
	if err := json.Unmarshal(raw, &inst); err != nil {
		return dashboard.Instance{}, false
	}
	return inst, true
}

// Dashboard fetches the render model; user selects another account when non-empty.
func (c *Client) Dashboard(ctx context.Context, user string) (*Dashboard, error) {
	path := "/api/dashboard"
	if user != "" {
		path += "?user=" + url.QueryEscape(user)
	}
	var out struct {
		Dashboard Dashboard `json:"dashboard"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out.Dashboard, nil
}

// Navigation fetches the menu as seen from currentPath.
func (c *Client) Navigation(ctx context.Context, currentPath string, mobile bool) (*navigation.Menu, error) {
	q := url.Values{}
	if currentPath != "" {
		q.Set("path", currentPath)
	}
	if mobile {
		q.Set("mobile", "1")
	}
	path := "/api/dashboard/navigation"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out struct {
		Navigation navigation.Menu `json:"navigation"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out.Navigation, nil
}

// SaveLayout stores a layout and returns it as accepted.
func (c *Client) SaveLayout(ctx context.Context, l domain.Layout) (domain.Layout, error) {
	var out struct {
		Layout domain.Layout `json:"layout"`
	}
	err := c.doJSON(ctx, http.MethodPost, "/api/dashboard/savelayout", map[string]any{"layout": l}, &out)
	return out.Layout, err
}

// HideWidget hides a widget and returns the hidden set.
func (c *Client) HideWidget(ctx context.Context, id string) ([]string, error) {
	return c.widgetCall(ctx, "/api/dashboard/hidewidget", id)
}

// ShowWidget un-hides a widget and returns the hidden set.
func (c *Client) ShowWidget(ctx context.Context, id string) ([]string, error) {
	return c.widgetCall(ctx, "/api/dashboard/showwidget", id)
}

func (c *Client) widgetCall(ctx context.Context, path, id string) ([]string, error) {
	var out struct {
		Hidden []string `json:"hiddenWidgets"`
	}
	if err := c.doJSON(ctx, http.MethodPost, path, map[string]string{"widget": id}, &out); err != nil {
		return nil, err
	}
	return out.Hidden, nil
}

// SetSectionCollapsed records the collapsed state of a navigation section.
func (c *Client) SetSectionCollapsed(ctx context.Context, section string, collapsed bool) ([]string, error) {
	var out struct {
		Collapsed []string `json:"collapsedSections"`
	}
	body := map[string]any{"section": section, "collapsed": collapsed}
	if err := c.doJSON(ctx, http.MethodPost, "/api/dashboard/navigation/collapse", body, &out); err != nil {
		return nil, err
	}
	return out.Collapsed, nil
}
