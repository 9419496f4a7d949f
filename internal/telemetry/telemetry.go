/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package telemetry provides a small, opt-in event sender for anonymous
// dashboard usage events and optional crash report uploads.
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	applog "godashboard/internal/log"
	"godashboard/internal/version"
)

// Event names sent by the dashboard API.
const (
	EventLayoutSaved  = "layout_saved"
	EventWidgetHidden = "widget_hidden"
	EventWidgetShown  = "widget_shown"
)

// Config holds runtime configuration for telemetry and crash uploads.
// All telemetry is opt-in and disabled by default.
//
// Environment variables (read by FromEnv):
//   - GDB_TELEMETRY_OPT_IN: "1", "true", "yes" to enable events
//   - GDB_TELEMETRY_URL: URL JSON events are POSTed to
//   - GDB_CRASH_UPLOAD_URL: URL crash reports are POSTed to
//   - GDB_TELEMETRY_TIMEOUT_MS: request timeout, default 1500ms
//   - GDB_TELEMETRY_DEBUG: if set, logs send attempts
//
// Without URLs events are dropped even when opted in.
type Config struct {
	OptIn        bool
	EventsURL    string
	CrashURL     string
	Timeout      time.Duration
	DebugLogging bool
}

func FromEnv() Config {
	cfg := Config{
		OptIn:        parseBool(os.Getenv("GDB_TELEMETRY_OPT_IN")),
		EventsURL:    strings.TrimSpace(os.Getenv("GDB_TELEMETRY_URL")),
		CrashURL:     strings.TrimSpace(os.Getenv("GDB_CRASH_UPLOAD_URL")),
		Timeout:      1500 * time.Millisecond,
		DebugLogging: os.Getenv("GDB_TELEMETRY_DEBUG") != "",
	}
	if ms := strings.TrimSpace(os.Getenv("GDB_TELEMETRY_TIMEOUT_MS")); ms != "" {
		if v, err := time.ParseDuration(ms + "ms"); err == nil {
			cfg.Timeout = v
		}
	}
	return cfg
}

func parseBool(v string) bool {
	s := strings.ToLower(strings.TrimSpace(v))
	return s == "1" || s == "true" || s == "yes" || s == "on"
}

// identifying keys never leave the process.
var droppedProps = map[string]struct{}{"user": {}, "user_id": {}, "name": {}, "ip": {}}

// Client is an async sender with a bounded queue. Events are dropped when
// the queue is full or the endpoint fails.
type Client struct {
	cfg      Config
	log      *slog.Logger
	cli      *http.Client
	instance string
	q        chan map[string]any
	once     sync.Once
	closed   chan struct{}
	done     chan struct{}
}

var (
	defaultMu     sync.RWMutex
	defaultClient *Client
)

// SetDefault installs c as the package level client used by UploadCrash.
func SetDefault(c *Client) {
	defaultMu.Lock()
	defaultClient = c
	defaultMu.Unlock()
}

// Default returns the installed client, creating one from env on first use.
func Default() *Client {
	defaultMu.RLock()
	c := defaultClient
	defaultMu.RUnlock()
	if c != nil {
		return c
	}
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultClient == nil {
		defaultClient = New(FromEnv())
	}
	return defaultClient
}

// New constructs a client and starts its sender.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 1500 * time.Millisecond
	}
	c := &Client{
		cfg:      cfg,
		log:      applog.WithComponent("telemetry"),
		cli:      &http.Client{Timeout: cfg.Timeout},
		instance: uuid.NewString(),
		q:        make(chan map[string]any, 64),
		closed:   make(chan struct{}),
		done:     make(chan struct{}),
	}
	go c.loop()
	return c
}

// Enabled reports whether events are opted in and an endpoint is configured.
func (c *Client) Enabled() bool { return c != nil && c.cfg.OptIn && c.cfg.EventsURL != "" }

// Event queues a named event. Identifying properties are removed.
func (c *Client) Event(name string, props map[string]any) {
	if !c.Enabled() || name == "" {
		return
	}
	payload := map[string]any{
		"name":     name,
		"ts":       time.Now().UTC().Format(time.RFC3339Nano),
		"version":  version.String(),
		"os":       runtime.GOOS,
		"arch":     runtime.GOARCH,
		"instance": c.instance,
	}
	for k, v := range props {
		if _, drop := droppedProps[k]; drop {
			continue
		}
		if _, reserved := payload[k]; reserved {
			continue
		}
		payload[k] = v
	}
	select {
	case c.q <- payload:
	default:
	}
}

// Flush waits until the queue drains, ctx ends or half a second passes.
func (c *Client) Flush(ctx context.Context) {
	deadline := time.NewTimer(500 * time.Millisecond)
	defer deadline.Stop()
	tick := time.NewTicker(25 * time.Millisecond)
	defer tick.Stop()
	for len(c.q) > 0 {
		select {
		case <-ctx.Done():
			return
		case <-deadline.C:
			return
		case <-tick.C:
		}
	}
}

// Close stops the sender. Queued events are discarded.
func (c *Client) Close() {
	c.once.Do(func() { close(c.closed) })
	<-c.done
}

func (c *Client) loop() {
	defer close(c.done)
	for {
		select {
		case <-c.closed:
			return
		case item := <-c.q:
			c.post(c.cfg.EventsURL, "application/json", mustJSON(item), "event")
		}
	}
}

func mustJSON(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}

func (c *Client) post(url, contentType string, body []byte, what string) {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", contentType)
	resp, err := c.cli.Do(req)
	if err != nil {
		if c.cfg.DebugLogging {
			c.log.Debug("telemetry send failed", slog.String("kind", what), slog.Any("err", err))
		}
		return
	}
	_ = resp.Body.Close()
	if c.cfg.DebugLogging {
		c.log.Debug("telemetry sent", slog.String("kind", what), slog.Int("status", resp.StatusCode))
	}
}

// UploadCrash posts a serialized crash report to the crash URL when opted in.
func (c *Client) UploadCrash(report []byte) {
	if c == nil || !c.cfg.OptIn || c.cfg.CrashURL == "" {
		return
	}
	b := append([]byte(nil), report...)
	go c.post(c.cfg.CrashURL, "text/plain; charset=utf-8", b, "crash")
}

// UploadCrash uses the default client.
func UploadCrash(report []byte) { Default().UploadCrash(report) }
