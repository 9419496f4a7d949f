/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package server exposes the dashboard over HTTP: the customization API,
// the render and navigation models, and the operational endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"godashboard/internal/auth"
	"godashboard/internal/dashboard"
	applog "godashboard/internal/log"
	"godashboard/internal/metrics"
	"godashboard/internal/navigation"
	"godashboard/internal/telemetry"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Deps are the collaborators the server is built from.
type Deps struct {
	Dashboard  *dashboard.Assembler
	Navigation *navigation.Renderer
	Directory  *auth.Directory
	Tokens     *auth.Tokens
	CSRF       *auth.CSRF
	// Metrics, Telemetry and Ready are optional.
	Metrics    *metrics.Collector
	Telemetry  *telemetry.Client
	Ready      func(context.Context) error
	CrashDir   string
	// WriteRatePerMinute limits customization calls per user. Zero disables limiting.
	WriteRatePerMinute int
}

// Server is the HTTP API.
type Server struct {
	deps    Deps
	log     *slog.Logger
	limiter *rateLimiterStore
	handler http.Handler
}

func New(deps Deps) *Server {
	s := &Server{deps: deps, log: applog.WithComponent("server")}
	if deps.WriteRatePerMinute > 0 {
		s.limiter = newRateLimiterStore(deps.WriteRatePerMinute)
	}
	s.handler = s.routes()
	return s
}

// Handler returns the root handler with middleware applied.
func (s *Server) Handler() http.Handler { return s.handler }

// Close releases background resources.
func (s *Server) Close() {
	if s.limiter != nil {
		s.limiter.stop()
	}
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /version", s.handleVersion)
	if s.deps.Metrics != nil {
		mux.Handle("GET /metrics", s.deps.Metrics.Handler())
	}

	mux.HandleFunc("GET /api/dashboard/token", s.withUser(s.handleToken))
	mux.HandleFunc("GET /api/dashboard", s.withRead(s.handleDashboard))
	mux.HandleFunc("GET /api/dashboard/widgets", s.withRead(s.handleWidgets))
	mux.HandleFunc("GET /api/dashboard/navigation", s.withRead(s.handleNavigation))
	mux.HandleFunc("POST /api/dashboard/savelayout", s.withWrite(s.handleSaveLayout))
	mux.HandleFunc("POST /api/dashboard/hidewidget", s.withWrite(s.handleHideWidget))
	mux.HandleFunc("POST /api/dashboard/showwidget", s.withWrite(s.handleShowWidget))
	mux.HandleFunc("POST /api/dashboard/navigation/collapse", s.withWrite(s.handleCollapse))

	return s.requestID(s.instrument(s.recoverer(mux)))
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string, readTimeout, writeTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: readTimeout,
		WriteTimeout:      writeTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.log.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
