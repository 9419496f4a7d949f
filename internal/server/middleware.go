/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package server

import (
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"godashboard/internal/crash"
	"godashboard/internal/domain"
	applog "godashboard/internal/log"
)

// Header names read or written by the middleware.
const (
	HeaderRequestID = "X-Request-ID"
	HeaderCSRF      = "X-CSRF-Token"
)

type userHandler func(w http.ResponseWriter, r *http.Request, user domain.User)

// requestID tags the request context with an id, honoring a sane inbound header.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderRequestID)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, id)
		next.ServeHTTP(w, r.WithContext(applog.WithRequestID(r.Context(), id)))
	})
}

// recoverer turns handler panics into a crash report and a 500.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			crash.Report(r.Context(), s.deps.CrashDir, rec, debug.Stack(), map[string]string{
				"Request":   r.Method + " " + r.URL.Path,
				"RequestID": applog.RequestID(r.Context()),
			})
			writeError(w, http.StatusInternalServerError, CodeInternal, "internal error")
		}()
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	if sr.status == 0 {
		sr.status = code
	}
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	return sr.ResponseWriter.Write(b)
}

// instrument records request metrics and a debug access log line. The
// route pattern is set by the mux on the same request value.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		d := time.Since(start)
		if s.deps.Metrics != nil {
			s.deps.Metrics.RecordRequest(r.Method, route, rec.status, d)
		}
		s.log.DebugContext(r.Context(), "request",
			slog.String("method", r.Method), slog.String("route", route),
			slog.Int("status", rec.status), slog.Duration("took", d), slog.String("ip", clientIP(r)))
	})
}

// authenticate resolves the bearer token to a directory account.
func (s *Server) authenticate(r *http.Request) (domain.User, error) {
	h := r.Header.Get("Authorization")
	const prefix = "bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return nil, fmt.Errorf("missing bearer token")
	}
	claims, err := s.deps.Tokens.Verify(strings.TrimSpace(h[len(prefix):]))
	if err != nil {
		return nil, err
	}
	acc, ok := s.deps.Directory.Lookup(claims.Subject)
	if !ok {
		return nil, fmt.Errorf("unknown user %q", claims.Subject)
	}
	return acc, nil
}

// withUser requires an authenticated user.
func (s *Server) withUser(next userHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := s.authenticate(r)
		if err != nil {
			s.log.DebugContext(r.Context(), "authentication failed", slog.Any("err", err))
			writeError(w, http.StatusForbidden, CodeNotLoggedIn, "you must be logged in to use the dashboard")
			return
		}
		r = r.WithContext(applog.WithUserID(r.Context(), user.ID()))
		next(w, r, user)
	}
}

// withRead additionally requires the view right.
func (s *Server) withRead(next userHandler) http.HandlerFunc {
	return s.withUser(func(w http.ResponseWriter, r *http.Request, user domain.User) {
		if !user.IsAllowed(domain.RightView) {
			writeError(w, http.StatusForbidden, CodePermissionDenied, "you do not have permission to view the dashboard")
			return
		}
		next(w, r, user)
	})
}

// withWrite requires a valid CSRF token and the customize right, and
// applies the per-user write rate limit.
func (s *Server) withWrite(next userHandler) http.HandlerFunc {
	return s.withUser(func(w http.ResponseWriter, r *http.Request, user domain.User) {
		if !s.deps.CSRF.Valid(user.ID(), r.Header.Get(HeaderCSRF)) {
			writeError(w, http.StatusForbidden, CodeBadToken, "invalid or missing CSRF token")
			return
		}
		if !user.IsAllowed(domain.RightCustomize) {
			writeError(w, http.StatusForbidden, CodePermissionDenied, "you do not have permission to customize the dashboard")
			return
		}
		if s.limiter != nil {
			if retry, ok := s.limiter.allow(user.ID()); !ok {
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				writeError(w, http.StatusTooManyRequests, CodeRateLimited, "too many changes, try again later")
				return
			}
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		next(w, r, user)
	})
}

// userLimiter holds a per-user token bucket and the last time it was used.
type userLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiterStore holds per-user limiters for the write endpoints.
type rateLimiterStore struct {
	mu       sync.Mutex
	limiters map[string]*userLimiter
	r        rate.Limit
	b        int
	stopCh   chan struct{}
	stopOnce sync.Once
}

func newRateLimiterStore(requestsPerMinute int) *rateLimiterStore {
	s := &rateLimiterStore{
		limiters: make(map[string]*userLimiter),
		r:        rate.Limit(float64(requestsPerMinute) / 60.0),
		b:        requestsPerMinute,
		stopCh:   make(chan struct{}),
	}
	go s.cleanup()
	return s
}

func (s *rateLimiterStore) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.mu.Lock()
			for k, l := range s.limiters {
				if time.Since(l.lastSeen) > 10*time.Minute {
					delete(s.limiters, k)
				}
			}
			s.mu.Unlock()
		case <-s.stopCh:
			return
		}
	}
}

func (s *rateLimiterStore) stop() { s.stopOnce.Do(func() { close(s.stopCh) }) }

func (s *rateLimiterStore) get(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.limiters[key]
	if !ok {
		l = &userLimiter{limiter: rate.NewLimiter(s.r, s.b)}
		s.limiters[key] = l
	}
	l.lastSeen = time.Now()
	return l.limiter
}

// allow takes a token for key, or reports the seconds until one is available.
func (s *rateLimiterStore) allow(key string) (int, bool) {
	reservation := s.get(key).Reserve()
	d := reservation.Delay()
	if d == 0 {
		return 0, true
	}
	reservation.Cancel()
	retry := int(math.Ceil(d.Seconds()))
	if retry < 1 {
		retry = 1
	}
	return retry, false
}

// clientIP extracts the client address for logs, preferring proxy headers.
func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
