/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package prefstore provides the per-user string key-value preference store
// the dashboard persists its layout, hidden widgets and collapsed sections in.
// Backends: in-memory, JSON files, SQL (sqlite or postgres) and Redis.
package prefstore

import (
	"context"
	"sync"
	"time"
)

// Store reads and writes opaque per-user string values.
// Get reports ok=false for a key that was never set; err is reserved for
// transport failures of the backend.
type Store interface {
	Get(ctx context.Context, userID, key string) (value string, ok bool, err error)
	Set(ctx context.Context, userID, key, value string) error
}

// Memory is a Store kept in process memory. Used by tests and the memory driver.
type Memory struct {
	mu sync.RWMutex
	m  map[string]map[string]string
}

func NewMemory() *Memory { return &Memory{m: make(map[string]map[string]string)} }

func (s *Memory) Get(_ context.Context, userID, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[userID][key]
	return v, ok, nil
}

func (s *Memory) Set(_ context.Context, userID, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.m[userID]
	if !ok {
		u = make(map[string]string)
		s.m[userID] = u
	}
	u[key] = value
	return nil
}

// Observer receives the outcome of every store call.
type Observer func(op string, d time.Duration, err error)

// WithObserver wraps s so each Get and Set is reported to obs.
func WithObserver(s Store, obs Observer) Store {
	if obs == nil {
		return s
	}
	return &observed{next: s, obs: obs}
}

type observed struct {
	next Store
	obs  Observer
}

func (o *observed) Get(ctx context.Context, userID, key string) (string, bool, error) {
	start := time.Now()
	v, ok, err := o.next.Get(ctx, userID, key)
	o.obs("get", time.Since(start), err)
	return v, ok, err
}

func (o *observed) Set(ctx context.Context, userID, key, value string) error {
	start := time.Now()
	err := o.next.Set(ctx, userID, key, value)
	o.obs("set", time.Since(start), err)
	return err
}
