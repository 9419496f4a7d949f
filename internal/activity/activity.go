/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package activity supplies the recent edits shown on the dashboard and the
// helpers that turn them into feed entries.
package activity

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"godashboard/internal/domain"
)

// DefaultLimit is the number of feed entries shown when none is configured.
const DefaultLimit = 10

// Source reads a user's contribution history.
type Source interface {
	// RecentEdits returns at most limit edits, newest first.
	RecentEdits(ctx context.Context, userID string, limit int) ([]domain.RecentEdit, error)
	// CountSince counts the user's edits at or after since.
	CountSince(ctx context.Context, userID string, since time.Time) (int, error)
}

// Recorder appends edits to a history.
type Recorder interface {
	Record(ctx context.Context, e domain.RecentEdit) (domain.RecentEdit, error)
}

// Memory is an in-process history used by tests and the memory driver.
type Memory struct {
	mu     sync.RWMutex
	nextID int64
	edits  []domain.RecentEdit
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Record(_ context.Context, e domain.RecentEdit) (domain.RecentEdit, error) {
	if e.UserID == "" || e.Title == "" {
		return e, fmt.Errorf("activity: user and title are required")
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	if e.Type == "" {
		e.Type = "edit"
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	e.ID = m.nextID
	m.edits = append(m.edits, e)
	return e, nil
}

func (m *Memory) RecentEdits(_ context.Context, userID string, limit int) ([]domain.RecentEdit, error) {
	m.mu.RLock()
	var out []domain.RecentEdit
	for _, e := range m.edits {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	m.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID > out[j].ID
		}
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) CountSince(_ context.Context, userID string, since time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, e := range m.edits {
		if e.UserID == userID && !e.Timestamp.Before(since) {
			n++
		}
	}
	return n, nil
}
