/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package activity

import (
	"context"
	"fmt"
	"time"

	"godashboard/internal/domain"
	"godashboard/internal/storage"
)

// SQL reads and writes the recent_edits table.
type SQL struct {
	db *storage.DB
}

// NewSQL expects db to be migrated.
func NewSQL(db *storage.DB) *SQL { return &SQL{db: db} }

func (s *SQL) Record(ctx context.Context, e domain.RecentEdit) (domain.RecentEdit, error) {
	if e.UserID == "" || e.Title == "" {
		return e, fmt.Errorf("activity: user and title are required")
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	if e.Type == "" {
		e.Type = "edit"
	}
	q := s.db.Rebind(`INSERT INTO recent_edits (user_id, title, edit_type, summary, created_at) VALUES (?, ?, ?, ?, ?) RETURNING id`)
	if err := s.db.QueryRowContext(ctx, q, e.UserID, e.Title, e.Type, e.Summary, e.Timestamp.UnixMilli()).Scan(&e.ID); err != nil {
		return e, fmt.Errorf("record edit: %w", err)
	}
	return e, nil
}

func (s *SQL) RecentEdits(ctx context.Context, userID string, limit int) ([]domain.RecentEdit, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	rows, err := s.db.QueryContext(ctx, s.db.Rebind(`SELECT id, user_id, title, edit_type, summary, created_at
		FROM recent_edits WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`), userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent edits: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []domain.RecentEdit
	for rows.Next() {
		var (
			e  domain.RecentEdit
			ms int64
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.Title, &e.Type, &e.Summary, &ms); err != nil {
			return nil, err
		}
		e.Timestamp = time.UnixMilli(ms)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQL) CountSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.db.Rebind(`SELECT COUNT(*) FROM recent_edits WHERE user_id = ? AND created_at >= ?`),
		userID, since.UnixMilli()).Scan(&n)
	return n, err
}
