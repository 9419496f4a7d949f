/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package prefstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"godashboard/internal/storage"
)

// SQL stores preferences in the user_preferences table.
type SQL struct {
	db *storage.DB
}

// NewSQL expects db to be migrated.
func NewSQL(db *storage.DB) *SQL { return &SQL{db: db} }

func (s *SQL) Get(ctx context.Context, userID, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx,
		s.db.Rebind(`SELECT value FROM user_preferences WHERE user_id = ? AND pref_key = ?`),
		userID, key).Scan(&v)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", false, nil
	case err != nil:
		return "", false, err
	}
	return v, true, nil
}

func (s *SQL) Set(ctx context.Context, userID, key, value string) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`INSERT INTO user_preferences (user_id, pref_key, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, pref_key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`),
		userID, key, value, time.Now().UnixMilli())
	return err
}
