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
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	applog "godashboard/internal/log"
	"godashboard/internal/storage"
)

// File keeps one JSON document per user in dir. Writes are transactional with
// timestamped backups; a corrupt document is recovered from the newest backup.
type File struct {
	dir string
	mu  sync.Mutex
}

// NewFile creates dir if needed.
func NewFile(dir string) (*File, error) {
	if dir == "" {
		return nil, errors.New("prefstore: directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("prefstore: create dir: %w", err)
	}
	return &File{dir: dir}, nil
}

func (s *File) path(userID string) string {
	return filepath.Join(s.dir, url.QueryEscape(userID)+".json")
}

func (s *File) load(userID string) (map[string]string, error) {
	path := s.path(userID)
	l := applog.WithComponent("prefstore")
	b, fromBackup, err := storage.ReadFileWithFallback(path, isPrefsDocument)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return map[string]string{}, nil
	case errors.Is(err, storage.ErrInvalidContent):
		// Unusable and no good backup: start over so the next Set repairs the file.
		l.Warn("preferences unreadable, starting empty", slog.String("path", path))
		return map[string]string{}, nil
	case err != nil:
		return nil, err
	}
	if fromBackup {
		l.Warn("preferences recovered from backup", slog.String("path", path))
	}
	prefs := map[string]string{}
	if err := json.Unmarshal(b, &prefs); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return prefs, nil
}

// isPrefsDocument accepts only a flat JSON object of strings.
func isPrefsDocument(b []byte) bool {
	var m map[string]string
	return json.Unmarshal(b, &m) == nil && m != nil
}

func (s *File) Get(_ context.Context, userID, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefs, err := s.load(userID)
	if err != nil {
		return "", false, err
	}
	v, ok := prefs[key]
	return v, ok, nil
}

func (s *File) Set(_ context.Context, userID, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefs, err := s.load(userID)
	if err != nil {
		return err
	}
	prefs[key] = value
	data, err := json.MarshalIndent(prefs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal preferences: %w", err)
	}
	return storage.WriteFileAtomic(s.path(userID), append(data, '\n'))
}
