/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func isJSON(b []byte) bool { return json.Valid(b) }

func TestWriteFileAtomic_CreatesBackupOfPrevious(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "alice.json")

	require.NoError(t, WriteFileAtomic(path, []byte(`{"v":1}`)))
	require.NoError(t, WriteFileAtomic(path, []byte(`{"v":2}`)))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.JSONEq(t, `{"v":2}`, string(b))

	backups, err := listBackups(filepath.Join(dir, BackupsDirName), "alice.json")
	require.NoError(t, err)
	require.Len(t, backups, 1)
	prev, err := os.ReadFile(backups[0])
	require.NoError(t, err)
	require.JSONEq(t, `{"v":1}`, string(prev))

	// no temp files left behind
	ents, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range ents {
		require.False(t, strings.HasPrefix(e.Name(), ".alice.json.tmp"), "leftover temp file %s", e.Name())
	}
}

func TestWriteFileAtomic_PrunesOldBackups(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bob.json")
	for i := 0; i < MaxBackups+4; i++ {
		require.NoError(t, WriteFileAtomic(path, []byte(`{}`)))
	}
	backups, err := listBackups(filepath.Join(dir, BackupsDirName), "bob.json")
	require.NoError(t, err)
	require.LessOrEqual(t, len(backups), MaxBackups)
}

func TestReadFileWithFallback_UsesLatestValidBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "carol.json")
	require.NoError(t, WriteFileAtomic(path, []byte(`{"v":1}`)))
	require.NoError(t, WriteFileAtomic(path, []byte(`{"v":2}`)))
	// corrupt the live file in place
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	b, fromBackup, err := ReadFileWithFallback(path, isJSON)
	require.NoError(t, err)
	require.True(t, fromBackup)
	require.JSONEq(t, `{"v":1}`, string(b))
}

func TestReadFileWithFallback_Missing(t *testing.T) {
	_, _, err := ReadFileWithFallback(filepath.Join(t.TempDir(), "none.json"), isJSON)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestReadFileWithFallback_NoUsableBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dave.json")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o644))
	_, _, err := ReadFileWithFallback(path, isJSON)
	require.ErrorIs(t, err, ErrInvalidContent)
}
