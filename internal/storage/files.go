/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// BackupsDirName holds timestamped copies of files replaced by WriteFileAtomic.
const BackupsDirName = "backups"

// MaxBackups is the number of backups kept per file.
const MaxBackups = 5

// WriteFileAtomic replaces path with data transactionally: the previous
// content is copied to <dir>/backups/<name>.<stamp>.bak, the new content is
// written to a temp file in the same directory, synced and renamed over path.
func WriteFileAtomic(path string, data []byte) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("path is required")
	}
	dir := filepath.Dir(path)
	name := filepath.Base(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ensure dir: %w", err)
	}

	if _, statErr := os.Stat(path); statErr == nil {
		bdir := filepath.Join(dir, BackupsDirName)
		stamp := time.Now().Format("20060102-150405.000000000")
		bpath := filepath.Join(bdir, fmt.Sprintf("%s.%s.bak", name, stamp))
		if cerr := copyFile(path, bpath); cerr != nil {
			return fmt.Errorf("backup %s: %w", name, cerr)
		}
		pruneBackups(bdir, name, MaxBackups)
	}

	temp := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d-%d", name, os.Getpid(), rand.Int()))
	if werr := writeFileSync(temp, data); werr != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("write temp %s: %w", name, werr)
	}
	if rerr := os.Rename(temp, path); rerr != nil {
		// Windows refuses to rename over an existing file.
		_ = os.Remove(path)
		if rerr = os.Rename(temp, path); rerr != nil {
			_ = os.Remove(temp)
			return fmt.Errorf("replace %s: %w", name, rerr)
		}
	}
	return nil
}

// ErrInvalidContent is reported when a file exists but neither it nor any
// backup passes validation.
var ErrInvalidContent = errors.New("content failed validation")

// ReadFileWithFallback reads path and checks it with valid. When the file is
// unreadable or invalid, the newest backup that passes valid is returned instead.
// fromBackup reports which one was used. A file that never existed is
// reported as os.ErrNotExist without consulting backups.
func ReadFileWithFallback(path string, valid func([]byte) bool) (data []byte, fromBackup bool, err error) {
	b, rerr := os.ReadFile(path)
	if rerr == nil && (valid == nil || valid(b)) {
		return b, false, nil
	}
	candidates, berr := listBackups(filepath.Join(filepath.Dir(path), BackupsDirName), filepath.Base(path))
	if errors.Is(rerr, os.ErrNotExist) && len(candidates) == 0 {
		return nil, false, rerr
	}
	for i := len(candidates) - 1; i >= 0; i-- {
		cb, cerr := os.ReadFile(candidates[i])
		if cerr == nil && (valid == nil || valid(cb)) {
			return cb, true, nil
		}
	}
	if rerr == nil {
		rerr = ErrInvalidContent
	}
	if berr != nil {
		return nil, false, fmt.Errorf("read %s: %w; backup attempt: %v", filepath.Base(path), rerr, berr)
	}
	return nil, false, fmt.Errorf("read %s: %w; no usable backup", filepath.Base(path), rerr)
}

func listBackups(bdir, name string) ([]string, error) {
	ents, err := os.ReadDir(bdir)
	if err != nil {
		return nil, fmt.Errorf("read backups dir: %w", err)
	}
	var candidates []string
	for _, e := range ents {
		n := e.Name()
		if strings.HasPrefix(n, name+".") && strings.HasSuffix(n, ".bak") {
			candidates = append(candidates, filepath.Join(bdir, n))
		}
	}
	sort.Strings(candidates) // timestamp in name yields lexicographic order
	return candidates, nil
}

func pruneBackups(bdir, name string, keep int) {
	candidates, err := listBackups(bdir, name)
	if err != nil || len(candidates) <= keep {
		return
	}
	for _, p := range candidates[:len(candidates)-keep] {
		_ = os.Remove(p)
	}
}

// writeFileSync writes data to a file and flushes it to disk.
func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

// copyFile copies a file from src to dst (overwrites dst if exists).
func copyFile(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sf.Close(); err == nil {
			err = cerr
		}
	}()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := df.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return err
	}
	return df.Sync()
}
