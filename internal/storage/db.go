/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package storage opens the SQL databases backing the preference store and
// the activity feed, applies the embedded schema migrations and provides the
// crash-safe file helpers used by the file based preference store.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	applog "godashboard/internal/log"

	// Postgres driver registered as "pgx".
	_ "github.com/jackc/pgx/v5/stdlib"
	// Pure-Go SQLite driver (CGO-free) registered as "sqlite".
	_ "modernc.org/sqlite"
)

// Supported SQL dialects.
const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

// SQLiteFileName is the database file created inside the data directory.
const SQLiteFileName = "dashboard.sqlite"

// DB is a *sql.DB that remembers its dialect.
type DB struct {
	*sql.DB
	Dialect string
	dsn     string
}

// SQLitePath returns the database file location inside dir.
func SQLitePath(dir string) string { return filepath.Join(dir, SQLiteFileName) }

// Open connects to the database and verifies the connection.
// For sqlite, dsn is a file path; the parent directory is created and WAL is enabled.
// Migrations are not applied; call Migrate.
func Open(ctx context.Context, dialect, dsn string) (*DB, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "open").With(slog.String("dialect", dialect))
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("dsn is required")
	}
	switch dialect {
	case DialectSQLite:
		return openSQLite(ctx, l, dsn)
	case DialectPostgres:
		db, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := db.PingContext(pctx); err != nil {
			_ = db.Close()
			l.Error("ping postgres failed", slog.Any("err", err))
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		l.Info("database ready")
		return &DB{DB: db, Dialect: DialectPostgres, dsn: dsn}, nil
	default:
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}
}

func openSQLite(ctx context.Context, l *slog.Logger, path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		l.Error("create data dir failed", slog.Any("err", err))
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	// URI form with shared cache and a busy timeout; forward slashes for SQLite URIs.
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ectx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(ectx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		l.Error("enable WAL failed", slog.Any("err", err))
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	l.Info("database ready", slog.String("path", path))
	return &DB{DB: db, Dialect: DialectSQLite, dsn: path}, nil
}

// Rebind rewrites ? placeholders to $n for postgres.
// Queries must not contain literal question marks.
func (db *DB) Rebind(query string) string {
	if db.Dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
