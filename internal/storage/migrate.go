/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	applog "godashboard/internal/log"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

// SchemaVersion is the newest embedded migration.
const SchemaVersion = 2

// Migrate applies all pending up migrations. It is a no-op when the schema is current.
func (db *DB) Migrate(ctx context.Context) error {
	l := applog.WithOperation(applog.WithComponent("storage"), "migrate").With(slog.String("dialect", db.Dialect))
	m, done, err := db.migrator(ctx)
	if err != nil {
		l.Error("prepare migrations failed", slog.Any("err", err))
		return err
	}
	defer done()

	err = m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		l.Debug("schema up to date")
		return nil
	}
	if err != nil {
		l.Error("apply migrations failed", slog.Any("err", err))
		return fmt.Errorf("migrate up: %w", err)
	}
	v, _, _ := m.Version()
	l.Info("schema migrated", slog.Uint64("version", uint64(v)))
	return nil
}

// Version reports the applied schema version and whether the last migration left it dirty.
// A fresh database reports 0.
func (db *DB) Version(ctx context.Context) (uint, bool, error) {
	m, done, err := db.migrator(ctx)
	if err != nil {
		return 0, false, err
	}
	defer done()
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}

// migrator builds a migrate instance over the embedded files for the dialect.
// Postgres gets a dedicated pool because the driver pins a connection until closed.
func (db *DB) migrator(ctx context.Context) (*migrate.Migrate, func(), error) {
	src, err := iofs.New(migrationsFS, "migrations/"+db.Dialect)
	if err != nil {
		return nil, nil, fmt.Errorf("load migrations: %w", err)
	}
	switch db.Dialect {
	case DialectSQLite:
		drv, err := migratesqlite.WithInstance(db.DB, &migratesqlite.Config{})
		if err != nil {
			return nil, nil, fmt.Errorf("migrate driver: %w", err)
		}
		m, err := migrate.NewWithInstance("iofs", src, "sqlite", drv)
		if err != nil {
			return nil, nil, fmt.Errorf("migrate init: %w", err)
		}
		// Closing m would close the shared *sql.DB; only release the source.
		return m, func() { _ = src.Close() }, nil
	case DialectPostgres:
		pool, err := sql.Open("pgx", db.dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("open migration pool: %w", err)
		}
		if err := pool.PingContext(ctx); err != nil {
			_ = pool.Close()
			return nil, nil, fmt.Errorf("ping migration pool: %w", err)
		}
		drv, err := migratepgx.WithInstance(pool, &migratepgx.Config{})
		if err != nil {
			_ = pool.Close()
			return nil, nil, fmt.Errorf("migrate driver: %w", err)
		}
		m, err := migrate.NewWithInstance("iofs", src, "pgx5", drv)
		if err != nil {
			_ = pool.Close()
			return nil, nil, fmt.Errorf("migrate init: %w", err)
		}
		return m, func() { _, _ = m.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unsupported dialect %q", db.Dialect)
	}
}
