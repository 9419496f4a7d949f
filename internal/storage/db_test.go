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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openSQLiteForTest(t *testing.T) *DB {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	db, err := Open(ctx, DialectSQLite, SQLitePath(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpenSQLite_MigratesAndIsIdempotent(t *testing.T) {
	db := openSQLiteForTest(t)
	ctx := context.Background()

	v, dirty, err := db.Version(ctx)
	require.NoError(t, err)
	require.Zero(t, v)
	require.False(t, dirty)

	require.NoError(t, db.Migrate(ctx))
	require.NoError(t, db.Migrate(ctx), "second run must be a no-op")

	v, dirty, err = db.Version(ctx)
	require.NoError(t, err)
	require.EqualValues(t, SchemaVersion, v)
	require.False(t, dirty)

	for _, table := range []string{"user_preferences", "recent_edits"} {
		var name string
		err := db.QueryRowContext(ctx, `SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		require.NoError(t, err, "table %s", table)
	}

	var mode string
	require.NoError(t, db.QueryRowContext(ctx, `PRAGMA journal_mode;`).Scan(&mode))
	require.Equal(t, "wal", mode)
}

func TestOpen_Errors(t *testing.T) {
	ctx := context.Background()
	_, err := Open(ctx, DialectSQLite, "  ")
	require.Error(t, err)
	_, err = Open(ctx, "oracle", "x")
	require.Error(t, err)
}

func TestRebind(t *testing.T) {
	pg := &DB{Dialect: DialectPostgres}
	require.Equal(t, "SELECT a FROM t WHERE x=$1 AND y=$2", pg.Rebind("SELECT a FROM t WHERE x=? AND y=?"))
	lite := &DB{Dialect: DialectSQLite}
	require.Equal(t, "x=?", lite.Rebind("x=?"))
}

// openPGForTest connects to GDB_PG_DSN (or DATABASE_URL) and skips when unavailable.
func openPGForTest(t *testing.T) *DB {
	t.Helper()
	dsn := os.Getenv("GDB_PG_DSN")
	if dsn == "" {
		dsn = os.Getenv("DATABASE_URL")
	}
	if dsn == "" {
		t.Skip("GDB_PG_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := Open(ctx, DialectPostgres, dsn)
	if err != nil {
		t.Skipf("postgres not available: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpenPostgres_Migrates(t *testing.T) {
	db := openPGForTest(t)
	ctx := context.Background()
	require.NoError(t, db.Migrate(ctx))
	v, _, err := db.Version(ctx)
	require.NoError(t, err)
	require.EqualValues(t, SchemaVersion, v)
}

func TestSQLitePath(t *testing.T) {
	require.Equal(t, filepath.Join("a", SQLiteFileName), SQLitePath("a"))
}
