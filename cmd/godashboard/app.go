/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"godashboard/internal/activity"
	"godashboard/internal/auth"
	"godashboard/internal/config"
	"godashboard/internal/dashboard"
	"godashboard/internal/layout"
	applog "godashboard/internal/log"
	"godashboard/internal/metrics"
	"godashboard/internal/navigation"
	"godashboard/internal/prefstore"
	"godashboard/internal/server"
	"godashboard/internal/storage"
	"godashboard/internal/telemetry"
	"godashboard/internal/widget"
)

// app holds the stores opened for one command run.
type app struct {
	cfg      config.AppConfig
	log      *slog.Logger
	prefs    prefstore.Store
	activity activity.Source
	recorder activity.Recorder
	ready    func(context.Context) error
	closers  []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("close", slog.Any("err", err))
		}
	}
	a.closers = nil
}

// openApp opens the preference store and the activity source described by cfg.
// SQL databases are migrated before use.
func openApp(ctx context.Context, cfg config.AppConfig) (*app, error) {
	a := &app{cfg: cfg, log: applog.WithComponent("app")}
	if err := a.openPrefs(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.openActivity(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) openPrefs(ctx context.Context) error {
	st := a.cfg.Store
	driver := strings.ToLower(strings.TrimSpace(st.Driver))
	l := applog.WithOperation(a.log, "open-prefs").With(slog.String("driver", driver))
	switch driver {
	case "", "memory":
		a.prefs = prefstore.NewMemory()
	case "file":
		dir := filepath.Join(a.cfg.DataDir(), "prefs")
		fs, err := prefstore.NewFile(dir)
		if err != nil {
			return err
		}
		a.prefs = fs
	case storage.DialectSQLite, storage.DialectPostgres:
		db, err := a.openDB(ctx, driver, st.DSN)
		if err != nil {
			return err
		}
		a.prefs = prefstore.NewSQL(db)
		a.ready = db.PingContext
		if a.cfg.Activity.Driver == "" {
			a.activity = activity.NewSQL(db)
		}
	case "redis":
		rs, err := prefstore.NewRedis(ctx, prefstore.RedisConfig{
			Address:  st.RedisAddr,
			Password: st.RedisPassword,
			DB:       st.RedisDB,
			Prefix:   st.RedisPrefix,
		})
		if err != nil {
			return err
		}
		a.closers = append(a.closers, rs.Close)
		a.prefs = rs
		a.ready = rs.Ping
	default:
		return fmt.Errorf("unknown store driver %q", st.Driver)
	}
	l.Info("preference store ready")
	return nil
}

func (a *app) openActivity(ctx context.Context) error {
	if a.activity != nil {
		a.recorder, _ = a.activity.(activity.Recorder)
		return nil
	}
	driver := strings.ToLower(strings.TrimSpace(a.cfg.Activity.Driver))
	switch driver {
	case "", "memory":
		m := activity.NewMemory()
		a.activity, a.recorder = m, m
	case storage.DialectSQLite, storage.DialectPostgres:
		db, err := a.openDB(ctx, driver, a.cfg.Activity.DSN)
		if err != nil {
			return err
		}
		s := activity.NewSQL(db)
		a.activity, a.recorder = s, s
	default:
		return fmt.Errorf("unknown activity driver %q", a.cfg.Activity.Driver)
	}
	return nil
}

// openDB opens and migrates a SQL database. An empty sqlite dsn places the
// file in the data directory.
func (a *app) openDB(ctx context.Context, dialect, dsn string) (*storage.DB, error) {
	if dsn == "" {
		if dialect != storage.DialectSQLite {
			return nil, errors.New("postgres needs a dsn")
		}
		dsn = storage.SQLitePath(a.cfg.DataDir())
	}
	db, err := storage.Open(ctx, dialect, dsn)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, db.Close)
	if err := db.Migrate(ctx); err != nil {
		return nil, err
	}
	return db, nil
}

// services is everything the HTTP API needs.
type services struct {
	assembler *dashboard.Assembler
	renderer  *navigation.Renderer
	directory *auth.Directory
	tokens    *auth.Tokens
	metrics   *metrics.Collector
}

// buildServices registers the built-in widgets and navigation, then applies
// the extension file on top of them.
func (a *app) buildServices(secret string) (*services, error) {
	cfg := a.cfg
	m := metrics.New()
	prefs := prefstore.WithObserver(a.prefs, m.ObserveStore)

	reg := widget.NewRegistry()
	b := dashboard.Builtins{Activity: a.activity, QuickLinks: cfg.QuickLinks, FeedLimit: cfg.Activity.Limit}
	if err := b.Register(reg); err != nil {
		return nil, err
	}
	tree, err := navigation.NewDefaultTree()
	if err != nil {
		return nil, err
	}
	ext, err := config.LoadExtensions(cfg.Extensions)
	if err != nil {
		return nil, err
	}
	if err := reg.RegisterSpecs(ext.Widgets); err != nil {
		return nil, fmt.Errorf("extension widgets: %w", err)
	}
	if err := tree.ApplyExtensions(ext); err != nil {
		return nil, fmt.Errorf("extension navigation: %w", err)
	}

	dir, err := auth.NewDirectory(cfg.Users, cfg.Groups)
	if err != nil {
		return nil, err
	}
	return &services{
		assembler: dashboard.NewAssembler(reg, layout.NewStore(prefs, reg)),
		renderer:  navigation.NewRenderer(tree),
		directory: dir,
		tokens:    newTokens(cfg, secret),
		metrics:   m,
	}, nil
}

func newTokens(cfg config.AppConfig, secret string) *auth.Tokens {
	return auth.NewTokens(secret, cfg.Auth.Issuer, config.Duration(cfg.Auth.TokenTTLMinutes*60_000, time.Hour))
}

func (a *app) newServer(svc *services) *server.Server {
	cfg := a.cfg
	return server.New(server.Deps{
		Dashboard:          svc.assembler,
		Navigation:         svc.renderer,
		Directory:          svc.directory,
		Tokens:             svc.tokens,
		CSRF:               auth.NewCSRF(config.Duration(cfg.Auth.CSRFTTLMinutes*60_000, 30*time.Minute)),
		Metrics:            svc.metrics,
		Telemetry:          telemetry.Default(),
		Ready:              a.ready,
		CrashDir:           cfg.Server.CrashDir,
		WriteRatePerMinute: cfg.Server.WriteRatePerMinute,
	})
}
