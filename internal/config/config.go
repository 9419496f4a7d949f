/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package config loads the service configuration from a YAML file in the user
// scope, merges it over Defaults and applies GDB_* environment overrides.
// The token signing secret never lives in the file; it is kept in the OS keyring.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Addr               string `yaml:"addr"`
	ReadTimeoutMs      int    `yaml:"read_timeout_ms"`
	WriteTimeoutMs     int    `yaml:"write_timeout_ms"`
	WriteRatePerMinute int    `yaml:"write_rate_per_minute"`
	CrashDir           string `yaml:"crash_dir"`
}

// StoreConfig selects the preference store backend.
// Driver is one of memory, file, sqlite, postgres or redis.
type StoreConfig struct {
	Driver        string `yaml:"driver"`
	DSN           string `yaml:"dsn"`
	Dir           string `yaml:"dir"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	RedisPrefix   string `yaml:"redis_prefix"`
}

// ActivityConfig selects where recent edits are read from.
// An empty Driver shares the preference store database when it is SQL backed.
type ActivityConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
	Limit  int    `yaml:"limit"`
}

type AuthConfig struct {
	Issuer          string `yaml:"issuer"`
	TokenTTLMinutes int    `yaml:"token_ttl_minutes"`
	CSRFTTLMinutes  int    `yaml:"csrf_ttl_minutes"`
	// Secret is not stored on disk; it lives in the OS keychain.
}

// UserConfig describes one account of the static user directory.
type UserConfig struct {
	RealName   string   `yaml:"real_name"`
	Groups     []string `yaml:"groups"`
	Registered string   `yaml:"registered"` // YYYY-MM-DD
	Edits      int      `yaml:"edits"`
	LastLogin  string   `yaml:"last_login"` // RFC 3339 or YYYY-MM-DD
}

// LinkConfig is a quick link shown by the quick-links and welcome widgets.
type LinkConfig struct {
	Label      string `yaml:"label"`
	URL        string `yaml:"url"`
	Icon       string `yaml:"icon"`
	Permission string `yaml:"permission"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type TelemetryConfig struct {
	OptIn     bool   `yaml:"opt_in"`
	EventsURL string `yaml:"events_url"`
	CrashURL  string `yaml:"crash_url"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

// AppConfig is the user-editable configuration persisted as YAML.
type AppConfig struct {
	ConfigVersion int                   `yaml:"config_version"`
	Server        ServerConfig          `yaml:"server"`
	Store         StoreConfig           `yaml:"store"`
	Activity      ActivityConfig        `yaml:"activity"`
	Auth          AuthConfig            `yaml:"auth"`
	Groups        map[string][]string   `yaml:"groups"`
	Users         map[string]UserConfig `yaml:"users"`
	QuickLinks    []LinkConfig          `yaml:"quick_links"`
	Extensions    string                `yaml:"extensions"`
	Logging       LoggingConfig         `yaml:"logging"`
	Telemetry     TelemetryConfig       `yaml:"telemetry"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		Server:        ServerConfig{Addr: ":8080", ReadTimeoutMs: 10000, WriteTimeoutMs: 15000, WriteRatePerMinute: 60},
		Store:         StoreConfig{Driver: "sqlite", RedisAddr: "localhost:6379", RedisPrefix: "dashboard:"},
		Activity:      ActivityConfig{Limit: 10},
		Auth:          AuthConfig{Issuer: "godashboard", TokenTTLMinutes: 60, CSRFTTLMinutes: 30},
		Groups: map[string][]string{
			"user": {"read", "edit", "createpage", "upload", "viewmywatchlist", "viewrecentchanges",
				"viewdashboard", "customizedashboard"},
			"sysop": {"userrights", "siteadmin", "viewalldashboards"},
		},
		Users: map[string]UserConfig{},
		QuickLinks: []LinkConfig{
			{Label: "My contributions", URL: "/wiki/Special:MyContributions", Icon: "userContributions"},
			{Label: "Watchlist", URL: "/wiki/Special:Watchlist", Icon: "watchlist", Permission: "viewmywatchlist"},
			{Label: "Preferences", URL: "/wiki/Special:Preferences", Icon: "settings"},
		},
		Logging:   LoggingConfig{Level: "info", Format: "console"},
		Telemetry: TelemetryConfig{TimeoutMs: 1500},
	}
}

// Env var names used as overrides.
const (
	EnvAddr           = "GDB_ADDR"
	EnvStoreDriver    = "GDB_STORE_DRIVER"
	EnvStoreDSN       = "GDB_STORE_DSN"
	EnvStoreDir       = "GDB_STORE_DIR"
	EnvRedisAddr      = "GDB_REDIS_ADDR"
	EnvWriteRate      = "GDB_WRITE_RATE_PER_MINUTE"
	EnvAuthSecret     = "GDB_AUTH_SECRET"
	EnvTelemetryOptIn = "GDB_TELEMETRY_OPT_IN"
	EnvExtensions     = "GDB_EXTENSIONS"
	// EnvLogLevel Logging envs
	EnvLogLevel  = "GDB_LOG_LEVEL"
	EnvLogFormat = "GDB_LOG_FORMAT"
	EnvLogSource = "GDB_LOG_SOURCE"
	EnvLogFile   = "GDB_LOG_FILE"
)

// envOverrides maps dotted config keys to the env var that overrides them.
var envOverrides = map[string]string{
	"server.addr":                  EnvAddr,
	"server.write_rate_per_minute": EnvWriteRate,
	"store.driver":                 EnvStoreDriver,
	"store.dsn":                    EnvStoreDSN,
	"store.dir":                    EnvStoreDir,
	"store.redis_addr":             EnvRedisAddr,
	"telemetry.opt_in":             EnvTelemetryOptIn,
	"extensions":                   EnvExtensions,
	"logging.level":                EnvLogLevel,
	"logging.format":               EnvLogFormat,
	"logging.source":               EnvLogSource,
	"logging.file":                 EnvLogFile,
}

// ConfigDir returns the per-user configuration directory.
func ConfigDir() (string, error) {
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "GoDashboard")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "GoDashboard")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			base = filepath.Join(xdg, "godashboard")
		} else {
			base = filepath.Join(os.Getenv("HOME"), ".config", "godashboard")
		}
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return base, nil
}

// ConfigPath returns the per-user config file path.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads the config file at path (ConfigPath when empty), applies defaults
// and merges environment overrides. The signing secret is returned separately:
// GDB_AUTH_SECRET wins over the keyring entry.
// A missing file is not an error; a malformed one is.
func Load(path string) (AppConfig, string, error) {
	cfg := Defaults()
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return cfg, "", err
		}
		path = p
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return cfg, "", fmt.Errorf("parse %s: %w", path, err)
		}
		mergeInto(&cfg, &fileCfg)
	case !errors.Is(err, os.ErrNotExist):
		return cfg, "", fmt.Errorf("read %s: %w", path, err)
	}
	applyEnvOverrides(&cfg)

	if v := strings.TrimSpace(os.Getenv(EnvAuthSecret)); v != "" {
		return cfg, v, nil
	}
	secret, _ := tokenStore.Get(keyringService, keyringSecret)
	return cfg, secret, nil
}

// Save writes the config YAML to path (ConfigPath when empty) and stores the
// secret in the OS keyring when non-empty.
func Save(path string, cfg AppConfig, secret string) error {
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return err
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	if secret != "" {
		if err := tokenStore.Set(keyringService, keyringSecret, secret); err != nil {
			return err
		}
	}
	return nil
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	// server
	setStr(&dst.Server.Addr, src.Server.Addr)
	setInt(&dst.Server.ReadTimeoutMs, src.Server.ReadTimeoutMs)
	setInt(&dst.Server.WriteTimeoutMs, src.Server.WriteTimeoutMs)
	setInt(&dst.Server.WriteRatePerMinute, src.Server.WriteRatePerMinute)
	setStr(&dst.Server.CrashDir, src.Server.CrashDir)
	// store
	if v := strings.ToLower(strings.TrimSpace(src.Store.Driver)); v != "" {
		dst.Store.Driver = v
	}
	setStr(&dst.Store.DSN, src.Store.DSN)
	setStr(&dst.Store.Dir, src.Store.Dir)
	setStr(&dst.Store.RedisAddr, src.Store.RedisAddr)
	setStr(&dst.Store.RedisPassword, src.Store.RedisPassword)
	setInt(&dst.Store.RedisDB, src.Store.RedisDB)
	setStr(&dst.Store.RedisPrefix, src.Store.RedisPrefix)
	// activity
	setStr(&dst.Activity.Driver, strings.ToLower(src.Activity.Driver))
	setStr(&dst.Activity.DSN, src.Activity.DSN)
	setInt(&dst.Activity.Limit, src.Activity.Limit)
	// auth
	setStr(&dst.Auth.Issuer, src.Auth.Issuer)
	setInt(&dst.Auth.TokenTTLMinutes, src.Auth.TokenTTLMinutes)
	setInt(&dst.Auth.CSRFTTLMinutes, src.Auth.CSRFTTLMinutes)
	// directory: file groups extend or replace default groups by name
	for name, rights := range src.Groups {
		dst.Groups[name] = rights
	}
	for name, u := range src.Users {
		dst.Users[name] = u
	}
	if src.QuickLinks != nil {
		dst.QuickLinks = src.QuickLinks
	}
	setStr(&dst.Extensions, src.Extensions)
	// logging
	if v := strings.ToLower(strings.TrimSpace(src.Logging.Level)); v != "" {
		dst.Logging.Level = v
	}
	if v := strings.ToLower(strings.TrimSpace(src.Logging.Format)); v != "" {
		dst.Logging.Format = v
	}
	dst.Logging.Source = src.Logging.Source
	setStr(&dst.Logging.File, src.Logging.File)
	// telemetry: booleans copied from the file so user preferences persist
	dst.Telemetry.OptIn = src.Telemetry.OptIn
	setStr(&dst.Telemetry.EventsURL, src.Telemetry.EventsURL)
	setStr(&dst.Telemetry.CrashURL, src.Telemetry.CrashURL)
	setInt(&dst.Telemetry.TimeoutMs, src.Telemetry.TimeoutMs)
}

func setStr(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func parseBool(v string) bool {
	lv := strings.ToLower(strings.TrimSpace(v))
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvAddr)); v != "" {
		cfg.Server.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvWriteRate)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.WriteRatePerMinute = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvStoreDriver)); v != "" {
		cfg.Store.Driver = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvStoreDSN)); v != "" {
		cfg.Store.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvStoreDir)); v != "" {
		cfg.Store.Dir = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvRedisAddr)); v != "" {
		cfg.Store.RedisAddr = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvTelemetryOptIn)); v != "" {
		cfg.Telemetry.OptIn = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvExtensions)); v != "" {
		cfg.Extensions = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	name, ok := envOverrides[key]
	if !ok || os.Getenv(name) == "" {
		return "", false
	}
	return name, true
}

// Duration converts a millisecond setting, falling back to def when unset.
func Duration(ms int, def time.Duration) time.Duration {
	if ms <= 0 {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}

// DataDir is where file and sqlite stores keep their data when no path is configured.
func (c AppConfig) DataDir() string {
	if c.Store.Dir != "" {
		return c.Store.Dir
	}
	if dir, err := ConfigDir(); err == nil {
		return filepath.Join(dir, "data")
	}
	return filepath.Join(os.TempDir(), "godashboard")
}
