/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type memKeyring struct{ m map[string]string }

func (k *memKeyring) Get(service, key string) (string, error) {
	v, ok := k.m[service+"/"+key]
	if !ok {
		return "", errors.New("not found")
	}
	return v, nil
}

func (k *memKeyring) Set(service, key, value string) error {
	k.m[service+"/"+key] = value
	return nil
}

func (k *memKeyring) Delete(service, key string) error {
	delete(k.m, service+"/"+key)
	return nil
}

func stubKeyring(t *testing.T) *memKeyring {
	t.Helper()
	kr := &memKeyring{m: map[string]string{}}
	old := tokenStore
	tokenStore = kr
	t.Cleanup(func() { tokenStore = old })
	return kr
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	stubKeyring(t)
	cfg, secret, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Addr != ":8080" || cfg.Store.Driver != "sqlite" {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if secret != "" {
		t.Fatalf("unexpected secret %q", secret)
	}
}

func TestLoadMergesFile(t *testing.T) {
	stubKeyring(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
server:
  addr: ":9090"
store:
  driver: Redis
  redis_prefix: "dash:"
groups:
  editor: [read, edit]
users:
  alice:
    real_name: Alice
    groups: [user, editor]
logging:
  level: DEBUG
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, _, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Addr != ":9090" || cfg.Store.Driver != "redis" || cfg.Store.RedisPrefix != "dash:" {
		t.Fatalf("file values not merged: %+v", cfg)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("logging level = %q", cfg.Logging.Level)
	}
	if _, ok := cfg.Groups["user"]; !ok {
		t.Fatalf("default group lost during merge")
	}
	if got := cfg.Users["alice"].Groups; len(got) != 2 {
		t.Fatalf("user groups = %v", got)
	}
	// untouched defaults survive
	if cfg.Auth.TokenTTLMinutes != 60 {
		t.Fatalf("auth defaults lost: %+v", cfg.Auth)
	}
}

func TestLoadMalformedFile(t *testing.T) {
	stubKeyring(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, _, err := Load(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestEnvOverrides(t *testing.T) {
	stubKeyring(t)
	t.Setenv(EnvAddr, "127.0.0.1:7000")
	t.Setenv(EnvStoreDriver, "POSTGRES")
	t.Setenv(EnvWriteRate, "5")
	t.Setenv(EnvTelemetryOptIn, "yes")
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvLogSource, "1")
	cfg, _, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Addr != "127.0.0.1:7000" || cfg.Store.Driver != "postgres" || cfg.Server.WriteRatePerMinute != 5 {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
	if !cfg.Telemetry.OptIn || cfg.Logging.Level != "error" || !cfg.Logging.Source {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
	if name, ok := EnvOverrideFor("store.driver"); !ok || name != EnvStoreDriver {
		t.Fatalf("EnvOverrideFor = %q %v", name, ok)
	}
	if _, ok := EnvOverrideFor("store.redis_db"); ok {
		t.Fatalf("unexpected override for store.redis_db")
	}
}

func TestSecretFromKeyringAndEnv(t *testing.T) {
	kr := stubKeyring(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := Save(path, Defaults(), "from-keyring"); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if kr.m[keyringService+"/"+keyringSecret] != "from-keyring" {
		t.Fatalf("secret not stored in keyring")
	}
	_, secret, err := Load(path)
	if err != nil || secret != "from-keyring" {
		t.Fatalf("Load secret = %q, %v", secret, err)
	}
	t.Setenv(EnvAuthSecret, "from-env")
	_, secret, _ = Load(path)
	if secret != "from-env" {
		t.Fatalf("env secret should win, got %q", secret)
	}
	if err := DeleteSecret(); err != nil {
		t.Fatal(err)
	}
	if _, ok := kr.m[keyringService+"/"+keyringSecret]; ok {
		t.Fatalf("secret not deleted")
	}
}

func TestLoadExtensions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ext.yaml")
	data := `
widgets:
  - id: motd
    title: Message of the day
    region: sidebar
    hideable: false
    visible_if: can("read")
sections:
  - id: tools
    label: Tools
    items:
      - id: sandbox
        label: Sandbox
        url: /wiki/Sandbox
        order: 5
remove_items: ["content/create-blog"]
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	ext, err := LoadExtensions(path)
	if err != nil {
		t.Fatalf("LoadExtensions: %v", err)
	}
	if len(ext.Widgets) != 1 || ext.Widgets[0].Hideable == nil || *ext.Widgets[0].Hideable {
		t.Fatalf("widgets = %+v", ext.Widgets)
	}
	if len(ext.Sections) != 1 || len(ext.Sections[0].Items) != 1 || ext.Sections[0].Items[0].Order != 5 {
		t.Fatalf("sections = %+v", ext.Sections)
	}
	if len(ext.RemoveItems) != 1 {
		t.Fatalf("remove_items = %v", ext.RemoveItems)
	}
	empty, err := LoadExtensions("")
	if err != nil || len(empty.Widgets) != 0 {
		t.Fatalf("empty path: %+v %v", empty, err)
	}
}
