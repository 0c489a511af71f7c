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
	"strings"
	"testing"
	"time"
)

type memStore map[string]string

func (m memStore) Get(service, key string) (string, error) {
	v, ok := m[service+"/"+key]
	if !ok {
		return "", errors.New("not found")
	}
	return v, nil
}
func (m memStore) Set(service, key, value string) error { m[service+"/"+key] = value; return nil }
func (m memStore) Delete(service, key string) error     { delete(m, service+"/"+key); return nil }

func useMemStore(t *testing.T) memStore {
	t.Helper()
	old := secretStore
	m := memStore{}
	secretStore = m
	t.Cleanup(func() { secretStore = old })
	return m
}

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	useMemStore(t)
	cfg, secret, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg != Defaults() || secret != "" {
		t.Fatalf("expected defaults, got %+v secret=%q", cfg, secret)
	}
}

func TestLoadLayersFileOverDefaults(t *testing.T) {
	useMemStore(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "parser:\n  dialect: SCENE\nstorage:\n  history_path: /tmp/h.sqlite\nlogging:\n  level: Debug\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, _, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Parser.Dialect != "scene" || cfg.Logging.Level != "debug" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	// Fields absent from the file keep their defaults.
	if !cfg.Storage.Enabled || cfg.Parser.IdentifierPrefix != "ep2s" || cfg.Output.Format != "table" {
		t.Fatalf("defaults lost: %+v", cfg)
	}
}

func TestLoadRejectsMalformedAndInvalid(t *testing.T) {
	useMemStore(t)
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("parser: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, _, err := Load(bad); err == nil {
		t.Fatalf("expected parse error")
	}

	invalid := filepath.Join(dir, "invalid.yaml")
	if err := os.WriteFile(invalid, []byte("output:\n  format: docx\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, _, err := Load(invalid); err == nil || !strings.Contains(err.Error(), "output.format") {
		t.Fatalf("expected output.format error, got %v", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	useMemStore(t)
	t.Setenv(EnvDialect, "scene")
	t.Setenv(EnvHistoryEnabled, "off")
	t.Setenv(EnvBackendEnabled, "yes")
	t.Setenv(EnvBackendDSN, "postgres://localhost/rt")
	t.Setenv(EnvBackendTimeoutMs, "2500")
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvLogSource, "1")

	cfg, _, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Parser.Dialect != "scene" || cfg.Storage.Enabled || !cfg.Backend.Enabled {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
	if cfg.Backend.Timeout() != 2500*time.Millisecond {
		t.Fatalf("timeout = %v", cfg.Backend.Timeout())
	}
	if o := cfg.Logging.Options(); o.Level != "error" || !o.AddSource {
		t.Fatalf("logging options: %+v", o)
	}
	if env, ok := EnvOverrideFor("backend.dsn"); !ok || env != EnvBackendDSN {
		t.Fatalf("EnvOverrideFor(backend.dsn) = %q %v", env, ok)
	}
	if _, ok := EnvOverrideFor("output.format"); ok {
		t.Fatalf("output.format is not overridden")
	}
}

func TestBackendEnabledRequiresDSN(t *testing.T) {
	cfg := Defaults()
	cfg.Backend.Enabled = true
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected missing dsn error")
	}
}

func TestSaveRoundTripKeepsPasswordOutOfFile(t *testing.T) {
	store := useMemStore(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Defaults()
	cfg.Backend.DSN = "postgres://db/rt"
	if err := Save(path, cfg, "s3cret"); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "s3cret") {
		t.Fatalf("password written to disk")
	}
	if store[keyringService+"/"+keyringPassword] != "s3cret" {
		t.Fatalf("password not stored in keyring")
	}
	got, secret, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got.Backend.DSN != cfg.Backend.DSN || secret != "s3cret" {
		t.Fatalf("round trip mismatch: %+v secret=%q", got.Backend, secret)
	}
}

func TestResolvedHistoryPath(t *testing.T) {
	if p, _ := (StorageConfig{HistoryPath: "/x/h.sqlite"}).ResolvedHistoryPath(); p != "/x/h.sqlite" {
		t.Fatalf("explicit path ignored: %q", p)
	}
	t.Setenv("XDG_DATA_HOME", "/data")
	p, err := StorageConfig{}.ResolvedHistoryPath()
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if filepath.Base(p) != "history.sqlite" {
		t.Fatalf("unexpected default path %q", p)
	}
}
