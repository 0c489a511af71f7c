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
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/zalando/go-keyring"
	"gopkg.in/yaml.v3"

	applog "rendertable/internal/log"
	"rendertable/internal/transcript"
)

// AppConfig is the user-editable configuration persisted to a YAML file in
// the user scope. Environment variables are read-only overrides at runtime.
//
// config_version: bump when the structure changes in a backward-incompatible way.

type ParserConfig struct {
	Dialect          string `yaml:"dialect"` // "directive" | "scene"
	IdentifierPrefix string `yaml:"identifier_prefix"`
}

type OutputConfig struct {
	Format    string `yaml:"format"` // "table" | "json" | "yaml"
	WriteFile bool   `yaml:"write_file"`
}

type StorageConfig struct {
	Enabled     bool   `yaml:"enabled"`
	HistoryPath string `yaml:"history_path"`
}

type BackendConfig struct {
	Enabled   bool   `yaml:"enabled"`
	DSN       string `yaml:"dsn"`
	TimeoutMs int    `yaml:"timeout_ms"`
	// The database password is not stored on disk; it lives in the OS keychain.
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	Parser        ParserConfig  `yaml:"parser"`
	Output        OutputConfig  `yaml:"output"`
	Storage       StorageConfig `yaml:"storage"`
	Backend       BackendConfig `yaml:"backend"`
	Logging       LoggingConfig `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		Parser:        ParserConfig{Dialect: string(transcript.DialectDirective), IdentifierPrefix: transcript.DefaultIdentifierPrefix},
		Output:        OutputConfig{Format: "table", WriteFile: false},
		Storage:       StorageConfig{Enabled: true, HistoryPath: ""},
		Backend:       BackendConfig{Enabled: false, DSN: "", TimeoutMs: 10000},
		Logging:       LoggingConfig{Level: "info", Format: "console", Source: false, File: ""},
	}
}

// Env var names used as overrides.
const (
	EnvDialect          = "RTC_DIALECT"
	EnvIdentifierPrefix = "RTC_ID_PREFIX"
	EnvOutputFormat     = "RTC_OUTPUT_FORMAT"
	EnvHistoryEnabled   = "RTC_HISTORY_ENABLED"
	EnvHistoryPath      = "RTC_HISTORY_PATH"
	EnvBackendEnabled   = "RTC_PG_ENABLED"
	EnvBackendDSN       = "RTC_PG_DSN"
	EnvBackendTimeoutMs = "RTC_PG_TIMEOUT_MS"
	// EnvLogLevel Logging envs
	EnvLogLevel  = "RTC_LOG_LEVEL"
	EnvLogFormat = "RTC_LOG_FORMAT"
	EnvLogSource = "RTC_LOG_SOURCE"
	EnvLogFile   = "RTC_LOG_FILE"
)

// Service/keys for the OS keyring.
const (
	keyringService  = "RenderTableCreator"
	keyringPassword = "backend_password"
)

// SecretStore abstracts the keyring, so we can stub it in tests.
type SecretStore interface {
	Get(service, key string) (string, error)
	Set(service, key, value string) error
	Delete(service, key string) error
}

// osKeyring implements SecretStore using github.com/zalando/go-keyring.
type osKeyring struct{}

func (osKeyring) Get(service, key string) (string, error) { return keyring.Get(service, key) }
func (osKeyring) Set(service, key, value string) error    { return keyring.Set(service, key, value) }
func (osKeyring) Delete(service, key string) error        { return keyring.Delete(service, key) }

var secretStore SecretStore = osKeyring{}

// userDir resolves the per-user application directory for the given kind
// ("config" or "data").
func userDir(kind string) (string, error) {
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "RenderTableCreator")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "RenderTableCreator")
	default:
		if kind == "data" {
			if x := os.Getenv("XDG_DATA_HOME"); x != "" {
				return filepath.Join(x, "rendertable"), nil
			}
			return filepath.Join(os.Getenv("HOME"), ".local", "share", "rendertable"), nil
		}
		if x := os.Getenv("XDG_CONFIG_HOME"); x != "" {
			return filepath.Join(x, "rendertable"), nil
		}
		base = filepath.Join(os.Getenv("HOME"), ".config", "rendertable")
	}
	if base == "" {
		return "", errors.New("cannot resolve user directory")
	}
	return base, nil
}

// ConfigPath returns the per-user config file path.
func ConfigPath() (string, error) {
	dir, err := userDir("config")
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// DefaultHistoryPath returns the per-user run history database path.
func DefaultHistoryPath() (string, error) {
	dir, err := userDir("data")
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history.sqlite"), nil
}

// Load reads the config file at path (the per-user path when empty), layers
// it over the defaults and applies environment overrides. When a backend DSN
// is configured its password is read from the keyring and returned
// separately. A missing file is not an error; a malformed one is.
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
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Defaults(), "", fmt.Errorf("parse config %s: %w", path, err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return cfg, "", fmt.Errorf("read config: %w", err)
	}
	normalize(&cfg)
	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, "", err
	}
	if cfg.Backend.DSN == "" {
		return cfg, "", nil
	}
	secret, _ := secretStore.Get(keyringService, keyringPassword)
	return cfg, secret, nil
}

// Save writes the config YAML to path (the per-user path when empty) and
// stores a non-empty password in the OS keyring.
func Save(path string, cfg AppConfig, password string) error {
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
	if password != "" {
		if err := secretStore.Set(keyringService, keyringPassword, password); err != nil {
			return fmt.Errorf("store backend password: %w", err)
		}
	}
	return nil
}

// Validate checks enumerated values.
func (c AppConfig) Validate() error {
	if _, err := transcript.ParseDialect(c.Parser.Dialect); err != nil {
		return fmt.Errorf("parser.dialect: %w", err)
	}
	switch c.Output.Format {
	case "table", "json", "yaml":
	default:
		return fmt.Errorf("output.format: unknown format %q (want table, json or yaml)", c.Output.Format)
	}
	if c.Backend.Enabled && strings.TrimSpace(c.Backend.DSN) == "" {
		return errors.New("backend.dsn is required when the backend is enabled")
	}
	return nil
}

func normalize(cfg *AppConfig) {
	cfg.Parser.Dialect = strings.ToLower(strings.TrimSpace(cfg.Parser.Dialect))
	cfg.Parser.IdentifierPrefix = strings.TrimSpace(cfg.Parser.IdentifierPrefix)
	cfg.Output.Format = strings.ToLower(strings.TrimSpace(cfg.Output.Format))
	if cfg.Output.Format == "" {
		cfg.Output.Format = "table"
	}
	cfg.Storage.HistoryPath = strings.TrimSpace(cfg.Storage.HistoryPath)
	cfg.Backend.DSN = strings.TrimSpace(cfg.Backend.DSN)
	cfg.Logging.Level = strings.ToLower(strings.TrimSpace(cfg.Logging.Level))
	cfg.Logging.Format = strings.ToLower(strings.TrimSpace(cfg.Logging.Format))
	cfg.Logging.File = strings.TrimSpace(cfg.Logging.File)
}

func parseBool(v string) bool {
	lv := strings.ToLower(v)
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvDialect)); v != "" {
		cfg.Parser.Dialect = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvIdentifierPrefix)); v != "" {
		cfg.Parser.IdentifierPrefix = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvOutputFormat)); v != "" {
		cfg.Output.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvHistoryEnabled)); v != "" {
		cfg.Storage.Enabled = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvHistoryPath)); v != "" {
		cfg.Storage.HistoryPath = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvBackendEnabled)); v != "" {
		cfg.Backend.Enabled = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvBackendDSN)); v != "" {
		cfg.Backend.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvBackendTimeoutMs)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Backend.TimeoutMs = n
		}
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

// envKeys maps dotted config keys to their override variables.
var envKeys = map[string]string{
	"parser.dialect":           EnvDialect,
	"parser.identifier_prefix": EnvIdentifierPrefix,
	"output.format":            EnvOutputFormat,
	"storage.enabled":          EnvHistoryEnabled,
	"storage.history_path":     EnvHistoryPath,
	"backend.enabled":          EnvBackendEnabled,
	"backend.dsn":              EnvBackendDSN,
	"backend.timeout_ms":       EnvBackendTimeoutMs,
	"logging.level":            EnvLogLevel,
	"logging.format":           EnvLogFormat,
	"logging.source":           EnvLogSource,
	"logging.file":             EnvLogFile,
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	env, ok := envKeys[key]
	if !ok || os.Getenv(env) == "" {
		return "", false
	}
	return env, true
}

// Timeout returns the backend timeout, falling back to the default for
// non-positive values.
func (b BackendConfig) Timeout() time.Duration {
	if b.TimeoutMs <= 0 {
		return time.Duration(Defaults().Backend.TimeoutMs) * time.Millisecond
	}
	return time.Duration(b.TimeoutMs) * time.Millisecond
}

// ResolvedHistoryPath returns the configured history path or the per-user default.
func (s StorageConfig) ResolvedHistoryPath() (string, error) {
	if s.HistoryPath != "" {
		return s.HistoryPath, nil
	}
	return DefaultHistoryPath()
}

// Options converts the logging section to logger options.
func (l LoggingConfig) Options() applog.Options {
	return applog.Options{Level: l.Level, Format: l.Format, AddSource: l.Source, File: l.File}
}
