// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// Storage backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete chatstore configuration.
type Config struct {
	Storage  StorageConfig  `toml:"storage" json:"storage"`
	Log      LogConfig      `toml:"log" json:"log"`
	Timing   TimingConfig   `toml:"timing" json:"timing"`
	Defaults DefaultsConfig `toml:"defaults" json:"defaults"`
	Metrics  MetricsConfig  `toml:"metrics" json:"metrics"`
}

// StorageConfig selects the durable key-value backend.
type StorageConfig struct {
	// Backend is one of: "file" (default), "sqlite", "redis", "memory"
	Backend string `toml:"backend" json:"backend"`
	// Path is the directory (file) or database file (sqlite); empty = ~/.chatstore
	Path string `toml:"path" json:"path"`

	RedisAddr     string `toml:"redis_addr" json:"redis_addr"`
	RedisPassword string `toml:"redis_password" json:"redis_password"`
	RedisDB       int    `toml:"redis_db" json:"redis_db"`
	// KeyPrefix namespaces redis keys
	KeyPrefix string `toml:"key_prefix" json:"key_prefix"`
}

// LogConfig controls logger output.
type LogConfig struct {
	// Level is a logrus level name: "debug", "info", "warn", "error"
	Level string `toml:"level" json:"level"`
	// Format is "text" or "json"
	Format string `toml:"format" json:"format"`
	// Output is "stderr", "stdout" or "file"
	Output string `toml:"output" json:"output"`
	// FilePath is required when Output is "file"
	FilePath string `toml:"file_path" json:"file_path"`
}

// TimingConfig holds the simulated latencies, in milliseconds.
type TimingConfig struct {
	DeleteLatencyMs int `toml:"delete_latency_ms" json:"delete_latency_ms"`
	GenerateMinMs   int `toml:"generate_min_ms" json:"generate_min_ms"`
	GenerateMaxMs   int `toml:"generate_max_ms" json:"generate_max_ms"`
	RegenerateMinMs int `toml:"regenerate_min_ms" json:"regenerate_min_ms"`
	RegenerateMaxMs int `toml:"regenerate_max_ms" json:"regenerate_max_ms"`
}

// DeleteLatency returns the simulated remote deletion latency.
func (t TimingConfig) DeleteLatency() time.Duration {
	return time.Duration(t.DeleteLatencyMs) * time.Millisecond
}

// GenerateRange returns the generation delay bounds.
func (t TimingConfig) GenerateRange() (time.Duration, time.Duration) {
	return time.Duration(t.GenerateMinMs) * time.Millisecond, time.Duration(t.GenerateMaxMs) * time.Millisecond
}

// RegenerateRange returns the regeneration delay bounds.
func (t TimingConfig) RegenerateRange() (time.Duration, time.Duration) {
	return time.Duration(t.RegenerateMinMs) * time.Millisecond, time.Duration(t.RegenerateMaxMs) * time.Millisecond
}

// DefaultsConfig seeds the chat settings of a store with nothing persisted.
// Changes are applied to a running REPL through the settings update path.
type DefaultsConfig struct {
	Model        string  `toml:"model" json:"model"`
	Temperature  float64 `toml:"temperature" json:"temperature"`
	MaxTokens    int     `toml:"max_tokens" json:"max_tokens"`
	SystemPrompt string  `toml:"system_prompt" json:"system_prompt"`
}

// MetricsConfig controls the Prometheus endpoint of the chat REPL.
type MetricsConfig struct {
	// Addr is the listen address, e.g. ":9464"; empty disables the endpoint
	Addr string `toml:"addr" json:"addr"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Backend:   BackendFile,
			RedisAddr: "localhost:6379",
			KeyPrefix: "chatstore:",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Timing: TimingConfig{
			DeleteLatencyMs: 500,
			GenerateMinMs:   1500,
			GenerateMaxMs:   2500,
			RegenerateMinMs: 1000,
			RegenerateMaxMs: 1500,
		},
		Defaults: DefaultsConfig{
			Model:        "gpt-4",
			Temperature:  0.7,
			MaxTokens:    2048,
			SystemPrompt: "You are a knowledgeable crypto assistant. Be concise and accurate.",
		},
	}
}

// SetDefaults fills zero-valued fields that must not stay empty.
func (c *Config) SetDefaults() {
	d := Default()
	if c.Storage.Backend == "" {
		c.Storage.Backend = d.Storage.Backend
	}
	if c.Storage.RedisAddr == "" {
		c.Storage.RedisAddr = d.Storage.RedisAddr
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
	if c.Log.Output == "" {
		c.Log.Output = d.Log.Output
	}
	if c.Defaults.Model == "" {
		c.Defaults.Model = d.Defaults.Model
	}
	if c.Defaults.MaxTokens == 0 {
		c.Defaults.MaxTokens = d.Defaults.MaxTokens
	}
}

// =============================================================================
// PATHS
// =============================================================================

// ConfigDir returns the chatstore home directory. CHATSTORE_HOME overrides
// the default ~/.chatstore.
func ConfigDir() (string, error) {
	if dir := os.Getenv("CHATSTORE_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "could not determine home directory")
	}
	return filepath.Join(home, ".chatstore"), nil
}

// ConfigPathTOML returns the default TOML config path.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the default JSON config path.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// =============================================================================
// LOADING
// =============================================================================

// Load reads the first config file found in the default locations, applies
// environment overrides and validates the result. With no file present the
// built-in defaults are used.
func Load() (*Config, error) {
	for _, locate := range []func() (string, error){ConfigPathTOML, ConfigPathJSON} {
		path, err := locate()
		if err != nil {
			continue
		}
		if _, statErr := os.Stat(path); statErr == nil {
			return LoadFromPath(path)
		}
	}
	return finish(Default())
}

// LoadFromPath loads a specific file. Files ending in .json are parsed as
// JSON, everything else as TOML.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	var err error
	if strings.HasSuffix(path, ".json") {
		err = LoadJSON(cfg, path)
	} else {
		err = LoadTOML(cfg, path)
	}
	if err != nil {
		return nil, err
	}
	return finish(cfg)
}

// LoadTOML decodes a TOML file over cfg.
func LoadTOML(cfg *Config, path string) error {
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return errors.Wrapf(err, "failed to decode TOML config %s", path)
	}
	return nil
}

// LoadJSON decodes a JSON file over cfg.
func LoadJSON(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "failed to read JSON config %s", path)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return errors.Wrapf(err, "failed to decode JSON config %s", path)
	}
	return nil
}

func finish(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	return cfg, nil
}

// SaveTOML writes cfg to path atomically enough for a config file.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return errors.Wrap(err, "encode TOML config")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return errors.Wrap(err, "create config directory")
	}
	return os.WriteFile(path, buf.Bytes(), 0600)
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies CHATSTORE_* environment variables.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("CHATSTORE_STORAGE_BACKEND"); v != "" {
		c.Storage.Backend = v
	}
	if v := os.Getenv("CHATSTORE_STORAGE_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("CHATSTORE_REDIS_ADDR"); v != "" {
		c.Storage.RedisAddr = v
	}
	if v := os.Getenv("CHATSTORE_REDIS_PASSWORD"); v != "" {
		c.Storage.RedisPassword = v
	}
	if v := os.Getenv("CHATSTORE_REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Storage.RedisDB = n
		}
	}
	if v := os.Getenv("CHATSTORE_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("CHATSTORE_LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
	if v := os.Getenv("CHATSTORE_MODEL"); v != "" {
		c.Defaults.Model = v
	}
	if v := os.Getenv("CHATSTORE_METRICS_ADDR"); v != "" {
		c.Metrics.Addr = v
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError describes one invalid field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors collects every validation failure.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	var errs ValidateErrors

	validBackends := map[string]bool{BackendMemory: true, BackendFile: true, BackendSQLite: true, BackendRedis: true}
	if !validBackends[strings.ToLower(c.Storage.Backend)] {
		errs = append(errs, ValidationError{
			Field:   "storage.backend",
			Message: fmt.Sprintf("invalid backend '%s', must be one of: file, sqlite, redis, memory", c.Storage.Backend),
		})
	}

	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "warning": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, ValidationError{Field: "log.level", Message: fmt.Sprintf("invalid level '%s'", c.Log.Level)})
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, ValidationError{Field: "log.format", Message: "must be text or json"})
	}
	switch c.Log.Output {
	case "stdout", "stderr":
	case "file":
		if c.Log.FilePath == "" {
			errs = append(errs, ValidationError{Field: "log.file_path", Message: "required when output is file"})
		}
	default:
		errs = append(errs, ValidationError{Field: "log.output", Message: "must be stdout, stderr or file"})
	}

	t := c.Timing
	if t.DeleteLatencyMs < 0 {
		errs = append(errs, ValidationError{Field: "timing.delete_latency_ms", Message: "cannot be negative"})
	}
	if t.GenerateMinMs < 0 || t.GenerateMaxMs < t.GenerateMinMs {
		errs = append(errs, ValidationError{Field: "timing.generate_*_ms", Message: "need 0 <= min <= max"})
	}
	if t.RegenerateMinMs < 0 || t.RegenerateMaxMs < t.RegenerateMinMs {
		errs = append(errs, ValidationError{Field: "timing.regenerate_*_ms", Message: "need 0 <= min <= max"})
	}

	if c.Defaults.Temperature < 0 || c.Defaults.Temperature > 2 {
		errs = append(errs, ValidationError{Field: "defaults.temperature", Message: "must be between 0 and 2"})
	}
	if c.Defaults.MaxTokens < 1 {
		errs = append(errs, ValidationError{Field: "defaults.max_tokens", Message: "must be positive"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
