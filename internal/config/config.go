// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/jeranaias/ragchat/internal/util"
)

// =============================================================================
// CONFIGURATION STRUCTURES
// =============================================================================

// Config is the root configuration for ragchat.
type Config struct {
	API       APIConfig       `toml:"api" json:"api"`
	Chat      ChatConfig      `toml:"chat" json:"chat"`
	Documents DocumentsConfig `toml:"documents" json:"documents"`
	Storage   StorageConfig   `toml:"storage" json:"storage"`
	Logging   LoggingConfig   `toml:"logging" json:"logging"`
	UI        UIConfig        `toml:"ui" json:"ui"`
}

// APIConfig holds backend connection settings.
type APIConfig struct {
	BaseURL        string  `toml:"base_url" json:"base_url"`
	TimeoutSeconds int     `toml:"timeout_seconds" json:"timeout_seconds"`
	MaxRetries     int     `toml:"max_retries" json:"max_retries"`
	RateLimit      float64 `toml:"rate_limit" json:"rate_limit"`
	RateBurst      int     `toml:"rate_burst" json:"rate_burst"`
	HealthInterval int     `toml:"health_interval_seconds" json:"health_interval_seconds"`
}

// ChatConfig holds the generation parameters sent with each chat request.
type ChatConfig struct {
	MaxNewTokens int     `toml:"max_new_tokens" json:"max_new_tokens"`
	Temperature  float64 `toml:"temperature" json:"temperature"`
	DoSample     bool    `toml:"do_sample" json:"do_sample"`
	UseRAG       bool    `toml:"use_rag" json:"use_rag"`
	TopK         int     `toml:"top_k" json:"top_k"`
}

// DocumentsConfig controls the per-session document cache.
type DocumentsConfig struct {
	CacheTTLSeconds int `toml:"cache_ttl_seconds" json:"cache_ttl_seconds"`
}

// StorageConfig selects where the session record is persisted.
type StorageConfig struct {
	// Backend is one of "file", "sqlite" or "memory".
	Backend string `toml:"backend" json:"backend"`
	// Path is a directory for "file" and a database file for "sqlite".
	// Empty means a location under the config directory.
	Path string `toml:"path" json:"path"`
}

// LoggingConfig controls the console and file log outputs.
type LoggingConfig struct {
	Level      string `toml:"level" json:"level"`
	File       string `toml:"file" json:"file"`
	MaxSizeMB  int    `toml:"max_size_mb" json:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" json:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" json:"max_age_days"`
}

// UIConfig holds REPL presentation settings.
type UIConfig struct {
	Markdown    bool   `toml:"markdown" json:"markdown"`
	Color       bool   `toml:"color" json:"color"`
	HistoryFile string `toml:"history_file" json:"history_file"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

const (
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "RAGCHAT_"

	configDirName  = ".ragchat"
	configFileName = "config.toml"
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:        "http://localhost:8000",
			TimeoutSeconds: 60,
			MaxRetries:     3,
			RateLimit:      10,
			RateBurst:      20,
			HealthInterval: 30,
		},
		Chat: ChatConfig{
			MaxNewTokens: 10000,
			Temperature:  0.7,
			DoSample:     true,
			UseRAG:       true,
			TopK:         5,
		},
		Documents: DocumentsConfig{
			CacheTTLSeconds: 300,
		},
		Storage: StorageConfig{
			Backend: "file",
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		UI: UIConfig{
			Markdown: true,
			Color:    true,
		},
	}
}

// Timeout returns the request timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}

// HealthInterval returns the health poll interval as a duration.
func (c *Config) HealthInterval() time.Duration {
	return time.Duration(c.API.HealthInterval) * time.Second
}

// CacheTTL returns the document cache lifetime as a duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Documents.CacheTTLSeconds) * time.Second
}

// =============================================================================
// PATHS
// =============================================================================

// ConfigDir returns ~/.ragchat, or a relative .ragchat if the home
// directory cannot be resolved.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return configDirName
	}
	return filepath.Join(home, configDirName)
}

// ConfigPath returns the default config file path.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), configFileName)
}

// StoragePath resolves the storage location, filling in a default under
// the config directory when none is set.
func (c *Config) StoragePath() string {
	if c.Storage.Path != "" {
		return c.Storage.Path
	}
	switch c.Storage.Backend {
	case "sqlite":
		return filepath.Join(ConfigDir(), "ragchat.db")
	default:
		return filepath.Join(ConfigDir(), "state")
	}
}

// HistoryPath resolves the REPL history file.
func (c *Config) HistoryPath() string {
	if c.UI.HistoryFile != "" {
		return c.UI.HistoryFile
	}
	return filepath.Join(ConfigDir(), "history")
}

// =============================================================================
// LOADING
// =============================================================================

// Load reads the config file at path (the default path when empty),
// applies .env and environment overrides, and validates the result.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg, err := LoadTOML(path)
	if err != nil {
		return nil, err
	}

	if err := LoadDotEnv(filepath.Dir(path)); err != nil {
		return nil, err
	}
	cfg.ApplyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file over the defaults. Keys absent from the
// file keep their default values.
func LoadTOML(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadDotEnv loads .env from the working directory and from dir. Variables
// already present in the environment win. Missing files are skipped.
func LoadDotEnv(dir string) error {
	for _, p := range []string{".env", filepath.Join(dir, ".env")} {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// SaveTOML writes the config atomically with 0600 permissions.
func (c *Config) SaveTOML(path string) error {
	var buf bytes.Buffer
	buf.WriteString("# ragchat configuration\n\n")
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFileWithDir(path, buf.Bytes(), 0600, 0700); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies RAGCHAT_* variables. Unparseable values are
// ignored and the file value is kept.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv(EnvPrefix + "BASE_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v, ok := envInt("TIMEOUT"); ok {
		c.API.TimeoutSeconds = v
	}
	if v, ok := envBool("USE_RAG"); ok {
		c.Chat.UseRAG = v
	}
	if v, ok := envInt("TOP_K"); ok {
		c.Chat.TopK = v
	}
	if v, ok := envInt("MAX_NEW_TOKENS"); ok {
		c.Chat.MaxNewTokens = v
	}
	if v := os.Getenv(EnvPrefix + "TEMPERATURE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Chat.Temperature = f
		}
	}
	if v := os.Getenv(EnvPrefix + "STORAGE"); v != "" {
		c.Storage.Backend = v
	}
	if v := os.Getenv(EnvPrefix + "STORAGE_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv(EnvPrefix + "LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(EnvPrefix + "LOG_FILE"); v != "" {
		c.Logging.File = v
	}
	if v, ok := envBool("NO_COLOR"); ok && v {
		c.UI.Color = false
	}
}

func envInt(name string) (int, bool) {
	v := os.Getenv(EnvPrefix + name)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envBool(name string) (bool, bool) {
	v := strings.ToLower(os.Getenv(EnvPrefix + name))
	switch v {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	}
	return false, false
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
	return e.Field + ": " + e.Message
}

// ValidationErrors collects every invalid field found by Validate.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, ve := range e {
		msgs[i] = ve.Error()
	}
	return "invalid configuration: " + strings.Join(msgs, "; ")
}

// Validate checks ranges and enumerations. It returns ValidationErrors or nil.
func (c *Config) Validate() error {
	var errs ValidationErrors
	add := func(field, msg string) {
		errs = append(errs, ValidationError{Field: field, Message: msg})
	}

	if u, err := url.Parse(c.API.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		add("api.base_url", "must be an absolute URL")
	} else if u.Scheme != "http" && u.Scheme != "https" {
		add("api.base_url", "scheme must be http or https")
	}
	if c.API.TimeoutSeconds <= 0 {
		add("api.timeout_seconds", "must be positive")
	}
	if c.API.MaxRetries < 0 {
		add("api.max_retries", "must not be negative")
	}
	if c.API.RateLimit < 0 {
		add("api.rate_limit", "must not be negative")
	}
	if c.API.RateLimit > 0 && c.API.RateBurst < 1 {
		add("api.rate_burst", "must be at least 1 when rate_limit is set")
	}
	if c.API.HealthInterval <= 0 {
		add("api.health_interval_seconds", "must be positive")
	}

	if c.Chat.MaxNewTokens < 1 || c.Chat.MaxNewTokens > 32768 {
		add("chat.max_new_tokens", "must be between 1 and 32768")
	}
	if c.Chat.Temperature < 0 || c.Chat.Temperature > 2 {
		add("chat.temperature", "must be between 0 and 2")
	}
	if c.Chat.TopK < 1 || c.Chat.TopK > 50 {
		add("chat.top_k", "must be between 1 and 50")
	}

	if c.Documents.CacheTTLSeconds <= 0 {
		add("documents.cache_ttl_seconds", "must be positive")
	}

	switch c.Storage.Backend {
	case "file", "sqlite", "memory":
	default:
		add("storage.backend", "must be one of file, sqlite, memory")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		add("logging.level", "must be one of debug, info, warn, error")
	}
	if c.Logging.MaxSizeMB < 0 || c.Logging.MaxBackups < 0 || c.Logging.MaxAgeDays < 0 {
		add("logging", "rotation limits must not be negative")
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// DOT-NOTATION ACCESS
// =============================================================================

// Get returns the value at a dotted key such as "chat.top_k".
func (c *Config) Get(key string) (interface{}, error) {
	v, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return v.Interface(), nil
}

// Set parses value into the field at a dotted key. The config is not
// validated; call Validate before saving.
func (c *Config) Set(key, value string) error {
	v, err := c.lookup(key)
	if err != nil {
		return err
	}
	if err := setFieldValue(v, value); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}

// Keys returns every settable dotted key in declaration order.
func (c *Config) Keys() []string {
	var keys []string
	root := reflect.ValueOf(c).Elem()
	for i := 0; i < root.NumField(); i++ {
		section := root.Type().Field(i)
		sv := root.Field(i)
		for j := 0; j < sv.NumField(); j++ {
			keys = append(keys, tomlName(section)+"."+tomlName(sv.Type().Field(j)))
		}
	}
	return keys
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(key)), ".")
	if len(parts) != 2 {
		return reflect.Value{}, fmt.Errorf("unknown config key %q: expected section.field", key)
	}
	v := reflect.ValueOf(c).Elem()
	for _, part := range parts {
		f, ok := fieldByTOML(v, part)
		if !ok {
			return reflect.Value{}, fmt.Errorf("unknown config key %q", key)
		}
		v = f
	}
	return v, nil
}

func fieldByTOML(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		if tomlName(t.Field(i)) == name {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

func tomlName(f reflect.StructField) string {
	tag := f.Tag.Get("toml")
	if name, _, _ := strings.Cut(tag, ","); name != "" {
		return name
	}
	return strings.ToLower(f.Name)
}

func setFieldValue(v reflect.Value, value string) error {
	switch v.Kind() {
	case reflect.String:
		v.SetString(value)
	case reflect.Int, reflect.Int64:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("expected an integer: %w", err)
		}
		v.SetInt(n)
	case reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("expected a number: %w", err)
		}
		v.SetFloat(f)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("expected true or false: %w", err)
		}
		v.SetBool(b)
	default:
		return fmt.Errorf("unsupported field type %s", v.Kind())
	}
	return nil
}

// =============================================================================
// GLOBAL INSTANCE
// =============================================================================

var (
	globalMu  sync.RWMutex
	globalCfg *Config
)

// Global returns the process-wide config, loading it from the default
// path on first use. A load failure falls back to defaults.
func Global() *Config {
	globalMu.RLock()
	cfg := globalCfg
	globalMu.RUnlock()
	if cfg != nil {
		return cfg
	}

	globalMu.Lock()
	defer globalMu.Unlock()
	if globalCfg == nil {
		loaded, err := Load("")
		if err != nil {
			loaded = Default()
		}
		globalCfg = loaded
	}
	return globalCfg
}

// SetGlobal replaces the process-wide config.
func SetGlobal(cfg *Config) {
	globalMu.Lock()
	globalCfg = cfg
	globalMu.Unlock()
}
