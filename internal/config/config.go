// Package config loads snippet-box configuration.
//
// PRECEDENCE (later wins):
//
//	built-in defaults < YAML file < SNIPBOX_* environment variables
//
// Environment variables map to keys by dropping the prefix, lowercasing and
// turning underscores into dots: SNIPBOX_STORE_DRIVER sets store.driver.
// Entry points call LoadDotEnv first so a local .env file can populate the
// environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "SNIPBOX_"

// Store drivers.
const (
	DriverSQLite = "sqlite"
	DriverBadger = "badger"
	DriverMemory = "memory"
)

// Config is the full configuration tree.
type Config struct {
	Server ServerConfig `koanf:"server"`
	Store  StoreConfig  `koanf:"store"`
	Source SourceConfig `koanf:"source"`
	Auth   AuthConfig   `koanf:"auth"`
	Log    LogConfig    `koanf:"log"`
}

type ServerConfig struct {
	Port int `koanf:"port"`
}

type StoreConfig struct {
	// Driver is one of sqlite, badger or memory.
	Driver string `koanf:"driver"`
	// Path is the sqlite file or the badger directory.
	Path string `koanf:"path"`
}

// SourceConfig selects where Refresh reads external snippets from.
// URL wins over File; with neither set, the bundled list is used.
type SourceConfig struct {
	URL  string `koanf:"url"`
	File string `koanf:"file"`
	// Interval between background refreshes. Zero disables them.
	Interval time.Duration `koanf:"interval"`
	// Rate caps HTTP fetches per second. Zero or less means unlimited.
	Rate float64 `koanf:"rate"`
}

type AuthConfig struct {
	// Secret signs API tokens. Empty disables authentication.
	Secret string `koanf:"secret"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Defaults returns the configuration used when nothing else is set.
func Defaults() map[string]any {
	return map[string]any{
		"server": map[string]any{"port": 8080},
		"store": map[string]any{
			"driver": DriverSQLite,
			"path":   "data/snippetbox.db",
		},
		"source": map[string]any{
			"url":      "",
			"file":     "",
			"interval": time.Duration(0),
			"rate":     1.0,
		},
		"auth": map[string]any{"secret": ""},
		"log": map[string]any{
			"level":  "info",
			"format": "text",
		},
	}
}

// Load reads defaults, then path (skipped when empty), then the environment.
func Load(path string) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(mapProvider(Defaults()), nil); err != nil {
		return Config{}, fmt.Errorf("config: loading defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("config: loading %s: %w", path, err)
		}
	}

	transform := func(s string) string {
		s = strings.TrimPrefix(s, EnvPrefix)
		return strings.ReplaceAll(strings.ToLower(s), "_", ".")
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", transform), nil); err != nil {
		return Config{}, fmt.Errorf("config: loading env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case DriverSQLite, DriverBadger, DriverMemory:
	default:
		return fmt.Errorf("config: unknown store.driver %q", c.Store.Driver)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d out of range", c.Server.Port)
	}
	if c.Source.Interval < 0 {
		return fmt.Errorf("config: source.interval must not be negative")
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("config: unknown log.format %q", c.Log.Format)
	}
	return nil
}

// LoadDotEnv loads .env files into the process environment. Missing files are
// ignored, and variables that are already set are left alone.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("config: loading %s: %w", f, err)
		}
	}
	return nil
}

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return 0, fmt.Errorf("config: unknown log.level %q", level)
	}
	return l, nil
}

// NewLogger builds the process logger described by c.
func (c LogConfig) NewLogger(w io.Writer) *slog.Logger {
	level, err := ParseLevel(c.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// mapProvider feeds a plain map to koanf.
type mapProvider map[string]any

func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, errors.New("config: map provider does not support ReadBytes")
}

func (m mapProvider) Read() (map[string]any, error) {
	return m, nil
}
