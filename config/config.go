// Package config loads adapter configuration from YAML and the environment
// and builds a wired Adapter from it.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/stevemurr/docadapter/adapter"
	"github.com/stevemurr/docadapter/model"
	"github.com/stevemurr/docadapter/store"
)

// Environment variables that override file settings.
const (
	EnvBackend      = "DOCADAPTER_BACKEND"
	EnvFilename     = "DOCADAPTER_FILENAME"
	EnvInMemory     = "DOCADAPTER_IN_MEMORY"
	EnvAutoload     = "DOCADAPTER_AUTOLOAD"
	EnvSQLiteDriver = "DOCADAPTER_SQLITE_DRIVER"
	EnvModels       = "DOCADAPTER_MODELS"
	EnvLogLevel     = "DOCADAPTER_LOG_LEVEL"
)

// Config is everything needed to build an Adapter.
type Config struct {
	Store store.Config `yaml:"store"`

	// ModelsFile is an optional YAML models document (see model.Parse).
	ModelsFile string `yaml:"models"`

	// LogLevel is debug, info, warn or error. Default: info.
	LogLevel string `yaml:"logLevel"`
}

// Default returns an in-memory configuration.
func Default() Config {
	return Config{
		Store:    store.Config{InMemoryOnly: true, Autoload: true},
		LogLevel: "info",
	}
}

// Load reads path (if non-empty) over Default and then applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		// A file that configures a store turns off the in-memory default.
		cfg.Store.InMemoryOnly = false
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func (c *Config) applyEnv() error {
	c.Store.Backend = env(EnvBackend, c.Store.Backend)
	c.Store.Filename = env(EnvFilename, c.Store.Filename)
	c.Store.SQLiteDriver = env(EnvSQLiteDriver, c.Store.SQLiteDriver)
	c.ModelsFile = env(EnvModels, c.ModelsFile)
	c.LogLevel = env(EnvLogLevel, c.LogLevel)

	var err error
	if c.Store.InMemoryOnly, err = envBool(EnvInMemory, c.Store.InMemoryOnly); err != nil {
		return err
	}
	if c.Store.Autoload, err = envBool(EnvAutoload, c.Store.Autoload); err != nil {
		return err
	}
	return nil
}

// Level maps LogLevel to a slog level.
func (c Config) Level() (slog.Level, error) {
	switch strings.ToLower(c.LogLevel) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level: %q", c.LogLevel)
}

// Open builds a configured Adapter: models from ModelsFile become the
// validate/sanitize hooks and the store is built from Store. Extra options
// are applied after the ones derived from cfg.
func Open(cfg Config, logger adapter.Logger, opts ...adapter.Option) (*adapter.Adapter, error) {
	base := []adapter.Option{}
	if logger != nil {
		base = append(base, adapter.WithLogger(logger))
	}
	if cfg.ModelsFile != "" {
		models, err := model.LoadFile(cfg.ModelsFile)
		if err != nil {
			return nil, err
		}
		base = append(base, adapter.WithHooks(models))
	}

	a, err := adapter.New(append(base, opts...)...)
	if err != nil {
		return nil, err
	}
	if _, err := a.Configure(cfg.Store); err != nil {
		return nil, err
	}
	return a, nil
}

// NewLogger returns a JSON slog logger at cfg's level writing to stderr.
func NewLogger(cfg Config) (*slog.Logger, error) {
	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})), nil
}
