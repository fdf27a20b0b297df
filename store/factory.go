package store

import (
	"fmt"
)

// Backend names accepted by Config.Backend.
const (
	BackendMemory = "memory"
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Config selects and configures a backend.
type Config struct {
	// Backend is one of "memory", "json" or "sqlite". When empty it is
	// "memory" if InMemoryOnly is set or Filename is empty, else "json".
	Backend string `yaml:"backend"`

	// Filename is the datafile (json) or database file (sqlite).
	Filename string `yaml:"filename"`

	// InMemoryOnly forces the memory backend regardless of Filename.
	InMemoryOnly bool `yaml:"inMemoryOnly"`

	// Autoload loads the json datafile during construction. Without it the
	// caller must call Load before using the store.
	Autoload bool `yaml:"autoload"`

	// SQLiteDriver is DriverCgo (default) or DriverPureGo.
	SQLiteDriver string `yaml:"sqliteDriver"`

	// IDGenerator overrides NewID for assigning document identifiers.
	IDGenerator func() string `yaml:"-"`
}

// ResolvedBackend returns the backend New will build for c.
func (c Config) ResolvedBackend() string {
	if c.InMemoryOnly {
		return BackendMemory
	}
	if c.Backend != "" {
		return c.Backend
	}
	if c.Filename == "" {
		return BackendMemory
	}
	return BackendJSON
}

// New creates a Store based on the configured backend.
//
// Supported backends:
//
//	"memory" - In-memory (ephemeral)
//	"json"   - Newline-delimited JSON datafile at Filename
//	"sqlite" - SQLite database at Filename
func New(cfg Config) (Store, error) {
	switch backend := cfg.ResolvedBackend(); backend {
	case BackendMemory:
		return newMemoryStore(cfg.IDGenerator), nil
	case BackendJSON:
		if cfg.Filename == "" {
			return nil, fmt.Errorf("store backend %q requires a filename", backend)
		}
		return newJSONFileStore(cfg.Filename, cfg.Autoload, cfg.IDGenerator)
	case BackendSQLite:
		if cfg.Filename == "" {
			return nil, fmt.Errorf("store backend %q requires a filename", backend)
		}
		return newSQLiteStore(cfg.Filename, cfg.SQLiteDriver, cfg.IDGenerator)
	default:
		return nil, fmt.Errorf("unknown store backend: %q (supported: memory, json, sqlite)", backend)
	}
}
