package adapter

import (
	"github.com/stevemurr/docadapter/store"
)

// Logger receives operational messages. *slog.Logger satisfies it.
//
// Debug level: every CRUD call with its version
// Info level: store (re)configuration
// Warn level: rejected validations, failures closing a replaced store
// Error level: store failures.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type discardLogger struct{}

func (discardLogger) Debug(string, ...any) {}
func (discardLogger) Info(string, ...any)  {}
func (discardLogger) Warn(string, ...any)  {}
func (discardLogger) Error(string, ...any) {}

// Option configures an Adapter.
type Option func(*Adapter) error

// WithValidator sets the hook run before every create and update.
func WithValidator(v Validator) Option {
	return func(a *Adapter) error {
		if v == nil {
			return ErrNilOption
		}
		a.validator = v
		return nil
	}
}

// WithSanitizer sets the hook applied to every document a read returns.
func WithSanitizer(s Sanitizer) Option {
	return func(a *Adapter) error {
		if s == nil {
			return ErrNilOption
		}
		a.sanitizer = s
		return nil
	}
}

// WithHooks sets both the validator and the sanitizer from one value.
func WithHooks(h Hooks) Option {
	return func(a *Adapter) error {
		if h == nil {
			return ErrNilOption
		}
		a.validator = h
		a.sanitizer = h
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(l Logger) Option {
	return func(a *Adapter) error {
		if l == nil {
			return ErrNilOption
		}
		a.logger = l
		return nil
	}
}

// WithStore starts the adapter Configured with an existing store handle.
func WithStore(s store.Store) Option {
	return func(a *Adapter) error {
		if s == nil {
			return ErrNilOption
		}
		a.store = s
		return nil
	}
}
