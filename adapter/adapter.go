package adapter

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/stevemurr/docadapter/store"
)

// ExtensionFunc is a custom operation registered with Extend. It receives
// the adapter it was registered on.
type ExtensionFunc func(ctx context.Context, a *Adapter, args ...any) (any, error)

// Adapter forwards CRUD calls to one store handle.
type Adapter struct {
	mu         sync.RWMutex
	store      store.Store
	extensions map[string]ExtensionFunc

	validator Validator
	sanitizer Sanitizer
	logger    Logger
}

// New creates an Adapter. Without WithStore it starts Unconfigured.
func New(opts ...Option) (*Adapter, error) {
	a := &Adapter{
		extensions: make(map[string]ExtensionFunc),
		validator:  AcceptAll,
		sanitizer:  Passthrough,
		logger:     discardLogger{},
	}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Configure builds a store from cfg and makes it the adapter's handle,
// replacing (and closing) any previous one. On error the adapter keeps its
// previous state.
func (a *Adapter) Configure(cfg store.Config) (bool, error) {
	s, err := store.New(cfg)
	if err != nil {
		return false, fmt.Errorf("configure store: %w", err)
	}

	a.mu.Lock()
	previous := a.store
	a.store = s
	a.mu.Unlock()

	a.logger.Info("store configured", "backend", cfg.ResolvedBackend(), "filename", cfg.Filename)
	if c, ok := previous.(io.Closer); ok {
		if err := c.Close(); err != nil {
			a.logger.Warn("closing replaced store failed", "error", err)
		}
	}
	return true, nil
}

// Configured reports whether the adapter holds a store handle.
func (a *Adapter) Configured() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.store != nil
}

// Store returns the current store handle, or ErrNotConfigured.
func (a *Adapter) Store() (store.Store, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.store == nil {
		return nil, ErrNotConfigured
	}
	return a.store, nil
}

// Close releases the store handle and returns the adapter to Unconfigured.
func (a *Adapter) Close() error {
	a.mu.Lock()
	s := a.store
	a.store = nil
	a.mu.Unlock()

	if c, ok := s.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Validate runs the configured validator.
func (a *Adapter) Validate(doc store.Document, version Version) error {
	return a.validator.Validate(doc, version)
}

// Sanitize runs the configured sanitizer.
func (a *Adapter) Sanitize(doc store.Document, version Version) store.Document {
	return a.sanitizer.Sanitize(doc, version)
}

// Create validates doc and inserts it, returning the stored document with
// its assigned _id. A validation error is returned as is and nothing is written.
func (a *Adapter) Create(ctx context.Context, doc store.Document, version Version) (store.Document, error) {
	s, err := a.Store()
	if err != nil {
		return nil, err
	}
	a.logger.Debug("create", "version", string(version))

	if err := a.Validate(doc, version); err != nil {
		a.logger.Warn("create rejected by validation", "version", string(version), "error", err)
		return nil, err
	}
	created, err := s.Insert(ctx, doc)
	if err != nil {
		a.logger.Error("store insert failed", "error", err)
		return nil, err
	}
	return created, nil
}

// Read returns every document matching q, each passed through Sanitize, in
// store order. No match yields an empty slice.
func (a *Adapter) Read(ctx context.Context, q store.Query, version Version) ([]store.Document, error) {
	s, err := a.Store()
	if err != nil {
		return nil, err
	}
	a.logger.Debug("read", "version", string(version))

	docs, err := s.Find(ctx, q)
	if err != nil {
		a.logger.Error("store find failed", "error", err)
		return nil, err
	}
	result := make([]store.Document, 0, len(docs))
	for _, doc := range docs {
		result = append(result, a.Sanitize(doc, version))
	}
	return result, nil
}

// Update validates body and merges its fields into every document matching
// q, returning the number of documents affected.
func (a *Adapter) Update(ctx context.Context, q store.Query, body store.Document, version Version) (int, error) {
	s, err := a.Store()
	if err != nil {
		return 0, err
	}
	a.logger.Debug("update", "version", string(version))

	if err := a.Validate(body, version); err != nil {
		a.logger.Warn("update rejected by validation", "version", string(version), "error", err)
		return 0, err
	}
	n, err := s.Update(ctx, q, body, store.UpdateOptions{Multi: true})
	if err != nil {
		a.logger.Error("store update failed", "error", err)
		return 0, err
	}
	return n, nil
}

// Delete removes every document matching q and returns how many were removed.
func (a *Adapter) Delete(ctx context.Context, q store.Query) (int, error) {
	s, err := a.Store()
	if err != nil {
		return 0, err
	}
	a.logger.Debug("delete")

	n, err := s.Remove(ctx, q, store.RemoveOptions{Multi: true})
	if err != nil {
		a.logger.Error("store remove failed", "error", err)
		return 0, err
	}
	return n, nil
}

// Extend registers fn under name, replacing any previous registration.
func (a *Adapter) Extend(name string, fn ExtensionFunc) error {
	if name == "" || fn == nil {
		return ErrInvalidExtension
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.extensions[name] = fn
	return nil
}

// Call invokes the extension registered under name.
func (a *Adapter) Call(ctx context.Context, name string, args ...any) (any, error) {
	a.mu.RLock()
	fn, ok := a.extensions[name]
	a.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMissingCapability, name)
	}
	return fn(ctx, a, args...)
}

// Extensions returns the registered extension names, sorted.
func (a *Adapter) Extensions() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	names := make([]string, 0, len(a.extensions))
	for name := range a.extensions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
