package adapter_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevemurr/docadapter/adapter"
	"github.com/stevemurr/docadapter/store"
)

// spyStore counts calls and can be told to fail.
type spyStore struct {
	store.Store
	mu      sync.Mutex
	calls   map[string]int
	failErr error
	closed  bool
}

func newSpyStore() *spyStore {
	return &spyStore{Store: store.NewMemoryStore(), calls: map[string]int{}}
}

func (s *spyStore) record(op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[op]++
	return s.failErr
}

func (s *spyStore) count(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

func (s *spyStore) Insert(ctx context.Context, doc store.Document) (store.Document, error) {
	if err := s.record("insert"); err != nil {
		return nil, err
	}
	return s.Store.Insert(ctx, doc)
}

func (s *spyStore) Find(ctx context.Context, q store.Query) ([]store.Document, error) {
	if err := s.record("find"); err != nil {
		return nil, err
	}
	return s.Store.Find(ctx, q)
}

func (s *spyStore) Update(ctx context.Context, q store.Query, patch store.Document, opts store.UpdateOptions) (int, error) {
	if err := s.record("update"); err != nil {
		return 0, err
	}
	if !opts.Multi {
		return 0, errors.New("spy: expected multi update")
	}
	return s.Store.Update(ctx, q, patch, opts)
}

func (s *spyStore) Remove(ctx context.Context, q store.Query, opts store.RemoveOptions) (int, error) {
	if err := s.record("remove"); err != nil {
		return 0, err
	}
	if !opts.Multi {
		return 0, errors.New("spy: expected multi remove")
	}
	return s.Store.Remove(ctx, q, opts)
}

func (s *spyStore) Close() error {
	s.closed = true
	return nil
}

var errNameRequired = errors.New("name is required")

// requireName rejects documents without a name unless version is "loose".
var requireName = adapter.ValidatorFunc(func(doc store.Document, version adapter.Version) error {
	if version == "loose" {
		return nil
	}
	if _, ok := doc["name"]; !ok {
		return errNameRequired
	}
	return nil
})

func TestWorkedExample(t *testing.T) {
	configs := map[string]store.Config{
		"memory": {InMemoryOnly: true},
		"json":   {Filename: filepath.Join(t.TempDir(), "docs.db"), Autoload: true},
		"sqlite": {Backend: store.BackendSQLite, Filename: filepath.Join(t.TempDir(), "docs.sqlite")},
	}
	for name, cfg := range configs {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			a, err := adapter.New()
			require.NoError(t, err)
			defer a.Close()

			ok, err := a.Configure(cfg)
			require.NoError(t, err)
			require.True(t, ok)

			created, err := a.Create(ctx, store.Document{"name": "a"}, adapter.NoVersion)
			require.NoError(t, err)
			assert.Equal(t, "a", created["name"])
			assert.NotEmpty(t, created.ID())

			docs, err := a.Read(ctx, store.Query{"name": "a"}, adapter.NoVersion)
			require.NoError(t, err)
			assert.Equal(t, []store.Document{created}, docs)

			n, err := a.Update(ctx, store.Query{"name": "a"}, store.Document{"name": "b"}, adapter.NoVersion)
			require.NoError(t, err)
			assert.Equal(t, 1, n)

			docs, err = a.Read(ctx, store.Query{"name": "a"}, adapter.NoVersion)
			require.NoError(t, err)
			assert.NotNil(t, docs)
			assert.Empty(t, docs)

			n, err = a.Delete(ctx, store.Query{"name": "b"})
			require.NoError(t, err)
			assert.Equal(t, 1, n)

			docs, err = a.Read(ctx, store.Query{"name": "b"}, adapter.NoVersion)
			require.NoError(t, err)
			assert.Empty(t, docs)
		})
	}
}

func TestCreateValidationBlocksWrite(t *testing.T) {
	ctx := context.Background()
	spy := newSpyStore()
	a, err := adapter.New(adapter.WithStore(spy), adapter.WithValidator(requireName))
	require.NoError(t, err)

	_, err = a.Create(ctx, store.Document{"title": "no name"}, adapter.NoVersion)
	assert.ErrorIs(t, err, errNameRequired)
	assert.Equal(t, 0, spy.count("insert"))

	_, err = a.Create(ctx, store.Document{"title": "no name"}, "loose")
	require.NoError(t, err)
	assert.Equal(t, 1, spy.count("insert"))
}

func TestUpdateValidationBlocksWrite(t *testing.T) {
	ctx := context.Background()
	spy := newSpyStore()
	a, err := adapter.New(adapter.WithStore(spy), adapter.WithValidator(requireName))
	require.NoError(t, err)

	_, err = a.Create(ctx, store.Document{"name": "a", "n": 1.0}, adapter.NoVersion)
	require.NoError(t, err)

	_, err = a.Update(ctx, store.Query{"name": "a"}, store.Document{"n": 2.0}, adapter.NoVersion)
	assert.ErrorIs(t, err, errNameRequired)
	assert.Equal(t, 0, spy.count("update"))

	n, err := a.Update(ctx, store.Query{"name": "a"}, store.Document{"n": 2.0}, "loose")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	docs, err := a.Read(ctx, nil, adapter.NoVersion)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "a", docs[0]["name"], "update merges instead of replacing")
	assert.Equal(t, 2.0, docs[0]["n"])
}

func TestUpdateAndDeleteAreMulti(t *testing.T) {
	ctx := context.Background()
	spy := newSpyStore()
	a, err := adapter.New(adapter.WithStore(spy))
	require.NoError(t, err)

	for _, name := range []string{"x", "x", "y"} {
		_, err := a.Create(ctx, store.Document{"name": name}, adapter.NoVersion)
		require.NoError(t, err)
	}

	n, err := a.Update(ctx, store.Query{"name": "x"}, store.Document{"seen": true}, adapter.NoVersion)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = a.Delete(ctx, store.Query{"seen": true})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	docs, err := a.Read(ctx, nil, adapter.NoVersion)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "y", docs[0]["name"])
}

func TestReadSanitizesEveryResult(t *testing.T) {
	ctx := context.Background()
	var seen []adapter.Version
	hide := adapter.SanitizerFunc(func(doc store.Document, version adapter.Version) store.Document {
		seen = append(seen, version)
		out := store.Document{}
		for k, v := range doc {
			if k != "secret" {
				out[k] = v
			}
		}
		return out
	})
	a, err := adapter.New(adapter.WithStore(store.NewMemoryStore()), adapter.WithSanitizer(hide))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := a.Create(ctx, store.Document{"i": float64(i), "secret": "s"}, adapter.NoVersion)
		require.NoError(t, err)
	}

	docs, err := a.Read(ctx, nil, "v2")
	require.NoError(t, err)
	require.Len(t, docs, 3)
	for i, doc := range docs {
		assert.Equal(t, float64(i), doc["i"])
		assert.NotContains(t, doc, "secret")
	}
	assert.Equal(t, []adapter.Version{"v2", "v2", "v2"}, seen)
}

func TestStoreFailuresPropagate(t *testing.T) {
	ctx := context.Background()
	storeErr := errors.New("disk on fire")
	spy := newSpyStore()
	spy.failErr = storeErr
	a, err := adapter.New(adapter.WithStore(spy))
	require.NoError(t, err)

	_, err = a.Create(ctx, store.Document{"name": "a"}, adapter.NoVersion)
	assert.ErrorIs(t, err, storeErr)
	_, err = a.Read(ctx, nil, adapter.NoVersion)
	assert.ErrorIs(t, err, storeErr)
	_, err = a.Update(ctx, nil, store.Document{"name": "a"}, adapter.NoVersion)
	assert.ErrorIs(t, err, storeErr)
	_, err = a.Delete(ctx, nil)
	assert.ErrorIs(t, err, storeErr)

	assert.Equal(t, 1, spy.count("insert"), "no retries")
}

func TestUnconfigured(t *testing.T) {
	ctx := context.Background()
	a, err := adapter.New()
	require.NoError(t, err)
	assert.False(t, a.Configured())

	_, err = a.Create(ctx, store.Document{}, adapter.NoVersion)
	assert.ErrorIs(t, err, adapter.ErrNotConfigured)
	_, err = a.Read(ctx, nil, adapter.NoVersion)
	assert.ErrorIs(t, err, adapter.ErrNotConfigured)
	_, err = a.Update(ctx, nil, store.Document{}, adapter.NoVersion)
	assert.ErrorIs(t, err, adapter.ErrNotConfigured)
	_, err = a.Delete(ctx, nil)
	assert.ErrorIs(t, err, adapter.ErrNotConfigured)
}

func TestConfigureReplacesHandle(t *testing.T) {
	ctx := context.Background()
	spy := newSpyStore()
	a, err := adapter.New(adapter.WithStore(spy))
	require.NoError(t, err)
	_, err = a.Create(ctx, store.Document{"name": "old"}, adapter.NoVersion)
	require.NoError(t, err)

	ok, err := a.Configure(store.Config{InMemoryOnly: true})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, spy.closed)

	docs, err := a.Read(ctx, nil, adapter.NoVersion)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestConfigureFailureKeepsState(t *testing.T) {
	a, err := adapter.New()
	require.NoError(t, err)

	ok, err := a.Configure(store.Config{Backend: "redis", Filename: "x"})
	assert.Error(t, err)
	assert.False(t, ok)
	assert.False(t, a.Configured())
}

func TestClose(t *testing.T) {
	spy := newSpyStore()
	a, err := adapter.New(adapter.WithStore(spy))
	require.NoError(t, err)

	require.NoError(t, a.Close())
	assert.True(t, spy.closed)
	assert.False(t, a.Configured())
	require.NoError(t, a.Close())
}

func TestNilOptions(t *testing.T) {
	for name, opt := range map[string]adapter.Option{
		"validator": adapter.WithValidator(nil),
		"sanitizer": adapter.WithSanitizer(nil),
		"hooks":     adapter.WithHooks(nil),
		"logger":    adapter.WithLogger(nil),
		"store":     adapter.WithStore(nil),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := adapter.New(opt)
			assert.ErrorIs(t, err, adapter.ErrNilOption)
		})
	}
}

func TestExtend(t *testing.T) {
	ctx := context.Background()
	a, err := adapter.New(adapter.WithStore(store.NewMemoryStore()), adapter.WithValidator(requireName))
	require.NoError(t, err)

	// createMany validates everything before writing anything.
	err = a.Extend("createMany", func(ctx context.Context, self *adapter.Adapter, args ...any) (any, error) {
		for _, arg := range args {
			if err := self.Validate(arg.(store.Document), adapter.NoVersion); err != nil {
				return nil, err
			}
		}
		for _, arg := range args {
			if _, err := self.Create(ctx, arg.(store.Document), adapter.NoVersion); err != nil {
				return nil, err
			}
		}
		return len(args), nil
	})
	require.NoError(t, err)

	_, err = a.Call(ctx, "createMany", store.Document{"name": "a"}, store.Document{})
	assert.ErrorIs(t, err, errNameRequired)
	docs, err := a.Read(ctx, nil, adapter.NoVersion)
	require.NoError(t, err)
	assert.Empty(t, docs)

	n, err := a.Call(ctx, "createMany", store.Document{"name": "a"}, store.Document{"name": "b"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Re-registering overwrites.
	require.NoError(t, a.Extend("createMany", func(context.Context, *adapter.Adapter, ...any) (any, error) {
		return "replaced", nil
	}))
	got, err := a.Call(ctx, "createMany")
	require.NoError(t, err)
	assert.Equal(t, "replaced", got)

	assert.Equal(t, []string{"createMany"}, a.Extensions())
}

func TestCallMissingExtension(t *testing.T) {
	a, err := adapter.New()
	require.NoError(t, err)

	_, err = a.Call(context.Background(), "customOp")
	assert.ErrorIs(t, err, adapter.ErrMissingCapability)

	assert.ErrorIs(t, a.Extend("", func(context.Context, *adapter.Adapter, ...any) (any, error) { return nil, nil }), adapter.ErrInvalidExtension)
	assert.ErrorIs(t, a.Extend("x", nil), adapter.ErrInvalidExtension)
}

func TestVersionOf(t *testing.T) {
	assert.Equal(t, adapter.NoVersion, adapter.VersionOf(nil))
	assert.Equal(t, adapter.NoVersion, adapter.VersionOf(false))
	assert.Equal(t, adapter.Version("v1"), adapter.VersionOf("v1"))
	assert.Equal(t, adapter.Version("2"), adapter.VersionOf(2))
	assert.Equal(t, adapter.Version("2.5"), adapter.VersionOf(2.5))
	assert.Equal(t, adapter.Version("v3"), adapter.VersionOf(adapter.Version("v3")))
}

func TestLogging(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	a, err := adapter.New(adapter.WithLogger(logger), adapter.WithValidator(requireName))
	require.NoError(t, err)
	_, err = a.Configure(store.Config{InMemoryOnly: true})
	require.NoError(t, err)

	_, err = a.Create(ctx, store.Document{}, "v1")
	require.Error(t, err)

	out := buf.String()
	assert.Contains(t, out, `"msg":"store configured"`)
	assert.Contains(t, out, `"backend":"memory"`)
	assert.Contains(t, out, `"msg":"create"`)
	assert.Contains(t, out, `"msg":"create rejected by validation"`)
	assert.Contains(t, out, `"version":"v1"`)
}
