package store

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
)

// JSONFileStore is a MemoryStore persisted to a newline-delimited JSON
// datafile, one document per line.
//
// The whole datafile is rewritten (temp file + rename) after every mutation.
type JSONFileStore struct {
	mem    *MemoryStore
	path   string
	loaded atomic.Bool
}

// NewJSONFileStore creates a store backed by the datafile at path. When
// autoload is false, Load must be called before the store is used.
func NewJSONFileStore(path string, autoload bool) (*JSONFileStore, error) {
	return newJSONFileStore(path, autoload, nil)
}

func newJSONFileStore(path string, autoload bool, gen func() string) (*JSONFileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	s := &JSONFileStore{mem: newMemoryStore(gen), path: path}
	s.mem.onChange = s.persist
	if autoload {
		if err := s.Load(context.Background()); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Path returns the datafile location.
func (s *JSONFileStore) Path() string {
	return s.path
}

// Load reads the datafile, replacing everything held in memory.
// A missing datafile loads as an empty collection.
func (s *JSONFileStore) Load(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	docs, err := readDatafile(s.path)
	if err != nil {
		return err
	}
	s.mem.mu.Lock()
	s.mem.replace(docs)
	s.mem.mu.Unlock()
	s.loaded.Store(true)
	return nil
}

func (s *JSONFileStore) Insert(ctx context.Context, doc Document) (Document, error) {
	if !s.loaded.Load() {
		return nil, ErrNotLoaded
	}
	return s.mem.Insert(ctx, doc)
}

func (s *JSONFileStore) Find(ctx context.Context, q Query) ([]Document, error) {
	if !s.loaded.Load() {
		return nil, ErrNotLoaded
	}
	return s.mem.Find(ctx, q)
}

func (s *JSONFileStore) Update(ctx context.Context, q Query, patch Document, opts UpdateOptions) (int, error) {
	if !s.loaded.Load() {
		return 0, ErrNotLoaded
	}
	return s.mem.Update(ctx, q, patch, opts)
}

func (s *JSONFileStore) Remove(ctx context.Context, q Query, opts RemoveOptions) (int, error) {
	if !s.loaded.Load() {
		return 0, ErrNotLoaded
	}
	return s.mem.Remove(ctx, q, opts)
}

func readDatafile(path string) ([]Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var docs []Document
	seen := make(map[string]bool)
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		var doc Document
		if err := codec.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("%w: %s line %d: %v", ErrCorruptDatafile, path, line, err)
		}
		id := doc.ID()
		if id == "" || seen[id] {
			return nil, fmt.Errorf("%w: %s line %d: missing or duplicate _id", ErrCorruptDatafile, path, line)
		}
		seen[id] = true
		docs = append(docs, doc)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}

// persist rewrites the datafile. It runs under the memory store's write lock.
func (s *JSONFileStore) persist(docs []Document) error {
	var buf bytes.Buffer
	for _, doc := range docs {
		b, err := codec.Marshal(doc)
		if err != nil {
			return err
		}
		buf.Write(b)
		buf.WriteByte('\n')
	}
	tmp := s.path + "~"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
