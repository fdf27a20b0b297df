package store

import (
	"context"
	"sync"
)

// MemoryStore keeps every document in memory, in insertion order.
// Data is lost on restart. Safe for concurrent use.
type MemoryStore struct {
	mu    sync.RWMutex
	docs  []Document
	byID  map[string]int
	newID func() string

	// onChange runs under the write lock after every successful mutation.
	onChange func(docs []Document) error
}

func NewMemoryStore() *MemoryStore {
	return newMemoryStore(nil)
}

func newMemoryStore(gen func() string) *MemoryStore {
	if gen == nil {
		gen = NewID
	}
	return &MemoryStore{byID: make(map[string]int), newID: gen}
}

func (m *MemoryStore) Insert(ctx context.Context, doc Document) (Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	stored, err := prepareInsert(doc, m.newID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	id := stored.ID()
	if _, exists := m.byID[id]; exists {
		return nil, ErrDuplicateID
	}
	m.docs = append(m.docs, stored)
	m.byID[id] = len(m.docs) - 1
	if err := m.changed(); err != nil {
		m.docs = m.docs[:len(m.docs)-1]
		delete(m.byID, id)
		return nil, err
	}
	return cloneDocument(stored), nil
}

func (m *MemoryStore) Find(ctx context.Context, q Query) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx, err := m.matching(q, true)
	if err != nil {
		return nil, err
	}
	result := make([]Document, 0, len(idx))
	for _, i := range idx {
		result = append(result, cloneDocument(m.docs[i]))
	}
	return result, nil
}

func (m *MemoryStore) Update(ctx context.Context, q Query, patch Document, opts UpdateOptions) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	idx, err := m.matching(q, opts.Multi)
	if err != nil {
		return 0, err
	}

	// Patch copies first so a failing patch leaves the collection untouched.
	updated := make([]Document, len(idx))
	for n, i := range idx {
		doc := cloneDocument(m.docs[i])
		if err := applyPatch(doc, patch); err != nil {
			return 0, err
		}
		updated[n] = doc
	}
	previous := make([]Document, len(idx))
	for n, i := range idx {
		previous[n] = m.docs[i]
		m.docs[i] = updated[n]
	}
	if err := m.changed(); err != nil {
		for n, i := range idx {
			m.docs[i] = previous[n]
		}
		return 0, err
	}
	return len(idx), nil
}

func (m *MemoryStore) Remove(ctx context.Context, q Query, opts RemoveOptions) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	idx, err := m.matching(q, opts.Multi)
	if err != nil {
		return 0, err
	}
	if len(idx) == 0 {
		return 0, nil
	}

	previous := m.docs
	drop := make(map[int]bool, len(idx))
	for _, i := range idx {
		drop[i] = true
	}
	kept := make([]Document, 0, len(m.docs)-len(idx))
	for i, doc := range m.docs {
		if !drop[i] {
			kept = append(kept, doc)
		}
	}
	m.replace(kept)
	if err := m.changed(); err != nil {
		m.replace(previous)
		return 0, err
	}
	return len(idx), nil
}

// Len returns the number of stored documents.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

// matching returns positions of documents matching q. Callers hold the lock.
func (m *MemoryStore) matching(q Query, multi bool) ([]int, error) {
	// Fast path for identifier lookups.
	if len(q) == 1 {
		if id, ok := q[IDField].(string); ok {
			if i, exists := m.byID[id]; exists {
				return []int{i}, nil
			}
			return nil, nil
		}
	}
	var idx []int
	for i, doc := range m.docs {
		ok, err := Match(doc, q)
		if err != nil {
			return nil, err
		}
		if ok {
			idx = append(idx, i)
			if !multi {
				break
			}
		}
	}
	return idx, nil
}

// replace swaps the document set and rebuilds the id index. Callers hold the lock.
func (m *MemoryStore) replace(docs []Document) {
	m.docs = docs
	m.byID = make(map[string]int, len(docs))
	for i, doc := range docs {
		m.byID[doc.ID()] = i
	}
}

func (m *MemoryStore) changed() error {
	if m.onChange == nil {
		return nil
	}
	return m.onChange(m.docs)
}
