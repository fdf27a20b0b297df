// Package store defines the embedded document store the adapter forwards to,
// and the backends that implement it.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
)

// IDField is the document field holding the store-assigned identifier.
const IDField = "_id"

// Document is a schemaless record: field name to value.
type Document map[string]any

// ID returns the document identifier, or "" if it has none.
func (d Document) ID() string {
	id, _ := d[IDField].(string)
	return id
}

// Query describes filter criteria. A nil or empty query matches every document.
type Query map[string]any

// ByID returns a query matching the document with the given identifier.
func ByID(id string) Query {
	return Query{IDField: id}
}

// UpdateOptions controls how many documents an update may touch.
type UpdateOptions struct {
	// Multi updates every matching document instead of only the first.
	Multi bool
}

// RemoveOptions controls how many documents a remove may delete.
type RemoveOptions struct {
	// Multi removes every matching document instead of only the first.
	Multi bool
}

// Store is the capability set every embedded backend must implement.
// Documents passed in and returned are copies; callers never share state
// with the store.
type Store interface {
	// Insert stores a new document and returns it with its assigned _id.
	Insert(ctx context.Context, doc Document) (Document, error)

	// Find returns matching documents in insertion order. No match yields
	// an empty slice, not an error.
	Find(ctx context.Context, q Query) ([]Document, error)

	// Update merges patch into matching documents and returns how many
	// documents were affected.
	Update(ctx context.Context, q Query, patch Document, opts UpdateOptions) (int, error)

	// Remove deletes matching documents and returns how many were removed.
	Remove(ctx context.Context, q Query, opts RemoveOptions) (int, error)
}

var (
	// ErrDuplicateID is returned when inserting a document whose _id is taken.
	ErrDuplicateID = errors.New("store: duplicate _id")

	// ErrCannotModifyID is returned when an update patch changes _id.
	ErrCannotModifyID = errors.New("store: cannot modify _id")

	// ErrInvalidID is returned when a document carries a non-string _id.
	ErrInvalidID = errors.New("store: _id must be a non-empty string")

	// ErrUnknownOperator is returned for query operators the matcher does not support.
	ErrUnknownOperator = errors.New("store: unknown query operator")

	// ErrNotLoaded is returned by persistent stores used before Load.
	ErrNotLoaded = errors.New("store: datafile not loaded")

	// ErrCorruptDatafile is returned when a datafile line cannot be decoded.
	ErrCorruptDatafile = errors.New("store: corrupt datafile")

	// ErrNotEncodable is returned for documents that cannot be represented as JSON.
	ErrNotEncodable = errors.New("store: document is not JSON-encodable")
)

// codec sorts map keys, so encoded documents are byte-stable for identical content.
var codec = jsoniter.ConfigCompatibleWithStandardLibrary

// NewID generates a random document identifier.
func NewID() string {
	return uuid.NewString()
}

// prepareInsert normalizes doc and makes sure it carries a valid _id.
func prepareInsert(doc Document, gen func() string) (Document, error) {
	out, err := normalize(doc)
	if err != nil {
		return nil, err
	}
	raw, ok := out[IDField]
	if !ok || raw == nil {
		out[IDField] = gen()
		return out, nil
	}
	if id, ok := raw.(string); !ok || id == "" {
		return nil, ErrInvalidID
	}
	return out, nil
}

// applyPatch merges patch into doc using $set semantics.
func applyPatch(doc, patch Document) error {
	p, err := normalize(patch)
	if err != nil {
		return err
	}
	if raw, ok := p[IDField]; ok && !equal(raw, doc[IDField]) {
		return ErrCannotModifyID
	}
	for k, v := range p {
		if k == IDField {
			continue
		}
		setPath(doc, k, v)
	}
	return nil
}

// normalize returns a fresh copy of doc in the JSON value model: objects are
// map[string]any, arrays []any and numbers float64, whatever Go types the
// caller used. Memory-backed documents then hold exactly what a datafile or
// SQLite reload would produce.
func normalize(doc Document) (Document, error) {
	if doc == nil {
		return Document{}, nil
	}
	b, err := codec.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotEncodable, err)
	}
	var out Document
	if err := codec.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotEncodable, err)
	}
	if out == nil {
		out = Document{}
	}
	return out, nil
}

// Clone returns a deep copy of d. Nested typed containers are copied through
// the JSON value model.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	if out, err := normalize(d); err == nil {
		return out
	}
	return cloneDocument(d)
}

func cloneDocument(src Document) Document {
	if src == nil {
		return nil
	}
	dst := make(Document, len(src))
	for k, v := range src {
		dst[k] = cloneValue(v)
	}
	return dst
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case Document:
		return map[string]any(cloneDocument(t))
	case map[string]any:
		return map[string]any(cloneDocument(t))
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}
