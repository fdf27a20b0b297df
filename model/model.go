// Package model holds versioned rule sets for documents and implements the
// adapter's Validator and Sanitizer hooks on top of them.
package model

import (
	"errors"
	"sort"
	"sync"

	"github.com/stevemurr/docadapter/adapter"
	"github.com/stevemurr/docadapter/schema"
	"github.com/stevemurr/docadapter/store"
)

// Rules describe one version of a data model.
type Rules struct {
	// Schema is a JSON Schema checked on create and update. Nil accepts anything.
	Schema map[string]any `yaml:"schema"`

	// Hidden fields are stripped from documents returned by reads.
	Hidden []string `yaml:"hidden"`

	// ReadOnly fields may not appear in documents being written.
	ReadOnly []string `yaml:"readOnly"`
}

// Registry maps versions to rules. Versions without rules fall back to the
// rules registered for adapter.NoVersion; with none at all every document
// passes and is returned as is.
type Registry struct {
	mu       sync.RWMutex
	versions map[adapter.Version]Rules
}

var _ adapter.Hooks = (*Registry)(nil)

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{versions: make(map[adapter.Version]Rules)}
}

// Register sets the rules for version, replacing any previous ones.
func (r *Registry) Register(version adapter.Version, rules Rules) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.versions[version] = rules
}

// Rules returns the rules applied to version and whether any were found.
func (r *Registry) Rules(version adapter.Version) (Rules, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if rules, ok := r.versions[version]; ok {
		return rules, true
	}
	rules, ok := r.versions[adapter.NoVersion]
	return rules, ok
}

// Versions returns every registered version, sorted.
func (r *Registry) Versions() []adapter.Version {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]adapter.Version, 0, len(r.versions))
	for v := range r.versions {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Validate checks doc against the schema and read-only fields of version.
// Failures are reported as a *schema.ValidationError.
func (r *Registry) Validate(doc store.Document, version adapter.Version) error {
	rules, ok := r.Rules(version)
	if !ok {
		return nil
	}

	verr := &schema.ValidationError{}
	if err := schema.Validate(rules.Schema, doc); err != nil {
		if !errors.As(err, &verr) {
			return err
		}
	}
	for _, field := range rules.ReadOnly {
		if _, present := doc[field]; present {
			verr.Add("$."+field, "field is read-only")
		}
	}
	return verr.Err()
}

// Sanitize returns a deep copy of doc without the hidden fields of version.
func (r *Registry) Sanitize(doc store.Document, version adapter.Version) store.Document {
	out := doc.Clone()
	if out == nil {
		return nil
	}
	rules, _ := r.Rules(version)
	for _, field := range rules.Hidden {
		delete(out, field)
	}
	return out
}
