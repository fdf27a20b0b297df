package adapter

import (
	"fmt"

	"github.com/stevemurr/docadapter/store"
)

// Version selects which validation and sanitization rules apply.
type Version string

// NoVersion selects the default rules.
const NoVersion Version = ""

// VersionOf converts a string or numeric selector into a Version.
// nil and false mean NoVersion.
func VersionOf(v any) Version {
	switch t := v.(type) {
	case nil:
		return NoVersion
	case bool:
		if !t {
			return NoVersion
		}
	case Version:
		return t
	case string:
		return Version(t)
	}
	return Version(fmt.Sprint(v))
}

// Validator checks a document against the rules of a version. A non-nil
// error rejects the write and is returned to the caller unchanged.
type Validator interface {
	Validate(doc store.Document, version Version) error
}

// Sanitizer turns a stored document into its externally safe form.
type Sanitizer interface {
	Sanitize(doc store.Document, version Version) store.Document
}

// Hooks bundles both capabilities, e.g. a model registry.
type Hooks interface {
	Validator
	Sanitizer
}

// ValidatorFunc adapts a function to Validator.
type ValidatorFunc func(doc store.Document, version Version) error

func (f ValidatorFunc) Validate(doc store.Document, version Version) error {
	return f(doc, version)
}

// SanitizerFunc adapts a function to Sanitizer.
type SanitizerFunc func(doc store.Document, version Version) store.Document

func (f SanitizerFunc) Sanitize(doc store.Document, version Version) store.Document {
	return f(doc, version)
}

// AcceptAll is the default Validator; it never rejects.
var AcceptAll Validator = ValidatorFunc(func(store.Document, Version) error { return nil })

// Passthrough is the default Sanitizer; it returns documents unchanged.
var Passthrough Sanitizer = SanitizerFunc(func(doc store.Document, _ Version) store.Document { return doc })
