package adapter

import "errors"

var (
	// ErrNotConfigured is returned by CRUD calls before Configure succeeds.
	ErrNotConfigured = errors.New("docadapter: adapter is not configured")

	// ErrMissingCapability is returned when calling an extension that was never registered.
	ErrMissingCapability = errors.New("docadapter: missing capability")

	// ErrInvalidExtension is returned by Extend for an empty name or nil function.
	ErrInvalidExtension = errors.New("docadapter: extension needs a name and a function")

	// ErrNilOption is returned by New when an option is given a nil dependency.
	ErrNilOption = errors.New("docadapter: option value must not be nil")
)
