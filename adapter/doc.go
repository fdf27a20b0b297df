// Package adapter exposes create/read/update/delete over an embedded
// document store, running every write through a versioned Validator and
// every read result through a versioned Sanitizer.
//
// An Adapter starts Unconfigured unless built WithStore. Configure builds a
// store from a store.Config and may be called again to replace the handle:
//
//	a, err := adapter.New(adapter.WithHooks(models))
//	if err != nil {
//		// handle error
//	}
//	if _, err := a.Configure(store.Config{InMemoryOnly: true}); err != nil {
//		// handle error
//	}
//	doc, err := a.Create(ctx, store.Document{"name": "a"}, adapter.NoVersion)
//
// Custom operations are registered with Extend and invoked with Call; the
// adapter is passed to them so they can reuse Validate, Sanitize and the
// CRUD methods.
//
// The adapter adds no locking around CRUD calls. Ordering between concurrent
// writes is whatever the store provides.
package adapter
