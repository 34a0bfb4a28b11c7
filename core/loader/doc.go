// Package loader registers the bridge features on the Fiber app.
//
// A feature bundles a service with its handler and implements Feature:
//
//	type Feature interface {
//	    Name() string
//	    IsEnabled() bool
//	    Load(app fiber.Router) error
//	}
//
// The Manager loads features in registration order. Disabled features are
// skipped with a log line; the first Load error aborts startup. The sync
// feature is disabled when no session could be built, integrity always loads
// and reports missing backends per check.
package loader
