// Package server holds the HTTP bridge configuration.
//
// The bridge exposes the sync core to a host UI running in another process.
// cmd/start.go reads this configuration to bind the Fiber app.
package server
