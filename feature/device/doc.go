// Package device reads the reader app's state from its sandbox.
//
// Snapshotter copies the app database to scratch storage and keeps it open
// read-only. Scanner turns a snapshot into book records and hashes each book
// file, reusing the device hash cache for files that did not change.
package device
