// Package devicedb reads a local snapshot of the reader app's SQLite database.
//
// The snapshot is opened read-only through modernc.org/sqlite. Only Books,
// Collections and BookCollections are required; the annotation tables are
// optional and read as empty when an older app version lacks them.
package devicedb
