package library

import "time"

// Config holds the desktop library settings.
type Config struct {
	// Root is the calibre library folder holding metadata.db.
	Root string `mapstructure:"root" default:"."`
	// Format is the book format synchronized with the device.
	Format string `mapstructure:"format" default:"EPUB"`
	// ReadOnly opens the library without write access; imports then fail.
	ReadOnly bool `mapstructure:"read_only" default:"false"`
	// TimeoutSeconds is the busy timeout while calibre holds the database.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"5"`
	// IndexTTL bounds how long a built index is reused. Zero keeps it until the library changes.
	IndexTTL time.Duration `mapstructure:"index_ttl" default:"0s"`
	// HashCacheDir holds the library hash cache. Empty means the user cache folder.
	HashCacheDir string `mapstructure:"hash_cache_dir" default:""`
	// HashWorkers is the number of books hashed concurrently.
	HashWorkers int `mapstructure:"hash_workers" default:"4"`
}
