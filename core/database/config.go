package database

// Config holds configuration for the desktop library database connection.
type Config struct {
	// Driver is the database driver. Only sqlite is used for calibre libraries.
	Driver string `mapstructure:"driver" default:"sqlite"`
	// Path is the metadata.db file (or ":memory:").
	Path string `mapstructure:"path" default:"metadata.db"`
	// ReadOnly opens the database without write access.
	ReadOnly bool `mapstructure:"read_only" default:"false"`
	// TimeoutSeconds is the busy timeout for a locked database.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"5"`
}
