package device

// Config locates the reader app's files inside its sandbox.
type Config struct {
	// BundleID is the app bundle identifier, used for diagnostics.
	BundleID string `mapstructure:"bundle_id" default:"com.appstafarian.MarvinIP"`
	// DatabasePath is the app database, relative to the sandbox root.
	DatabasePath string `mapstructure:"database_path" default:"Library/mainDb.sqlite"`
	// BooksFolder holds the book files.
	BooksFolder string `mapstructure:"books_folder" default:"Documents"`
	// HashCacheDir holds the device-side hash cache archive.
	HashCacheDir string `mapstructure:"hash_cache_dir" default:"Library/calibre"`
	// PreferencesPath is the app preference plist.
	PreferencesPath string `mapstructure:"preferences_path" default:"Library/Preferences/com.appstafarian.MarvinIP.plist"`
	// ScratchDir receives local copies of device files. Empty means the OS temp dir.
	ScratchDir string `mapstructure:"scratch_dir" default:""`
}

// DefaultConfig returns the standard sandbox layout.
func DefaultConfig() Config {
	return Config{
		BundleID:        "com.appstafarian.MarvinIP",
		DatabasePath:    "Library/mainDb.sqlite",
		BooksFolder:     "Documents",
		HashCacheDir:    "Library/calibre",
		PreferencesPath: "Library/Preferences/com.appstafarian.MarvinIP.plist",
	}
}

// WithDefaults fills unset fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.BundleID == "" {
		c.BundleID = d.BundleID
	}
	if c.DatabasePath == "" {
		c.DatabasePath = d.DatabasePath
	}
	if c.BooksFolder == "" {
		c.BooksFolder = d.BooksFolder
	}
	if c.HashCacheDir == "" {
		c.HashCacheDir = d.HashCacheDir
	}
	if c.PreferencesPath == "" {
		c.PreferencesPath = d.PreferencesPath
	}
	return c
}
