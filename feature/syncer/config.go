package syncer

// Config holds the sync behavior settings.
type Config struct {
	// CollectionsField is the desktop custom field mirrored to device collections.
	// Empty uses the book tags.
	CollectionsField string `mapstructure:"collections_field" default:""`
	// AnnotationsField receives rendered device highlights. Empty disables the write.
	AnnotationsField string `mapstructure:"annotations_field" default:""`
	// ProgressField receives the device reading progress on import. Empty disables it.
	ProgressField string `mapstructure:"progress_field" default:""`
}
