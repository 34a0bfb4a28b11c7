package devicefs

// Backend names.
const (
	BackendMount  = "mount"
	BackendObject = "object"
)

// Config selects and configures the device filesystem backend.
type Config struct {
	// Backend is "mount" (app sandbox mounted locally) or "object" (mirrored to a bucket).
	Backend string `mapstructure:"backend" default:"mount"`
	// MountPoint is the local directory where the app sandbox is mounted.
	MountPoint string `mapstructure:"mount_point" default:"/mnt/marvin"`
	// ObjectPrefix is the key prefix of the mirrored sandbox inside the bucket.
	ObjectPrefix string `mapstructure:"object_prefix" default:"sandbox/"`
	// ScratchDir holds local copies of device files. Empty means the OS temp dir.
	ScratchDir string `mapstructure:"scratch_dir" default:""`
}
