package devicefs

import (
	"fmt"

	"marvin-sync/core/storage"

	"github.com/spf13/afero"
)

// New builds the configured backend. client may be nil for the mount backend.
func New(cfg Config, client storage.Client, bucket string) (FS, error) {
	local := afero.NewOsFs()
	if cfg.ScratchDir != "" {
		if err := local.MkdirAll(cfg.ScratchDir, 0o755); err != nil {
			return nil, fmt.Errorf("scratch dir %s: %w", cfg.ScratchDir, err)
		}
	}

	switch cfg.Backend {
	case "", BackendMount:
		return NewMount(cfg.MountPoint)
	case BackendObject:
		if client == nil {
			return nil, fmt.Errorf("object backend requires a storage client")
		}
		return NewObjectFS(client, bucket, cfg.ObjectPrefix, local), nil
	default:
		return nil, fmt.Errorf("unknown device backend %q", cfg.Backend)
	}
}
