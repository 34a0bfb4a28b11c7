package hashcache

import (
	"context"
	"path/filepath"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// localBackend keeps the archive on the host, used for desktop library hashes.
type localBackend struct {
	fs      afero.Fs
	archive string
}

// OpenLocal loads a cache kept in dir on a host filesystem.
func OpenLocal(ctx context.Context, fs afero.Fs, dir string, log *zap.Logger) *Cache {
	b := &localBackend{fs: fs, archive: filepath.Join(dir, ArchiveName)}
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		c := newCache(b, false, log)
		c.log.Warn("Hash cache folder unavailable, caching disabled", zap.String("dir", dir), zap.Error(err))
		return c
	}
	c := newCache(b, true, log)
	c.load(ctx)
	return c
}

func (b *localBackend) String() string { return b.archive }

func (b *localBackend) load(_ context.Context) ([]byte, error) {
	ok, err := afero.Exists(b.fs, b.archive)
	if err != nil || !ok {
		return nil, err
	}
	return afero.ReadFile(b.fs, b.archive)
}

func (b *localBackend) store(_ context.Context, data []byte) error {
	tmp := b.archive + ".tmp"
	if err := afero.WriteFile(b.fs, tmp, data, 0o644); err != nil {
		return err
	}
	return b.fs.Rename(tmp, b.archive)
}
