package hashcache

import (
	"context"

	"marvin-sync/core/devicefs"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// deviceBackend keeps the archive on the device and works on a local copy.
type deviceBackend struct {
	fs      devicefs.FS
	archive string
}

// Open loads the cache archive from dir on the device. The folder is created if
// missing; when that fails the returned cache is disabled and recomputes every
// hash. Open never fails.
func Open(ctx context.Context, fs devicefs.FS, dir string, log *zap.Logger) *Cache {
	b := &deviceBackend{fs: fs, archive: devicefs.Join(dir, ArchiveName)}

	ok, err := fs.Exists(ctx, dir)
	if err == nil && !ok {
		err = fs.Mkdir(ctx, dir)
	}
	if err != nil {
		c := newCache(b, false, log)
		c.log.Warn("Hash cache folder unavailable, caching disabled", zap.String("dir", dir), zap.Error(err))
		return c
	}

	c := newCache(b, true, log)
	c.load(ctx)
	return c
}

func (b *deviceBackend) String() string { return b.archive }

func (b *deviceBackend) load(ctx context.Context) ([]byte, error) {
	ok, err := b.fs.Exists(ctx, b.archive)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	local := b.fs.Local()
	tmp, err := afero.TempFile(local, "", "hash_cache-*.zip")
	if err != nil {
		return nil, err
	}
	name := tmp.Name()
	tmp.Close()
	defer local.Remove(name)

	if err := b.fs.CopyFromDevice(ctx, b.archive, name); err != nil {
		return nil, err
	}
	return afero.ReadFile(local, name)
}

// store writes the archive under a temporary name and renames it into place so
// an interrupted push never leaves a truncated cache behind.
func (b *deviceBackend) store(ctx context.Context, data []byte) error {
	local := b.fs.Local()
	tmp, err := afero.TempFile(local, "", "hash_cache-*.zip")
	if err != nil {
		return err
	}
	name := tmp.Name()
	_, werr := tmp.Write(data)
	cerr := tmp.Close()
	defer local.Remove(name)
	if werr != nil {
		return werr
	}
	if cerr != nil {
		return cerr
	}

	staging := b.archive + ".tmp"
	if err := b.fs.CopyToDevice(ctx, name, staging); err != nil {
		return err
	}
	if err := b.fs.Rename(ctx, staging, b.archive); err != nil {
		_ = b.fs.Remove(ctx, staging)
		return err
	}
	return nil
}
