package devicefs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"sort"

	"github.com/spf13/afero"
)

// MountFS serves the device from an afero filesystem, normally a BasePathFs over
// the directory where the app sandbox is mounted.
type MountFS struct {
	device afero.Fs
	local  afero.Fs
}

// NewMountFS wraps an existing device and local filesystem. Tests pass MemMapFs.
func NewMountFS(device, local afero.Fs) *MountFS {
	return &MountFS{device: device, local: local}
}

// NewMount returns a MountFS rooted at mountPoint on the host.
func NewMount(mountPoint string) (*MountFS, error) {
	info, err := os.Stat(mountPoint)
	if err != nil {
		return nil, fmt.Errorf("device mount point %s: %w", mountPoint, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("device mount point %s is not a directory", mountPoint)
	}
	return NewMountFS(afero.NewBasePathFs(afero.NewOsFs(), mountPoint), afero.NewOsFs()), nil
}

func (m *MountFS) Local() afero.Fs { return m.local }

func (m *MountFS) Exists(ctx context.Context, p string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return afero.Exists(m.device, Clean(p))
}

func (m *MountFS) Read(ctx context.Context, p string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(m.device, Clean(p))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", p, err)
	}
	return data, nil
}

func (m *MountFS) Write(ctx context.Context, data []byte, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := afero.WriteFile(m.device, Clean(p), data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", p, err)
	}
	return nil
}

func (m *MountFS) Rename(ctx context.Context, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.device.Rename(Clean(src), Clean(dst)); err != nil {
		return fmt.Errorf("rename %s -> %s: %w", src, dst, err)
	}
	return nil
}

func (m *MountFS) Remove(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.device.Remove(Clean(p)); err != nil {
		return fmt.Errorf("remove %s: %w", p, err)
	}
	return nil
}

func (m *MountFS) Mkdir(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.device.MkdirAll(Clean(p), 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", p, err)
	}
	return nil
}

func (m *MountFS) CopyToDevice(ctx context.Context, local, remote string) error {
	return copyBetween(ctx, m.local, local, m.device, Clean(remote))
}

func (m *MountFS) CopyFromDevice(ctx context.Context, remote, local string) error {
	return copyBetween(ctx, m.device, Clean(remote), m.local, local)
}

func (m *MountFS) Stat(ctx context.Context, p string) (FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return FileInfo{}, err
	}
	info, err := m.device.Stat(Clean(p))
	if err != nil {
		return FileInfo{}, fmt.Errorf("stat %s: %w", p, err)
	}
	return FileInfo{Path: Clean(p), Size: info.Size(), ModTime: info.ModTime().UTC(), IsDir: info.IsDir()}, nil
}

func (m *MountFS) List(ctx context.Context, dir string) ([]FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := afero.ReadDir(m.device, Clean(dir))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	out := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		out = append(out, FileInfo{
			Path:    Clean(path.Join(dir, e.Name())),
			Size:    e.Size(),
			ModTime: e.ModTime().UTC(),
			IsDir:   e.IsDir(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// copyBetween streams a file across two afero filesystems. A failed copy removes
// the partial destination.
func copyBetween(ctx context.Context, srcFs afero.Fs, src string, dstFs afero.Fs, dst string) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	in, err := srcFs.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	if dir := path.Dir(dst); dir != "." && dir != "/" {
		if err := dstFs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	out, err := dstFs.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	defer func() {
		if cerr := out.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close %s: %w", dst, cerr)
		}
		if err != nil {
			_ = dstFs.Remove(dst)
		}
	}()

	if _, err := io.Copy(out, &ctxReader{ctx: ctx, r: in}); err != nil {
		return fmt.Errorf("copy %s -> %s: %w", src, dst, err)
	}
	return nil
}

// ctxReader stops a long copy once the context is cancelled.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// IsNotExist reports whether err means the device path is missing.
func IsNotExist(err error) bool {
	return errors.Is(err, ErrNotExist)
}
