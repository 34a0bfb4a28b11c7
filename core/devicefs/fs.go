package devicefs

import (
	"context"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// ErrNotExist is returned (wrapped) when a device path does not exist.
var ErrNotExist = fs.ErrNotExist

// FileInfo describes a device file.
type FileInfo struct {
	Path    string
	Size    int64
	ModTime time.Time
	IsDir   bool
}

// FS is the device filesystem collaborator. All device paths are relative
// POSIX-style strings rooted at the app sandbox. Local paths passed to
// CopyToDevice/CopyFromDevice refer to Local().
type FS interface {
	Exists(ctx context.Context, p string) (bool, error)
	Read(ctx context.Context, p string) ([]byte, error)
	Write(ctx context.Context, data []byte, p string) error
	Rename(ctx context.Context, src, dst string) error
	Remove(ctx context.Context, p string) error
	Mkdir(ctx context.Context, p string) error
	CopyToDevice(ctx context.Context, local, remote string) error
	CopyFromDevice(ctx context.Context, remote, local string) error
	Stat(ctx context.Context, p string) (FileInfo, error)
	List(ctx context.Context, dir string) ([]FileInfo, error)

	// Local is the host-side scratch filesystem.
	Local() afero.Fs
}

// Clean normalizes a device path: forward slashes, no leading slash, no dot segments.
func Clean(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = path.Clean("/" + p)
	return strings.TrimPrefix(p, "/")
}

// Join joins device path elements.
func Join(elem ...string) string {
	return Clean(path.Join(elem...))
}
