package devicefs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"

	"marvin-sync/core/storage"

	"github.com/minio/minio-go/v7"
	"github.com/spf13/afero"
)

// dirMarker is the zero-length object that stands for an empty directory.
const dirMarker = ".keep"

// ObjectFS serves the device from a bucket that mirrors the app sandbox.
// Rename is a server-side copy followed by a delete; the mirror agent only
// propagates complete objects, so readers never see a partial destination.
type ObjectFS struct {
	client storage.Client
	bucket string
	prefix string
	local  afero.Fs
}

// NewObjectFS returns an ObjectFS over bucket/prefix.
func NewObjectFS(client storage.Client, bucket, prefix string, local afero.Fs) *ObjectFS {
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &ObjectFS{client: client, bucket: bucket, prefix: prefix, local: local}
}

func (o *ObjectFS) key(p string) string {
	return o.prefix + Clean(p)
}

func (o *ObjectFS) Local() afero.Fs { return o.local }

func (o *ObjectFS) Exists(ctx context.Context, p string) (bool, error) {
	if _, err := o.Stat(ctx, p); err != nil {
		if IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (o *ObjectFS) Read(ctx context.Context, p string) ([]byte, error) {
	rc, err := o.client.GetObject(ctx, o.bucket, o.key(p), minio.GetObjectOptions{})
	if err != nil {
		return nil, o.wrap("read", p, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, o.wrap("read", p, err)
	}
	return data, nil
}

func (o *ObjectFS) Write(ctx context.Context, data []byte, p string) error {
	_, err := o.client.PutObject(ctx, o.bucket, o.key(p), bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return o.wrap("write", p, err)
	}
	return nil
}

func (o *ObjectFS) Rename(ctx context.Context, src, dst string) error {
	_, err := o.client.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: o.bucket, Object: o.key(dst)},
		minio.CopySrcOptions{Bucket: o.bucket, Object: o.key(src)},
	)
	if err != nil {
		return o.wrap("rename", src, err)
	}
	if err := o.client.RemoveObject(ctx, o.bucket, o.key(src), minio.RemoveObjectOptions{}); err != nil {
		return o.wrap("rename", src, err)
	}
	return nil
}

func (o *ObjectFS) Remove(ctx context.Context, p string) error {
	if ok, err := o.Exists(ctx, p); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("remove %s: %w", p, ErrNotExist)
	}
	if err := o.client.RemoveObject(ctx, o.bucket, o.key(p), minio.RemoveObjectOptions{}); err != nil {
		return o.wrap("remove", p, err)
	}
	return nil
}

// Mkdir writes a directory marker; object stores have no real directories.
func (o *ObjectFS) Mkdir(ctx context.Context, p string) error {
	return o.Write(ctx, nil, path.Join(Clean(p), dirMarker))
}

func (o *ObjectFS) CopyToDevice(ctx context.Context, local, remote string) error {
	f, err := o.local.Open(local)
	if err != nil {
		return fmt.Errorf("open %s: %w", local, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", local, err)
	}

	if _, err := o.client.PutObject(ctx, o.bucket, o.key(remote), f, info.Size(), minio.PutObjectOptions{}); err != nil {
		return o.wrap("upload", remote, err)
	}
	return nil
}

func (o *ObjectFS) CopyFromDevice(ctx context.Context, remote, local string) (err error) {
	rc, err := o.client.GetObject(ctx, o.bucket, o.key(remote), minio.GetObjectOptions{})
	if err != nil {
		return o.wrap("download", remote, err)
	}
	defer rc.Close()

	if dir := path.Dir(local); dir != "." {
		if err := o.local.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	out, err := o.local.OpenFile(local, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", local, err)
	}
	defer func() {
		if cerr := out.Close(); err == nil && cerr != nil {
			err = cerr
		}
		if err != nil {
			_ = o.local.Remove(local)
		}
	}()

	if _, err := io.Copy(out, &ctxReader{ctx: ctx, r: rc}); err != nil {
		return o.wrap("download", remote, err)
	}
	return nil
}

func (o *ObjectFS) Stat(ctx context.Context, p string) (FileInfo, error) {
	info, err := o.client.StatObject(ctx, o.bucket, o.key(p), minio.StatObjectOptions{})
	if err == nil {
		return FileInfo{Path: Clean(p), Size: info.Size, ModTime: info.LastModified.UTC()}, nil
	}
	if !storage.IsNotFound(err) {
		return FileInfo{}, o.wrap("stat", p, err)
	}

	// A directory exists when anything lives under it.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	for obj := range o.client.ListObjects(ctx, o.bucket, minio.ListObjectsOptions{Prefix: o.key(p) + "/", MaxKeys: 1}) {
		if obj.Err != nil {
			return FileInfo{}, o.wrap("stat", p, obj.Err)
		}
		return FileInfo{Path: Clean(p), IsDir: true}, nil
	}
	return FileInfo{}, fmt.Errorf("stat %s: %w", p, ErrNotExist)
}

func (o *ObjectFS) List(ctx context.Context, dir string) ([]FileInfo, error) {
	prefix := o.key(dir)
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	var out []FileInfo
	for obj := range o.client.ListObjects(ctx, o.bucket, minio.ListObjectsOptions{Prefix: prefix}) {
		if obj.Err != nil {
			return nil, o.wrap("list", dir, obj.Err)
		}
		name := strings.TrimPrefix(obj.Key, prefix)
		if name == "" || name == dirMarker {
			continue
		}
		isDir := strings.HasSuffix(name, "/")
		out = append(out, FileInfo{
			Path:    Clean(path.Join(dir, name)),
			Size:    obj.Size,
			ModTime: obj.LastModified.UTC(),
			IsDir:   isDir,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (o *ObjectFS) wrap(op, p string, err error) error {
	if storage.IsNotFound(err) {
		return fmt.Errorf("%s %s: %w", op, p, ErrNotExist)
	}
	return fmt.Errorf("%s %s: %w", op, p, err)
}
