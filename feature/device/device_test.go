package device_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"marvin-sync/core/devicedb/devicedbtest"
	"marvin-sync/core/devicefs"
	"marvin-sync/core/epub"
	"marvin-sync/core/epub/epubtest"
	"marvin-sync/core/hashcache"
	"marvin-sync/core/model"
	"marvin-sync/feature/device"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"howett.net/plist"
)

type sandbox struct {
	root string
	fs   *devicefs.MountFS
	db   *devicedbtest.DB
	cfg  device.Config
}

func newSandbox(t *testing.T) *sandbox {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "Library"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "Documents"), 0o755))

	cfg := device.DefaultConfig()
	cfg.ScratchDir = t.TempDir()

	return &sandbox{
		root: root,
		fs:   devicefs.NewMountFS(afero.NewBasePathFs(afero.NewOsFs(), root), afero.NewOsFs()),
		db:   devicedbtest.Create(t, filepath.Join(root, "Library", "mainDb.sqlite")),
		cfg:  cfg,
	}
}

func (s *sandbox) book(t *testing.T, name string, data []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(s.root, "Documents", name), data, 0o644))
}

func hashOf(t *testing.T, data []byte) string {
	t.Helper()
	h, err := epub.HashReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	return h
}

func TestSnapshotter_Pull(t *testing.T) {
	sb := newSandbox(t)
	sb.db.Insert(devicedbtest.Book{ID: 1, Title: "Dune", FileName: "dune.epub"})

	snaps := device.NewSnapshotter(sb.fs, sb.cfg, zap.NewNop())
	assert.Nil(t, snaps.Current())

	first, err := snaps.Pull(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, snaps.Current())
	assert.FileExists(t, first.Path())

	require.NoError(t, snaps.Refresh(context.Background()))
	second := snaps.Current()
	assert.NotSame(t, first, second)
	assert.NoFileExists(t, first.Path(), "previous scratch copy is removed")

	rows, err := second.Books(context.Background())
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	require.NoError(t, snaps.Close())
	assert.Nil(t, snaps.Current())
	assert.NoFileExists(t, second.Path())
}

func TestSnapshotter_MissingDatabase(t *testing.T) {
	root := t.TempDir()
	fs := devicefs.NewMountFS(afero.NewBasePathFs(afero.NewOsFs(), root), afero.NewOsFs())
	cfg := device.DefaultConfig()
	cfg.ScratchDir = t.TempDir()

	_, err := device.NewSnapshotter(fs, cfg, zap.NewNop()).Pull(context.Background())
	assert.Error(t, err)
}

func TestScanner_Scan(t *testing.T) {
	ctx := context.Background()
	sb := newSandbox(t)

	dune := epubtest.Build(epubtest.Options{Title: "Dune"})
	omens := epubtest.Build(epubtest.Options{Title: "Good Omens", Chapters: map[string]string{"c.xhtml": "<p>In the beginning</p>"}})
	sb.book(t, "dune.epub", dune)
	sb.book(t, "omens.epub", omens)
	sb.book(t, "broken.epub", []byte("not a zip"))

	sb.db.Insert(
		devicedbtest.Book{
			ID: 1, Title: "Dune", Author: "Frank Herbert", FileName: "dune.epub", UUID: "u-dune",
			IsRead: true, Collections: []string{"Sci-Fi", "Classics", "READ"},
			Subjects: []string{"Fiction"}, Highlights: []string{"Fear is the mind-killer."},
			Pinned: []string{"Arrakis"}, Wiki: []string{"Frank Herbert"},
			Progress: devicedbtest.Float(0.5),
		},
		devicedbtest.Book{ID: 2, Title: "Good Omens", Author: "Terry Pratchett & Neil Gaiman", FileName: "omens.epub", ReadingList: true},
		devicedbtest.Book{ID: 3, Title: "Broken", Author: "Nobody", FileName: "broken.epub"},
		devicedbtest.Book{ID: 4, Title: "Gone", Author: "Nobody", FileName: "gone.epub"},
	)

	snap, err := device.NewSnapshotter(sb.fs, sb.cfg, zap.NewNop()).Pull(ctx)
	require.NoError(t, err)

	cache := hashcache.Open(ctx, sb.fs, sb.cfg.HashCacheDir, zap.NewNop())
	scanner := device.NewScanner(sb.fs, sb.cfg, zap.NewNop())

	records, err := scanner.Scan(ctx, snap, cache)
	require.NoError(t, err)
	require.Len(t, records, 3, "book with a missing file is skipped")

	d := records[1]
	assert.Equal(t, "Documents/dune.epub", d.Path)
	assert.Equal(t, "dune.epub", scanner.FileName(d))
	assert.Equal(t, hashOf(t, dune), d.ContentHash)
	assert.Equal(t, []string{"Frank Herbert"}, d.Authors)
	assert.Equal(t, "u-dune", d.UUID)
	assert.Equal(t, model.FlagRead, d.Flags)
	assert.Equal(t, []string{"Classics", "Sci-Fi"}, d.Collections)
	assert.Equal(t, []string{"Fiction"}, d.Subjects)
	assert.Len(t, d.Highlights, 1)
	assert.Equal(t, []string{"Arrakis"}, d.Articles[model.ArticlesPinned])
	assert.Equal(t, []string{"Frank Herbert"}, d.Articles[model.ArticlesWiki])
	require.NotNil(t, d.Progress)
	assert.Equal(t, 0.5, *d.Progress)
	assert.Equal(t, model.MatchWhite, d.MatchQuality)
	assert.NotNil(t, d.Mismatches)
	assert.Equal(t, int64(len(dune)), d.Size)

	assert.Equal(t, []string{"Terry Pratchett", "Neil Gaiman"}, records[2].Authors)
	assert.Equal(t, model.FlagReadingList, records[2].Flags)
	assert.Equal(t, model.NoHash, records[3].ContentHash)

	assert.Equal(t, 3, cache.Len())
	require.NoError(t, cache.Save(ctx))
	assert.FileExists(t, filepath.Join(sb.root, "Library", "calibre", hashcache.ArchiveName))

	t.Run("CachedHashesReused", func(t *testing.T) {
		again, err := scanner.Scan(ctx, snap, cache)
		require.NoError(t, err)
		assert.Equal(t, d.ContentHash, again[1].ContentHash)
	})

	t.Run("Rescan", func(t *testing.T) {
		some, err := scanner.Rescan(ctx, snap, cache, []int64{2, 99})
		require.NoError(t, err)
		assert.Len(t, some, 1)
		assert.Contains(t, some, int64(2))
	})
}

// cancelAfter cancels the scan on the n-th stat.
type cancelAfter struct {
	devicefs.FS
	n      int32
	calls  atomic.Int32
	cancel context.CancelFunc
}

func (c *cancelAfter) Stat(ctx context.Context, p string) (devicefs.FileInfo, error) {
	info, err := c.FS.Stat(ctx, p)
	if c.calls.Add(1) == c.n {
		c.cancel()
	}
	return info, err
}

func TestScanner_Aborted(t *testing.T) {
	sb := newSandbox(t)
	for i, name := range []string{"a.epub", "b.epub", "c.epub"} {
		sb.book(t, name, epubtest.Build(epubtest.Options{Title: name}))
		sb.db.Insert(devicedbtest.Book{ID: int64(i + 1), Title: name, Author: "A", FileName: name})
	}

	snap, err := device.NewSnapshotter(sb.fs, sb.cfg, zap.NewNop()).Pull(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fs := &cancelAfter{FS: sb.fs, n: 2, cancel: cancel}
	cache := hashcache.Open(context.Background(), sb.fs, sb.cfg.HashCacheDir, zap.NewNop())

	records, err := device.NewScanner(fs, sb.cfg, zap.NewNop()).Scan(ctx, snap, cache)
	assert.Nil(t, records)
	assert.True(t, errors.Is(err, device.ErrUserAborted))

	_, ok := cache.Get("Documents/a.epub")
	assert.True(t, ok, "hashes computed before the abort are kept")
	_, ok = cache.Get("Documents/b.epub")
	assert.False(t, ok, "an interrupted hash is not cached")
}

// flakyCopy fails the first n book copies.
type flakyCopy struct {
	devicefs.FS
	n     int32
	calls atomic.Int32
}

func (f *flakyCopy) CopyFromDevice(ctx context.Context, remote, local string) error {
	if f.calls.Add(1) <= f.n {
		return errors.New("usb reset")
	}
	return f.FS.CopyFromDevice(ctx, remote, local)
}

func TestScanner_CopyFailureNotCached(t *testing.T) {
	ctx := context.Background()
	sb := newSandbox(t)
	dune := epubtest.Build(epubtest.Options{Title: "Dune"})
	sb.book(t, "dune.epub", dune)
	sb.db.Insert(devicedbtest.Book{ID: 1, Title: "Dune", Author: "Frank Herbert", FileName: "dune.epub"})

	snap, err := device.NewSnapshotter(sb.fs, sb.cfg, zap.NewNop()).Pull(ctx)
	require.NoError(t, err)

	fs := &flakyCopy{FS: sb.fs, n: 1}
	cache := hashcache.Open(ctx, sb.fs, sb.cfg.HashCacheDir, zap.NewNop())
	scanner := device.NewScanner(fs, sb.cfg, zap.NewNop())

	first, err := scanner.Scan(ctx, snap, cache)
	require.NoError(t, err)
	assert.Equal(t, model.NoHash, first[1].ContentHash)
	_, ok := cache.Get("Documents/dune.epub")
	assert.False(t, ok, "a failed copy is not cached")

	second, err := scanner.Scan(ctx, snap, cache)
	require.NoError(t, err)
	assert.NotEmpty(t, second[1].ContentHash)
	assert.Equal(t, hashOf(t, dune), second[1].ContentHash)
}

func TestReadAppInfo(t *testing.T) {
	ctx := context.Background()
	sb := newSandbox(t)

	t.Run("Missing", func(t *testing.T) {
		info, err := device.ReadAppInfo(ctx, sb.fs, sb.cfg)
		require.NoError(t, err)
		assert.Equal(t, device.AppInfo{}, info)
	})

	t.Run("Present", func(t *testing.T) {
		raw, err := plist.Marshal(map[string]any{
			"CFBundleShortVersionString": "3.9",
			"CFBundleVersion":            "412",
			"DeepViewLanguage":           "en",
		}, plist.XMLFormat)
		require.NoError(t, err)
		require.NoError(t, sb.fs.Mkdir(ctx, "Library/Preferences"))
		require.NoError(t, sb.fs.Write(ctx, raw, sb.cfg.PreferencesPath))

		info, err := device.ReadAppInfo(ctx, sb.fs, sb.cfg)
		require.NoError(t, err)
		assert.Equal(t, device.AppInfo{Version: "3.9", Build: "412", DeepViewLanguage: "en"}, info)
	})

	t.Run("Garbage", func(t *testing.T) {
		require.NoError(t, sb.fs.Write(ctx, []byte(`<?xml version="1.0"?><plist><dict><key>AppVersion`), sb.cfg.PreferencesPath))
		_, err := device.ReadAppInfo(ctx, sb.fs, sb.cfg)
		assert.Error(t, err)
	})
}
