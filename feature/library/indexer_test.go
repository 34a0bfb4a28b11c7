package library_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"marvin-sync/core/cover"
	"marvin-sync/core/epub"
	"marvin-sync/core/epub/epubtest"
	"marvin-sync/core/hashcache"
	"marvin-sync/core/model"
	"marvin-sync/feature/library"
	"marvin-sync/feature/library/librarytest"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestIndexer_Build(t *testing.T) {
	ctx := context.Background()
	s, lib := newStore(t)

	shared := epubtest.Build(epubtest.Options{Title: "Dune"})
	other := epubtest.Build(epubtest.Options{Title: "Emma", Chapters: map[string]string{"c1.xhtml": "<p>Emma Woodhouse</p>"}})

	dune := lib.Add(librarytest.Book{Title: "Dune", Authors: []string{"Frank Herbert"}, EPUB: shared})
	copyOf := lib.Add(librarytest.Book{Title: "Dune (copy)", Authors: []string{"Frank Herbert"}, EPUB: shared})
	emma := lib.Add(librarytest.Book{Title: "Emma", Authors: []string{"Jane Austen"}, EPUB: other})
	broken := lib.Add(librarytest.Book{Title: "Broken", EPUB: []byte("not a zip")})
	lib.Add(librarytest.Book{Title: "No File"})

	cache := hashcache.OpenLocal(ctx, afero.NewMemMapFs(), "/cache", zap.NewNop())
	ix := library.NewIndexer(s, "EPUB", cache, 2, zap.NewNop())

	idx, err := ix.Build(ctx)
	require.NoError(t, err)

	assert.Equal(t, librarytest.LibraryUUID, idx.Identity.UUID)
	assert.Len(t, idx.Books, 4)
	assert.Contains(t, idx.ByTitle, "Emma")
	assert.Equal(t, emma, idx.ByUUID[lib.UUID(emma)].CalibreID)

	sharedHash, err := epub.HashReader(bytes.NewReader(shared), int64(len(shared)))
	require.NoError(t, err)
	uuids, ok := idx.HashMap.Get(sharedHash)
	require.True(t, ok)
	assert.Equal(t, []string{lib.UUID(dune), lib.UUID(copyOf)}, uuids)

	for _, keys := range idx.HashMap {
		assert.NotContains(t, keys, lib.UUID(broken))
	}

	assert.Equal(t, 4, cache.Len(), "unhashable files are cached too")

	t.Run("Cancelled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := library.NewIndexer(s, "EPUB", nil, 1, zap.NewNop()).Build(cctx)
		assert.Error(t, err)
	})
}

func pngCover(t *testing.T, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 60, 90))
	for y := 0; y < 90; y++ {
		for x := 0; x < 60; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestCovers_CoverHash(t *testing.T) {
	ctx := context.Background()
	s, lib := newStore(t)
	red := lib.Add(librarytest.Book{Title: "Red", Cover: pngCover(t, color.RGBA{R: 255, A: 255})})
	blue := lib.Add(librarytest.Book{Title: "Blue", Cover: pngCover(t, color.RGBA{B: 255, A: 255})})
	bare := lib.Add(librarytest.Book{Title: "Bare"})

	covers := library.NewCovers(s, cover.NewHasher(0, 0))
	get := func(id int64) *model.Metadata {
		md, err := s.GetMetadata(ctx, id)
		require.NoError(t, err)
		return md
	}

	h1, ok, err := covers.CoverHash(ctx, get(red))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, h1, 32)

	h2, ok, err := covers.CoverHash(ctx, get(blue))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotEqual(t, h1, h2)

	_, ok, err = covers.CoverHash(ctx, get(bare))
	require.NoError(t, err)
	assert.False(t, ok)

	thumb, ok, err := covers.Thumbnail(ctx, get(red))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, h1, thumb.Hash)
	assert.NotEmpty(t, thumb.JPEG)
}
