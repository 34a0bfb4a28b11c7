package devicedb_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"marvin-sync/core/devicedb"
	"marvin-sync/core/devicedb/devicedbtest"
	"marvin-sync/core/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func fixture(t *testing.T, skip ...string) (string, *devicedbtest.DB) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mainDb.sqlite")
	return path, devicedbtest.Create(t, path, skip...)
}

func TestSnapshot_Books(t *testing.T) {
	path, db := fixture(t)
	db.Insert(
		devicedbtest.Book{
			ID: 1, Title: "Foo", Author: "Ann Author & Bob Writer", UUID: " u1 ", FileName: "foo.epub",
			OnDevice: "Main", IsRead: true, NewFlag: true, Progress: devicedbtest.Float(0.5),
			DatePublished: "2019-04-01", Series: "Saga", SeriesIndex: devicedbtest.Float(2),
			CoverHash: "c1", DeepView: true,
		},
		devicedbtest.Book{ID: 2, Title: "Bar", FileName: "bar.epub"},
	)

	snap, err := devicedb.OpenFile(context.Background(), path, zap.NewNop())
	require.NoError(t, err)
	defer snap.Close()

	books, err := snap.Books(context.Background())
	require.NoError(t, err)
	require.Len(t, books, 2)

	foo := books[0]
	assert.Equal(t, int64(1), foo.ID)
	assert.Equal(t, "u1", foo.UUID)
	assert.Equal(t, model.FlagRead|model.FlagNew, foo.Flags())
	require.NotNil(t, foo.Progress)
	assert.Equal(t, 0.5, *foo.Progress)
	require.NotNil(t, foo.DatePublished)
	assert.True(t, time.Date(2019, 4, 1, 0, 0, 0, 0, time.UTC).Equal(*foo.DatePublished))
	require.NotNil(t, foo.SeriesIndex)
	assert.Equal(t, 2.0, *foo.SeriesIndex)
	assert.True(t, foo.DeepViewPrepared)

	bar := books[1]
	assert.Nil(t, bar.Progress)
	assert.Nil(t, bar.DatePublished)
	assert.Equal(t, "", bar.UUID)
	assert.Equal(t, model.Flags(0), bar.Flags())

	one, err := snap.Book(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, "Bar", one.Title)

	_, err = snap.Book(context.Background(), 99)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestSnapshot_Related(t *testing.T) {
	path, db := fixture(t)
	db.Insert(devicedbtest.Book{
		ID: 7, Title: "Foo", FileName: "foo.epub",
		Collections: []string{"Sci-Fi", "READ"},
		Subjects:    []string{"Fiction"},
		Highlights:  []string{"first", "second"},
		Vocabulary:  []string{"ephemeral"},
		Pinned:      []string{"Rome"},
		Wiki:        []string{"Carthage"},
	})

	ctx := context.Background()
	snap, err := devicedb.OpenFile(ctx, path, nil)
	require.NoError(t, err)
	defer snap.Close()

	cols, err := snap.BookCollections(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Sci-Fi", "READ"}, cols[7])

	hl, err := snap.Highlights(ctx)
	require.NoError(t, err)
	require.Len(t, hl[7], 2)
	assert.Equal(t, "first", hl[7][0].Text)

	vocab, err := snap.Vocabulary(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"ephemeral"}, vocab[7])

	pinned, err := snap.PinnedArticles(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Rome"}, pinned[7])

	wiki, err := snap.Wiki(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Carthage"}, wiki[7])

	subjects, err := snap.Subjects(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Fiction"}, subjects[7])
}

func TestSnapshot_OptionalTablesMissing(t *testing.T) {
	path, db := fixture(t, devicedb.TableWiki, devicedb.TableVocabulary)
	db.Insert(devicedbtest.Book{ID: 1, Title: "Foo", FileName: "foo.epub"})

	ctx := context.Background()
	snap, err := devicedb.OpenFile(ctx, path, nil)
	require.NoError(t, err)
	defer snap.Close()

	assert.False(t, snap.Has(devicedb.TableWiki))
	wiki, err := snap.Wiki(ctx)
	require.NoError(t, err)
	assert.Empty(t, wiki)
}

func TestOpenFile_RequiredTableMissing(t *testing.T) {
	path, _ := fixture(t, devicedb.TableBookCollections)

	_, err := devicedb.OpenFile(context.Background(), path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BookCollections")
}

func TestOpenFile_ReadOnly(t *testing.T) {
	path, db := fixture(t)
	db.Insert(devicedbtest.Book{ID: 1, Title: "Foo", FileName: "foo.epub"})

	snap, err := devicedb.OpenFile(context.Background(), path, nil)
	require.NoError(t, err)
	defer snap.Close()

	err = devicedb.SnapExec(snap)
	assert.Error(t, err)
}
