package devicefs_test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"marvin-sync/core/devicefs"
	"marvin-sync/core/storage/mocks"

	"github.com/minio/minio-go/v7"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var notFound = minio.ErrorResponse{Code: "NoSuchKey", StatusCode: http.StatusNotFound}

func TestObjectFS_Read(t *testing.T) {
	client := new(mocks.Client)
	fs := devicefs.NewObjectFS(client, "marvin", "/sandbox/", afero.NewMemMapFs())

	client.On("GetObject", mock.Anything, "marvin", "sandbox/Library/calibre/marvin.status", mock.Anything).
		Return(io.NopCloser(bytes.NewReader([]byte("<status/>"))), nil)

	data, err := fs.Read(context.Background(), "/Library/calibre/marvin.status")
	require.NoError(t, err)
	assert.Equal(t, "<status/>", string(data))
	client.AssertExpectations(t)
}

func TestObjectFS_Rename(t *testing.T) {
	client := new(mocks.Client)
	fs := devicefs.NewObjectFS(client, "marvin", "sandbox", afero.NewMemMapFs())

	client.On("CopyObject", mock.Anything,
		minio.CopyDestOptions{Bucket: "marvin", Object: "sandbox/Library/calibre/marvin.cmd"},
		minio.CopySrcOptions{Bucket: "marvin", Object: "sandbox/Library/calibre/marvin.cmd.tmp"},
	).Return(minio.UploadInfo{}, nil)
	client.On("RemoveObject", mock.Anything, "marvin", "sandbox/Library/calibre/marvin.cmd.tmp", mock.Anything).Return(nil)

	require.NoError(t, fs.Rename(context.Background(), "Library/calibre/marvin.cmd.tmp", "Library/calibre/marvin.cmd"))
	client.AssertExpectations(t)
}

func TestObjectFS_StatMissing(t *testing.T) {
	client := new(mocks.Client)
	fs := devicefs.NewObjectFS(client, "marvin", "", afero.NewMemMapFs())

	client.On("StatObject", mock.Anything, "marvin", "Documents/gone.epub", mock.Anything).
		Return(minio.ObjectInfo{}, notFound)
	client.On("ListObjects", mock.Anything, "marvin", mock.Anything).Return(nil)

	ok, err := fs.Exists(context.Background(), "Documents/gone.epub")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestObjectFS_Stat(t *testing.T) {
	client := new(mocks.Client)
	fs := devicefs.NewObjectFS(client, "marvin", "", afero.NewMemMapFs())
	mod := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	client.On("StatObject", mock.Anything, "marvin", "Documents/a.epub", mock.Anything).
		Return(minio.ObjectInfo{Size: 42, LastModified: mod}, nil)

	info, err := fs.Stat(context.Background(), "Documents/a.epub")
	require.NoError(t, err)
	assert.Equal(t, int64(42), info.Size)
	assert.True(t, mod.Equal(info.ModTime))
}

func TestObjectFS_CopyFromDevice(t *testing.T) {
	client := new(mocks.Client)
	local := afero.NewMemMapFs()
	fs := devicefs.NewObjectFS(client, "marvin", "", local)

	client.On("GetObject", mock.Anything, "marvin", "Library/mainDb.sqlite", mock.Anything).
		Return(io.NopCloser(bytes.NewReader([]byte("SQLite format 3"))), nil)

	require.NoError(t, fs.CopyFromDevice(context.Background(), "Library/mainDb.sqlite", "/scratch/mainDb.sqlite"))
	data, err := afero.ReadFile(local, "/scratch/mainDb.sqlite")
	require.NoError(t, err)
	assert.Equal(t, "SQLite format 3", string(data))
}

func TestObjectFS_List(t *testing.T) {
	client := new(mocks.Client)
	fs := devicefs.NewObjectFS(client, "marvin", "sandbox", afero.NewMemMapFs())

	ch := make(chan minio.ObjectInfo, 3)
	ch <- minio.ObjectInfo{Key: "sandbox/Documents/b.epub", Size: 2}
	ch <- minio.ObjectInfo{Key: "sandbox/Documents/.keep"}
	ch <- minio.ObjectInfo{Key: "sandbox/Documents/a.epub", Size: 1}
	close(ch)
	client.On("ListObjects", mock.Anything, "marvin", minio.ListObjectsOptions{Prefix: "sandbox/Documents/"}).
		Return((<-chan minio.ObjectInfo)(ch))

	list, err := fs.List(context.Background(), "Documents")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Documents/a.epub", list[0].Path)
	assert.Equal(t, "Documents/b.epub", list[1].Path)
}
