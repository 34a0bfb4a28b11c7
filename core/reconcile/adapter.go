package reconcile

import (
	"context"

	"marvin-sync/core/model"
)

// IndexBuilder builds the desktop library index.
type IndexBuilder interface {
	Build(ctx context.Context) (*model.LibraryIndex, error)
}

// CoverHasher returns the thumbnail digest of a desktop book's cover.
// ok is false when the book has no cover.
type CoverHasher interface {
	CoverHash(ctx context.Context, md *model.Metadata) (hash string, ok bool, err error)
}
