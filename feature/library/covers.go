package library

import (
	"context"
	"errors"

	"marvin-sync/core/cover"
	"marvin-sync/core/model"
)

// Covers produces the cover thumbnails of library books and their digests.
type Covers struct {
	store  *Store
	hasher *cover.Hasher
}

// NewCovers returns a Covers generating thumbnails through hasher.
func NewCovers(store *Store, hasher *cover.Hasher) *Covers {
	if hasher == nil {
		hasher = cover.NewHasher(cover.DefaultWidth, cover.DefaultHeight)
	}
	return &Covers{store: store, hasher: hasher}
}

// Thumbnail returns the thumbnail of a book's cover. ok is false when the book
// has no cover.
func (c *Covers) Thumbnail(ctx context.Context, md *model.Metadata) (cover.Thumb, bool, error) {
	if md == nil || !md.HasCover {
		return cover.Thumb{}, false, nil
	}
	data, mtime, err := c.store.Cover(ctx, md.ID)
	if errors.Is(err, ErrNoCover) {
		return cover.Thumb{}, false, nil
	}
	if err != nil {
		return cover.Thumb{}, false, err
	}
	thumb, err := c.hasher.Digest(md.ID, mtime, data)
	if err != nil {
		return cover.Thumb{}, false, err
	}
	return thumb, true, nil
}

// CoverHash returns the digest of a book's cover thumbnail.
func (c *Covers) CoverHash(ctx context.Context, md *model.Metadata) (string, bool, error) {
	thumb, ok, err := c.Thumbnail(ctx, md)
	if err != nil || !ok {
		return "", ok, err
	}
	return thumb.Hash, true, nil
}
