package library

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"marvin-sync/core/epub"
	"marvin-sync/core/hashcache"
	"marvin-sync/core/logger"
	"marvin-sync/core/model"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Indexer builds the lookup index over the desktop library.
type Indexer struct {
	store   *Store
	format  string
	hashes  *hashcache.Cache
	workers int
	log     *zap.Logger
}

// NewIndexer returns an Indexer over the books having a file in format.
// hashes may be nil, in which case every book is hashed on each build.
func NewIndexer(store *Store, format string, hashes *hashcache.Cache, workers int, log *zap.Logger) *Indexer {
	if workers <= 0 {
		workers = 1
	}
	if format == "" {
		format = "EPUB"
	}
	return &Indexer{
		store:   store,
		format:  format,
		hashes:  hashes,
		workers: workers,
		log:     logger.Component(log, "indexer"),
	}
}

type hashed struct {
	rel  string
	hash string
}

// Build reads the library and returns a fresh index. The library is not modified.
func (ix *Indexer) Build(ctx context.Context) (*model.LibraryIndex, error) {
	identity, err := ix.store.Identity(ctx)
	if err != nil {
		return nil, err
	}

	ids, err := ix.store.SearchIDs(ctx, ix.format)
	if err != nil {
		return nil, err
	}
	books, err := ix.store.ListMetadata(ctx, ids)
	if err != nil {
		return nil, err
	}
	files, err := ix.store.FormatFiles(ctx, ids, ix.format)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	results := make(map[int64]hashed, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.workers)
	for _, id := range ids {
		rel, ok := files[id]
		if !ok {
			continue
		}
		id := id
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			h := ix.hashFile(rel)
			mu.Lock()
			results[id] = hashed{rel: rel, hash: h}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("library index cancelled: %w", err)
	}

	idx := model.NewLibraryIndex(identity)
	sorted := make([]int64, 0, len(books))
	for id := range books {
		sorted = append(sorted, id)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	valid := make([]string, 0, len(results))
	for _, id := range sorted {
		r := results[id]
		idx.Add(books[id], r.hash)
		if r.rel != "" {
			valid = append(valid, r.rel)
		}
	}

	if ix.hashes != nil {
		if n := ix.hashes.PurgeOrphans(valid); n > 0 {
			ix.log.Debug("Purged stale library hashes", zap.Int("count", n))
		}
		if err := ix.hashes.Save(ctx); err != nil {
			ix.log.Warn("Failed to save library hash cache", zap.Error(err))
		}
	}

	ix.log.Info("Library indexed",
		zap.String("library", identity.UUID),
		zap.Int("books", len(idx.Books)),
		zap.Int("hashes", len(idx.HashMap)),
	)
	return idx, nil
}

// hashFile returns the content hash of a library file, using the cache when
// the file is unchanged. Failures yield NoHash.
func (ix *Indexer) hashFile(rel string) string {
	fs := ix.store.Files()
	p := ix.store.HostPath(rel)

	info, err := fs.Stat(p)
	if err != nil {
		ix.log.Warn("Library file missing", zap.String("path", rel), zap.Error(err))
		return epub.NoHash
	}

	if ix.hashes != nil {
		if h, ok := ix.hashes.Lookup(rel, info.Size(), info.ModTime()); ok {
			return h
		}
	}

	f, err := fs.Open(p)
	if err != nil {
		ix.log.Warn("Library file unreadable", zap.String("path", rel), zap.Error(err))
		return epub.NoHash
	}
	defer f.Close()

	h, err := epub.HashReader(f, info.Size())
	if err != nil {
		ix.log.Debug("Library book not hashable", zap.String("path", rel), zap.Error(err))
		h = epub.NoHash
	}
	if ix.hashes != nil {
		ix.hashes.Put(rel, h, info.Size(), info.ModTime())
	}
	return h
}
