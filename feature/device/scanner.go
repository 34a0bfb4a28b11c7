package device

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"marvin-sync/core/devicedb"
	"marvin-sync/core/devicefs"
	"marvin-sync/core/epub"
	"marvin-sync/core/hashcache"
	"marvin-sync/core/logger"
	"marvin-sync/core/model"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrUserAborted is returned when a scan is cancelled between books.
var ErrUserAborted = errors.New("device scan aborted")

// Scanner turns the app database into book records with content hashes.
type Scanner struct {
	fs  devicefs.FS
	cfg Config
	log *zap.Logger
}

// NewScanner creates a Scanner reading book files through fs.
func NewScanner(fs devicefs.FS, cfg Config, log *zap.Logger) *Scanner {
	return &Scanner{fs: fs, cfg: cfg.WithDefaults(), log: logger.Component(log, "scanner")}
}

// BookPath returns the device path of a book file.
func (s *Scanner) BookPath(fileName string) string {
	return devicefs.Join(s.cfg.BooksFolder, fileName)
}

// FileName returns the app's file name for a record, as used in commands.
func (s *Scanner) FileName(rec *model.BookRecord) string {
	return strings.TrimPrefix(rec.Path, devicefs.Clean(s.cfg.BooksFolder)+"/")
}

// Scan reads every book of the snapshot. Books whose file is missing are
// skipped. Hashes come from hashes when fresh; new hashes are added to it and
// stay there even when the scan is aborted. The caller saves the cache.
func (s *Scanner) Scan(ctx context.Context, snap *devicedb.Snapshot, hashes *hashcache.Cache) (map[int64]*model.BookRecord, error) {
	rows, err := snap.Books(ctx)
	if err != nil {
		return nil, err
	}
	return s.scan(ctx, snap, rows, hashes)
}

// Rescan reads the listed books only, e.g. after a command touched them.
// Ids no longer in the database are absent from the result.
func (s *Scanner) Rescan(ctx context.Context, snap *devicedb.Snapshot, hashes *hashcache.Cache, ids []int64) (map[int64]*model.BookRecord, error) {
	want := make(map[int64]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	rows, err := snap.Books(ctx)
	if err != nil {
		return nil, err
	}
	filtered := rows[:0]
	for _, r := range rows {
		if want[r.ID] {
			filtered = append(filtered, r)
		}
	}
	return s.scan(ctx, snap, filtered, hashes)
}

type related struct {
	collections map[int64][]string
	highlights  map[int64][]model.Highlight
	vocabulary  map[int64][]string
	pinned      map[int64][]string
	wiki        map[int64][]string
	subjects    map[int64][]string
}

func (s *Scanner) loadRelated(ctx context.Context, snap *devicedb.Snapshot) (*related, error) {
	var (
		r   related
		err error
	)
	if r.collections, err = snap.BookCollections(ctx); err != nil {
		return nil, err
	}
	if r.highlights, err = snap.Highlights(ctx); err != nil {
		return nil, err
	}
	if r.vocabulary, err = snap.Vocabulary(ctx); err != nil {
		return nil, err
	}
	if r.pinned, err = snap.PinnedArticles(ctx); err != nil {
		return nil, err
	}
	if r.wiki, err = snap.Wiki(ctx); err != nil {
		return nil, err
	}
	if r.subjects, err = snap.Subjects(ctx); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Scanner) scan(ctx context.Context, snap *devicedb.Snapshot, rows []devicedb.BookRow, hashes *hashcache.Cache) (map[int64]*model.BookRecord, error) {
	rel, err := s.loadRelated(ctx, snap)
	if err != nil {
		return nil, err
	}

	out := make(map[int64]*model.BookRecord, len(rows))
	hashed := 0
	aborted := func() error {
		s.log.Info("Device scan aborted", zap.Int("scanned", len(out)), zap.Int("total", len(rows)))
		return fmt.Errorf("%w: %v", ErrUserAborted, ctx.Err())
	}

	for _, row := range rows {
		if ctx.Err() != nil {
			return nil, aborted()
		}

		p := s.BookPath(row.FileName)
		info, err := s.fs.Stat(ctx, p)
		if err != nil {
			s.log.Warn("Book file missing on device, skipping", zap.Int64("book", row.ID), zap.String("path", p), zap.Error(err))
			continue
		}

		rec := s.record(row, rel)
		rec.Path = p
		rec.Size = info.Size
		rec.ModTime = info.ModTime

		h, fresh := s.hash(ctx, p, info, hashes)
		if ctx.Err() != nil {
			return nil, aborted()
		}
		if fresh {
			hashed++
		}
		rec.ContentHash = h
		out[rec.ID] = rec
	}

	s.log.Info("Device scanned", zap.Int("books", len(out)), zap.Int("hashed", hashed))
	return out, nil
}

func (s *Scanner) record(row devicedb.BookRow, rel *related) *model.BookRecord {
	_, collections := model.SplitWire(rel.collections[row.ID])

	rec := &model.BookRecord{
		ID:               row.ID,
		Title:            row.Title,
		TitleSort:        row.TitleSort,
		Authors:          model.SplitAuthors(row.Author),
		AuthorSort:       row.AuthorSort,
		UUID:             row.UUID,
		Flags:            row.Flags(),
		Progress:         row.Progress,
		Highlights:       rel.highlights[row.ID],
		Vocabulary:       rel.vocabulary[row.ID],
		DeepViewPrepared: row.DeepViewPrepared,
		Mismatches:       map[string]model.Mismatch{},
		Matches:          []string{},
		MatchQuality:     model.MatchWhite,
		OnDevice:         row.OnDevice,
		Publisher:        row.Publisher,
		Pubdate:          row.DatePublished,
		Series:           row.Series,
		SeriesIndex:      row.SeriesIndex,
		Description:      row.Description,
		Subjects:         model.NormalizeSet(rel.subjects[row.ID]),
		CoverHash:        row.CoverHash,
	}
	rec.SetCollections(collections)

	if pinned, wiki := rel.pinned[row.ID], rel.wiki[row.ID]; len(pinned) > 0 || len(wiki) > 0 {
		rec.Articles = make(map[string][]string, 2)
		if len(pinned) > 0 {
			rec.Articles[model.ArticlesPinned] = pinned
		}
		if len(wiki) > 0 {
			rec.Articles[model.ArticlesWiki] = wiki
		}
	}
	return rec
}

// hash returns the content hash of a device book and whether it was computed
// rather than taken from the cache.
func (s *Scanner) hash(ctx context.Context, p string, info devicefs.FileInfo, hashes *hashcache.Cache) (string, bool) {
	if hashes != nil {
		if h, ok := hashes.Lookup(p, info.Size, info.ModTime); ok {
			return h, false
		}
	}

	h, cacheable := s.computeHash(ctx, p)
	if hashes != nil && cacheable && ctx.Err() == nil {
		hashes.Put(p, h, info.Size, info.ModTime)
	}
	return h, true
}

// computeHash copies a book into the scratch dir and hashes it. The second
// result is false when the archive was never read, so the outcome must not be
// cached.
func (s *Scanner) computeHash(ctx context.Context, p string) (string, bool) {
	local := s.fs.Local()
	dir := s.cfg.ScratchDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := local.MkdirAll(dir, 0o755); err != nil {
		s.log.Warn("Scratch dir unavailable", zap.String("dir", dir), zap.Error(err))
		return epub.NoHash, false
	}

	tmp := filepath.Join(dir, "marvin-"+uuid.NewString()+".epub")
	defer func() { _ = local.Remove(tmp) }()

	if err := s.fs.CopyFromDevice(ctx, p, tmp); err != nil {
		s.log.Warn("Book copy failed", zap.String("path", p), zap.Error(err))
		return epub.NoHash, false
	}

	f, err := local.Open(tmp)
	if err != nil {
		return epub.NoHash, false
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return epub.NoHash, false
	}
	h, err := epub.HashReader(f, st.Size())
	if err != nil {
		s.log.Debug("Book not hashable", zap.String("path", p), zap.Error(err))
		return epub.NoHash, true
	}
	return h, true
}
