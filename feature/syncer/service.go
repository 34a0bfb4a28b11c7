package syncer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"marvin-sync/core/cover"
	"marvin-sync/core/devicefs"
	"marvin-sync/core/hashcache"
	"marvin-sync/core/logger"
	"marvin-sync/core/model"
	"marvin-sync/core/protocol"
	"marvin-sync/core/reconcile"
	"marvin-sync/feature/device"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Library is the desktop library the service reads and writes.
type Library interface {
	Identity(ctx context.Context) (model.LibraryIdentity, error)
	GetMetadata(ctx context.Context, id int64) (*model.Metadata, error)
	SetMetadata(ctx context.Context, id int64, md *model.Metadata, fields []string) error
	Cover(ctx context.Context, id int64) ([]byte, time.Time, error)
	GetCustomField(ctx context.Context, id int64, label string) (any, error)
	SetCustomField(ctx context.Context, id int64, label string, value any) error
}

// Covers produces desktop cover thumbnails.
type Covers interface {
	reconcile.CoverHasher
	Thumbnail(ctx context.Context, md *model.Metadata) (cover.Thumb, bool, error)
}

// Deps are the collaborators of a Service.
type Deps struct {
	Library  Library
	Indexer  reconcile.IndexBuilder
	Covers   Covers
	Device   devicefs.FS
	IndexTTL time.Duration
}

// Options configure the device side.
type Options struct {
	Sync     Config
	Device   device.Config
	Protocol protocol.Config
}

// Service runs one device session. Every operation holds the session lock, so
// the record set has a single writer.
type Service struct {
	cfg     Config
	devCfg  device.Config
	lib     Library
	indexer reconcile.IndexBuilder
	covers  Covers
	fs      devicefs.FS
	index   *reconcile.IndexCache
	engine  *reconcile.Engine
	snaps   *device.Snapshotter
	scanner *device.Scanner
	proto   *protocol.Protocol
	logger  *zap.Logger

	mu           sync.Mutex
	records      map[int64]*model.BookRecord
	deviceHashes model.HashMap
	hashes       *hashcache.Cache
	idx          *model.LibraryIndex
}

// NewService wires a session over deps.
func NewService(deps Deps, opts Options, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	snaps := device.NewSnapshotter(deps.Device, opts.Device, log)

	return &Service{
		cfg:          opts.Sync,
		devCfg:       opts.Device,
		lib:          deps.Library,
		indexer:      deps.Indexer,
		covers:       deps.Covers,
		fs:           deps.Device,
		index:        reconcile.NewIndexCache(deps.IndexTTL),
		engine:       reconcile.NewEngine(deps.Covers, logger.Component(log, "match")),
		snaps:        snaps,
		scanner:      device.NewScanner(deps.Device, opts.Device, log),
		proto:        protocol.New(deps.Device, opts.Protocol, snaps, log),
		logger:       logger.Component(log, "sync"),
		records:      make(map[int64]*model.BookRecord),
		deviceHashes: make(model.HashMap),
	}
}

// Logger returns the service logger.
func (s *Service) Logger() *zap.Logger { return s.logger }

// FullSync indexes the library and scans the device concurrently, then
// matches and classifies every device book. Running it twice without changes
// on either side yields the same records.
func (s *Service) FullSync(ctx context.Context) ([]*model.BookRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	var (
		idx     *model.LibraryIndex
		records map[int64]*model.BookRecord
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		idx, err = s.loadIndex(gctx)
		return stageError(StageLibrary, err)
	})
	g.Go(func() error {
		var err error
		records, err = s.scanDevice(gctx)
		return stageError(StageDevice, err)
	})
	if err := g.Wait(); err != nil {
		s.logger.Warn("Full sync failed", zap.Error(err))
		return nil, err
	}

	s.idx = idx
	s.records = records
	summary := s.match(ctx)

	s.logger.Info("Full sync complete",
		zap.Int("books", summary.Total),
		zap.Int("mismatched", summary.Mismatched),
		zap.Any("by_quality", summary.ByQuality),
		zap.Duration("took", time.Since(start)),
	)
	return s.sorted(), nil
}

func (s *Service) loadIndex(ctx context.Context) (*model.LibraryIndex, error) {
	identity, err := s.lib.Identity(ctx)
	if err != nil {
		return nil, err
	}
	return s.index.Get(ctx, identity, s.indexer.Build)
}

// scanDevice pulls a fresh snapshot and scans it. The device hash cache is
// saved on every exit path, so an aborted scan keeps the hashes it computed.
func (s *Service) scanDevice(ctx context.Context) (map[int64]*model.BookRecord, error) {
	snap, err := s.snaps.Pull(ctx)
	if err != nil {
		return nil, err
	}

	if s.hashes == nil {
		s.hashes = hashcache.Open(ctx, s.fs, s.devCfg.HashCacheDir, s.logger)
	}
	defer func() {
		if err := s.hashes.Save(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("Failed to save device hash cache", zap.Error(err))
		}
	}()

	records, err := s.scanner.Scan(ctx, snap, s.hashes)
	if err != nil {
		return nil, err
	}

	valid := make([]string, 0, len(records))
	for _, r := range records {
		valid = append(valid, r.Path)
	}
	s.hashes.PurgeOrphans(valid)
	return records, nil
}

// match runs the match engine over the current record set.
func (s *Service) match(ctx context.Context) reconcile.Summary {
	books := make([]*model.BookRecord, 0, len(s.records))
	for _, r := range s.records {
		books = append(books, r)
	}
	res := s.engine.Run(ctx, books, s.idx)
	s.deviceHashes = res.DeviceHashes
	return res.Summary
}

// rematch refreshes the index when the library changed and reclassifies.
func (s *Service) rematch(ctx context.Context) error {
	idx, err := s.loadIndex(ctx)
	if err != nil {
		return stageError(StageLibrary, err)
	}
	s.idx = idx
	s.match(ctx)
	return nil
}

// refreshAfter re-reads the touched books from the refreshed snapshot, drops
// those the app removed and reclassifies every record.
func (s *Service) refreshAfter(ctx context.Context, ids []int64) error {
	snap := s.snaps.Current()
	if snap == nil {
		return stageError(StageDevice, errors.New("no device snapshot"))
	}

	fresh, err := s.scanner.Rescan(ctx, snap, s.hashes, ids)
	if err != nil {
		return stageError(StageDevice, err)
	}
	for _, id := range ids {
		if rec, ok := fresh[id]; ok {
			s.records[id] = rec
			continue
		}
		s.forget(id)
	}
	if s.hashes != nil {
		if err := s.hashes.Save(ctx); err != nil {
			s.logger.Warn("Failed to save device hash cache", zap.Error(err))
		}
	}
	return s.rematch(ctx)
}

func (s *Service) forget(id int64) {
	delete(s.records, id)
	s.deviceHashes.Remove(strconv.FormatInt(id, 10))
}

// issue sends a command and attributes failures to the command stage.
func (s *Service) issue(ctx context.Context, req protocol.Request) (*protocol.Result, error) {
	res, err := s.proto.Issue(ctx, req)
	if err != nil {
		return nil, stageError(StageCommand, err)
	}
	return res, nil
}

// lookup resolves ids against the record set, failing unknown ones in report.
func (s *Service) lookup(ids []int64, report *BatchReport) []*model.BookRecord {
	out := make([]*model.BookRecord, 0, len(ids))
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		rec, ok := s.records[id]
		if !ok {
			report.fail(id, fmt.Errorf("book %d: %w", id, ErrUnknownBook))
			continue
		}
		out = append(out, rec)
	}
	return out
}

// Records returns a copy of the current record set ordered by id.
func (s *Service) Records() []*model.BookRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sorted()
}

// Record returns a copy of one record.
func (s *Service) Record(id int64) (*model.BookRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, false
	}
	return rec.Clone(), true
}

// DeviceHashes returns a copy of the device hash map: content hash to device book ids.
func (s *Service) DeviceHashes() model.HashMap {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(model.HashMap, len(s.deviceHashes))
	for h, ids := range s.deviceHashes {
		out[h] = append([]string(nil), ids...)
	}
	return out
}

// Summary counts the current records per quality.
func (s *Service) Summary() reconcile.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	books := make([]*model.BookRecord, 0, len(s.records))
	for _, r := range s.records {
		books = append(books, r)
	}
	return reconcile.Summarize(books)
}

// AppInfo reads the installed app's version details.
func (s *Service) AppInfo(ctx context.Context) (device.AppInfo, error) {
	return device.ReadAppInfo(ctx, s.fs, s.devCfg)
}

// Disconnect discards the session state.
func (s *Service) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[int64]*model.BookRecord)
	s.deviceHashes = make(model.HashMap)
	s.hashes = nil
	s.idx = nil
	return s.snaps.Close()
}

func (s *Service) sorted() []*model.BookRecord {
	out := make([]*model.BookRecord, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
