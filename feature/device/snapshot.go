package device

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"marvin-sync/core/devicedb"
	"marvin-sync/core/devicefs"
	"marvin-sync/core/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Snapshotter keeps a local read-only copy of the app database. Pull replaces
// it with a fresh copy; it is the refresher the command protocol calls after
// mutating commands.
type Snapshotter struct {
	fs  devicefs.FS
	cfg Config
	log *zap.Logger

	mu      sync.RWMutex
	current *devicedb.Snapshot
	local   string
}

// NewSnapshotter creates a Snapshotter. Nothing is copied until Pull.
func NewSnapshotter(fs devicefs.FS, cfg Config, log *zap.Logger) *Snapshotter {
	return &Snapshotter{fs: fs, cfg: cfg.WithDefaults(), log: logger.Component(log, "snapshot")}
}

func (s *Snapshotter) scratchDir() string {
	if s.cfg.ScratchDir != "" {
		return s.cfg.ScratchDir
	}
	return os.TempDir()
}

// Pull copies the app database to scratch storage and opens it.
func (s *Snapshotter) Pull(ctx context.Context) (*devicedb.Snapshot, error) {
	local := s.fs.Local()
	dir := s.scratchDir()
	if err := local.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("scratch dir %s: %w", dir, err)
	}

	target := filepath.Join(dir, "marvin-"+uuid.NewString()+".sqlite")
	if err := s.fs.CopyFromDevice(ctx, s.cfg.DatabasePath, target); err != nil {
		return nil, fmt.Errorf("copy device db: %w", err)
	}

	snap, err := devicedb.OpenFile(ctx, target, s.log)
	if err != nil {
		_ = local.Remove(target)
		return nil, err
	}

	s.mu.Lock()
	prev, prevPath := s.current, s.local
	s.current, s.local = snap, target
	s.mu.Unlock()

	s.release(prev, prevPath)
	s.log.Debug("Device db snapshot pulled", zap.String("path", target))
	return snap, nil
}

// Refresh pulls a fresh snapshot.
func (s *Snapshotter) Refresh(ctx context.Context) error {
	_, err := s.Pull(ctx)
	return err
}

// Current returns the latest snapshot, or nil before the first Pull.
func (s *Snapshotter) Current() *devicedb.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Close releases the current snapshot and deletes its scratch copy.
func (s *Snapshotter) Close() error {
	s.mu.Lock()
	snap, p := s.current, s.local
	s.current, s.local = nil, ""
	s.mu.Unlock()

	s.release(snap, p)
	return nil
}

func (s *Snapshotter) release(snap *devicedb.Snapshot, p string) {
	if snap != nil {
		if err := snap.Close(); err != nil {
			s.log.Debug("Snapshot close failed", zap.Error(err))
		}
	}
	if p != "" {
		if err := s.fs.Local().Remove(p); err != nil && !os.IsNotExist(err) {
			s.log.Debug("Snapshot scratch removal failed", zap.String("path", p), zap.Error(err))
		}
	}
}
