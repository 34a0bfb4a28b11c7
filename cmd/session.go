package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"marvin-sync/core/config"
	"marvin-sync/core/cover"
	"marvin-sync/core/devicefs"
	"marvin-sync/core/hashcache"
	"marvin-sync/core/logger"
	"marvin-sync/core/storage"
	"marvin-sync/feature/library"
	"marvin-sync/feature/syncer"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// session holds everything one command needs to talk to the library and the device.
type session struct {
	cfg   *config.Config
	log   *zap.Logger
	store *library.Store
	fs    devicefs.FS
	sync  *syncer.Service
}

// openSession loads the configuration and wires the library, the device
// filesystem and the services on top of them.
func openSession(ctx context.Context) (*session, error) {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	l, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	store, err := library.Open(cfg.Library, l)
	if err != nil {
		return nil, fmt.Errorf("failed to open library: %w", err)
	}

	fs, err := openDevice(ctx, cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	hashDir := cfg.Library.HashCacheDir
	if hashDir == "" {
		hashDir = defaultHashCacheDir()
	}
	hashes := hashcache.OpenLocal(ctx, afero.NewOsFs(), hashDir, logger.Component(l, "library_hashes"))

	appCfg := cfg.Device.AppConfig()
	svc := syncer.NewService(syncer.Deps{
		Library:  store,
		Indexer:  library.NewIndexer(store, cfg.Library.Format, hashes, cfg.Library.HashWorkers, l),
		Covers:   library.NewCovers(store, cover.NewHasher(0, 0)),
		Device:   fs,
		IndexTTL: cfg.Library.IndexTTL,
	}, syncer.Options{Sync: cfg.Sync, Device: appCfg, Protocol: cfg.Protocol}, l)

	return &session{cfg: cfg, log: l, store: store, fs: fs, sync: svc}, nil
}

// openDevice builds the configured device filesystem backend.
func openDevice(ctx context.Context, cfg *config.Config) (devicefs.FS, error) {
	var client storage.Client
	if cfg.Device.Backend == devicefs.BackendObject {
		c, err := storage.NewClient(cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to storage: %w", err)
		}
		if err := storage.VerifyMirror(ctx, c, cfg.Storage.Bucket); err != nil {
			return nil, err
		}
		client = c
	}
	fs, err := devicefs.New(cfg.Device.Config, client, cfg.Storage.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to open device: %w", err)
	}
	return fs, nil
}

func defaultHashCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "marvin-sync")
}

func (s *session) Close() {
	if err := s.sync.Disconnect(); err != nil {
		s.log.Warn("Failed to release device snapshot", zap.Error(err))
	}
	if err := s.store.Close(); err != nil {
		s.log.Warn("Failed to close library", zap.Error(err))
	}
	_ = s.log.Sync()
}
