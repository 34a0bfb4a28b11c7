package integrity

import (
	"context"

	"marvin-sync/core/devicefs"
	"marvin-sync/core/logger"
	"marvin-sync/core/protocol"
	"marvin-sync/feature/device"
	"marvin-sync/feature/integrity/checks"
	"marvin-sync/feature/library"
	"marvin-sync/feature/syncer"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Layout names the device paths and library fields the checks expect.
type Layout struct {
	// Folders must exist in the device sandbox.
	Folders []string
	// Files must exist and be non-empty.
	Files []string
	// Fields are the custom field labels the sync configuration refers to.
	Fields []string
}

// Service handles integrity checks.
type Service struct {
	fs     devicefs.FS
	db     *gorm.DB
	layout Layout
	logger *zap.Logger
}

// NewService creates a new integrity service. fs or db may be nil, in which
// case the checks needing them report an error.
func NewService(fs devicefs.FS, db *gorm.DB, layout Layout, log *zap.Logger) *Service {
	return &Service{
		fs:     fs,
		db:     db,
		layout: layout,
		logger: logger.Component(log, "integrity"),
	}
}

// CheckStructure returns a list of missing folders.
func (s *Service) CheckStructure(ctx context.Context) ([]string, error) {
	if s.fs == nil {
		return nil, errNoDevice
	}
	return checks.CheckStructure(ctx, s.fs, s.layout.Folders)
}

// FixStructure creates the missing folders.
func (s *Service) FixStructure(ctx context.Context, missing []string) error {
	if s.fs == nil {
		return errNoDevice
	}
	return checks.FixStructure(ctx, s.fs, s.logger, missing)
}

// CheckFiles reports on the required device files.
func (s *Service) CheckFiles(ctx context.Context) ([]checks.FileReport, error) {
	if s.fs == nil {
		return nil, errNoDevice
	}
	return checks.CheckFiles(ctx, s.fs, s.layout.Files)
}

// CheckLibrary verifies the library schema and the configured custom fields.
func (s *Service) CheckLibrary() (*checks.LibraryReport, error) {
	return checks.CheckLibrary(s.db, library.RequiredSchema, s.layout.Fields)
}

// NewLayout derives the expected layout from the device, protocol and sync
// settings.
func NewLayout(dev device.Config, proto protocol.Config, sync syncer.Config) Layout {
	dev = dev.WithDefaults()
	proto = proto.WithDefaults()
	return Layout{
		Folders: uniq(dev.BooksFolder, proto.StagingFolder, dev.HashCacheDir),
		Files:   []string{dev.DatabasePath, dev.PreferencesPath},
		Fields:  uniq(sync.CollectionsField, sync.AnnotationsField, sync.ProgressField),
	}
}

func uniq(values ...string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
