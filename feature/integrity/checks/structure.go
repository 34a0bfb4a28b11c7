package checks

import (
	"context"
	"fmt"

	"marvin-sync/core/devicefs"

	"go.uber.org/zap"
)

// CheckStructure returns the folders missing from the device sandbox.
func CheckStructure(ctx context.Context, fs devicefs.FS, folders []string) ([]string, error) {
	missing := []string{}
	for _, folder := range folders {
		ok, err := fs.Exists(ctx, folder)
		if err != nil {
			return nil, fmt.Errorf("failed to check folder %s: %w", folder, err)
		}
		if !ok {
			missing = append(missing, folder)
		}
	}
	return missing, nil
}

// FixStructure creates the missing folders.
func FixStructure(ctx context.Context, fs devicefs.FS, logger *zap.Logger, missing []string) error {
	for _, folder := range missing {
		if err := fs.Mkdir(ctx, folder); err != nil {
			logger.Error("Failed to create folder", zap.String("folder", folder), zap.Error(err))
			return err
		}
		logger.Info("Created missing folder", zap.String("folder", folder))
	}
	return nil
}
