package checks

import (
	"context"
	"fmt"

	"marvin-sync/core/devicefs"
)

// FileReport describes one required device file.
type FileReport struct {
	Path   string `json:"path"`
	Exists bool   `json:"exists"`
	Size   int64  `json:"size"`
	Empty  bool   `json:"empty"`
}

// CheckFiles stats the required device files. A file that exists but is
// empty is reported as such, since the app never writes an empty database.
func CheckFiles(ctx context.Context, fs devicefs.FS, paths []string) ([]FileReport, error) {
	out := make([]FileReport, 0, len(paths))
	for _, p := range paths {
		info, err := fs.Stat(ctx, p)
		if devicefs.IsNotExist(err) {
			out = append(out, FileReport{Path: p})
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", p, err)
		}
		out = append(out, FileReport{Path: p, Exists: true, Size: info.Size, Empty: info.Size == 0})
	}
	return out, nil
}

// MissingFiles returns the paths of reports that are absent or empty.
func MissingFiles(reports []FileReport) []string {
	missing := []string{}
	for _, r := range reports {
		if !r.Exists || r.Empty {
			missing = append(missing, r.Path)
		}
	}
	return missing
}
