package device

import (
	"context"
	"fmt"
	"strings"

	"marvin-sync/core/devicefs"

	"howett.net/plist"
)

// AppInfo is what the app's preference list says about the installed app.
type AppInfo struct {
	Version          string `json:"version,omitempty"`
	Build            string `json:"build,omitempty"`
	DeepViewLanguage string `json:"deep_view_language,omitempty"`
}

// ReadAppInfo reads the app preference plist. A missing plist yields an empty
// AppInfo and no error.
func ReadAppInfo(ctx context.Context, fs devicefs.FS, cfg Config) (AppInfo, error) {
	cfg = cfg.WithDefaults()
	raw, err := fs.Read(ctx, cfg.PreferencesPath)
	if devicefs.IsNotExist(err) {
		return AppInfo{}, nil
	}
	if err != nil {
		return AppInfo{}, fmt.Errorf("read app preferences: %w", err)
	}

	// XML or binary; plist handles both.
	var p struct {
		ShortVersion     string `plist:"CFBundleShortVersionString"`
		Version          string `plist:"CFBundleVersion"`
		AppVersion       string `plist:"AppVersion"`
		DeepViewLanguage string `plist:"DeepViewLanguage"`
	}
	if _, err := plist.Unmarshal(raw, &p); err != nil {
		return AppInfo{}, fmt.Errorf("parse app preferences: %w", err)
	}

	info := AppInfo{
		Version:          strings.TrimSpace(p.ShortVersion),
		Build:            strings.TrimSpace(p.Version),
		DeepViewLanguage: strings.TrimSpace(p.DeepViewLanguage),
	}
	if info.Version == "" {
		info.Version = strings.TrimSpace(p.AppVersion)
	}
	return info, nil
}
