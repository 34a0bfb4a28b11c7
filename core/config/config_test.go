package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "EPUB", cfg.Library.Format)
	assert.Equal(t, "mount", cfg.Device.Backend)
	assert.Equal(t, "/mnt/marvin", cfg.Device.MountPoint)
	assert.Equal(t, "Library/mainDb.sqlite", cfg.Device.App.DatabasePath)
	assert.Equal(t, 10*time.Second, cfg.Protocol.Timeout)
	assert.Equal(t, 250*time.Millisecond, cfg.Protocol.PollInterval)
	assert.Equal(t, "marvin.cmd", cfg.Protocol.CommandFile)
	assert.Empty(t, cfg.Sync.CollectionsField)
}

func TestLoadConfig_Env(t *testing.T) {
	dir := t.TempDir()
	env := "DEVICE_MOUNT_POINT=/media/ipad\nPROTOCOL_TIMEOUT=30s\nSYNC_COLLECTIONS_FIELD=\"#shelves\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(env), 0o644))
	t.Cleanup(func() {
		for _, k := range []string{"DEVICE_MOUNT_POINT", "PROTOCOL_TIMEOUT", "SYNC_COLLECTIONS_FIELD"} {
			_ = os.Unsetenv(k)
		}
	})
	t.Setenv("DEVICE_SCRATCH_DIR", "/tmp/scratch")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "/media/ipad", cfg.Device.MountPoint)
	assert.Equal(t, 30*time.Second, cfg.Protocol.Timeout)
	assert.Equal(t, "#shelves", cfg.Sync.CollectionsField)
	assert.Equal(t, "/tmp/scratch", cfg.Device.AppConfig().ScratchDir)
}

func TestBindValues_Squash(t *testing.T) {
	v := viper.New()
	bindValues(v, Config{}, "")

	keys := v.AllKeys()
	assert.Contains(t, keys, "device.mount_point")
	assert.Contains(t, keys, "device.app.bundle_id")
	assert.NotContains(t, keys, "device.config.mount_point")
}
