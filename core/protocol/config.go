package protocol

import (
	"time"

	"marvin-sync/core/devicefs"
)

// Config holds the command exchange settings.
type Config struct {
	// StagingFolder is the device folder watched by the app.
	StagingFolder string `mapstructure:"staging_folder" default:"Library/calibre"`
	// CommandFile is the name of the command artifact.
	CommandFile string `mapstructure:"command_file" default:"marvin.cmd"`
	// StatusFile is the name of the status artifact written by the app.
	StatusFile string `mapstructure:"status_file" default:"marvin.status"`
	// CancelFile is the name of the cancel request artifact.
	CancelFile string `mapstructure:"cancel_file" default:"marvin.cancel"`
	// Timeout is the watchdog window without acknowledgement or progress.
	Timeout time.Duration `mapstructure:"timeout" default:"10s"`
	// PollInterval is the status polling period.
	PollInterval time.Duration `mapstructure:"poll_interval" default:"250ms"`
}

// DefaultConfig returns the configuration the app expects out of the box.
func DefaultConfig() Config {
	return Config{
		StagingFolder: "Library/calibre",
		CommandFile:   "marvin.cmd",
		StatusFile:    "marvin.status",
		CancelFile:    "marvin.cancel",
		Timeout:       10 * time.Second,
		PollInterval:  250 * time.Millisecond,
	}
}

// WithDefaults fills unset fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.StagingFolder == "" {
		c.StagingFolder = d.StagingFolder
	}
	if c.CommandFile == "" {
		c.CommandFile = d.CommandFile
	}
	if c.StatusFile == "" {
		c.StatusFile = d.StatusFile
	}
	if c.CancelFile == "" {
		c.CancelFile = d.CancelFile
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	return c
}

// CommandPath is the device path of the command artifact.
func (c Config) CommandPath() string { return devicefs.Join(c.StagingFolder, c.CommandFile) }

// StatusPath is the device path of the status artifact.
func (c Config) StatusPath() string { return devicefs.Join(c.StagingFolder, c.StatusFile) }

// CancelPath is the device path of the cancel artifact.
func (c Config) CancelPath() string { return devicefs.Join(c.StagingFolder, c.CancelFile) }

func tempPath(p string) string { return p + ".tmp" }
