// Package config provides configuration management for marvin-sync.
//
// It utilizes Viper for loading configuration from environment variables and
// an optional .env file. Defaults come from the `default` struct tags of each
// section.
//
// # Configuration Structure
//
// The Config struct is the central repository for all application settings, divided into subsections:
//   - Server: HTTP bridge settings (host, port, API key)
//   - Storage: S3/MinIO credentials for the object device backend
//   - Log: Logging level and format
//   - Library: calibre library folder, book format, hash cache
//   - Device: mount point or object prefix, app sandbox layout
//   - Protocol: command staging folder, file names, timeout
//   - Sync: custom fields receiving collections, annotations and progress
//
// # Usage
//
//	cfg, err := config.LoadConfig(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Device.MountPoint)
package config
