package config

import (
	"reflect"
	"strings"

	"marvin-sync/core/devicefs"
	"marvin-sync/core/logger"
	"marvin-sync/core/protocol"
	"marvin-sync/core/server"
	"marvin-sync/core/storage"
	"marvin-sync/feature/device"
	"marvin-sync/feature/library"
	"marvin-sync/feature/syncer"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// It is divided into partial configurations for better modularity.
type Config struct {
	// Server holds configuration for the HTTP bridge.
	Server server.Config `mapstructure:"server"`
	// Storage holds configuration for the object store mirroring the device sandbox.
	Storage storage.Config `mapstructure:"storage"`
	// Log holds configuration for the logger.
	Log logger.Config `mapstructure:"log"`
	// Library holds configuration for the desktop calibre library.
	Library library.Config `mapstructure:"library"`
	// Device holds the device filesystem backend and the app sandbox layout.
	Device Device `mapstructure:"device"`
	// Protocol holds the command exchange settings.
	Protocol protocol.Config `mapstructure:"protocol"`
	// Sync holds the sync behavior settings.
	Sync syncer.Config `mapstructure:"sync"`
}

// Device combines the filesystem backend with the app layout.
type Device struct {
	devicefs.Config `mapstructure:",squash"`
	// App locates the reader app's files inside its sandbox.
	App device.Config `mapstructure:"app"`
}

// AppConfig returns the app layout, inheriting the backend scratch dir.
func (d Device) AppConfig() device.Config {
	app := d.App.WithDefaults()
	if app.ScratchDir == "" {
		app.ScratchDir = d.ScratchDir
	}
	return app
}

// LoadConfig loads configuration from environment variables and .env file.
func LoadConfig(path string) (*Config, error) {
	// 1. Load .env file if it exists
	envPath := path + "/.env"
	if path == "." {
		envPath = ".env"
	}

	// Ignore error if file doesn't exist (e.g. production)
	_ = godotenv.Overload(envPath)

	v := viper.New()

	// Recursively parse struct tags to set default values
	bindValues(v, Config{}, "")

	// Map environment variables to nested keys (e.g. DEVICE_MOUNT_POINT -> device.mount_point)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// bindValues uses reflection to iterate over the struct and set default values in Viper
// based on the 'default' and 'mapstructure' tags. Squashed structs share their
// parent's prefix.
func bindValues(v *viper.Viper, iface any, prefix string) {
	t := reflect.TypeOf(iface)

	// If it's a pointer, get the element
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")

		// Skip if no tag
		if tag == "" {
			continue
		}

		name, opts, _ := strings.Cut(tag, ",")
		if opts == "squash" && field.Type.Kind() == reflect.Struct {
			bindValues(v, reflect.New(field.Type).Elem().Interface(), prefix)
			continue
		}

		// Build the key
		key := name
		if prefix != "" {
			key = prefix + "." + name
		}

		// If it's a nested struct, recurse
		if field.Type.Kind() == reflect.Struct {
			bindValues(v, reflect.New(field.Type).Elem().Interface(), key)
			continue
		}

		defaultValue := field.Tag.Get("default")
		// Always set default (even if empty) to register the key for AutomaticEnv
		v.SetDefault(key, defaultValue)
	}
}
