package server

import (
	"net"
	"time"
)

// Config holds configuration for the HTTP bridge.
type Config struct {
	// Host is the interface the bridge binds to. Defaults to loopback since the
	// bridge drives a locally attached device.
	Host string `mapstructure:"host" default:"127.0.0.1"`
	// Port is the port where the server will listen.
	Port string `mapstructure:"port" default:"8080"`
	// ApiKey is the secret key required to access the API.
	ApiKey string `mapstructure:"api_key" default:""`
	// ReadTimeoutSeconds bounds request body reads.
	ReadTimeoutSeconds int `mapstructure:"read_timeout_seconds" default:"30"`
}

// Address returns the host:port listen address.
func (c Config) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// ReadTimeout returns the read timeout, falling back to 30s when unset.
func (c Config) ReadTimeout() time.Duration {
	if c.ReadTimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.ReadTimeoutSeconds) * time.Second
}
