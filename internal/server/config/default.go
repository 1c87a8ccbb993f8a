package config

import "time"

// Default configuration values.
const (
	DefaultAddr            = ":8080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultShutdownTimeout = 10 * time.Second

	DefaultAdminAddr = "127.0.0.1:9090"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default server configuration. MaxSessions has no
// default and must be supplied.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			Addr:            DefaultAddr,
			ReadTimeout:     DefaultReadTimeout,
			WriteTimeout:    DefaultWriteTimeout,
			ShutdownTimeout: DefaultShutdownTimeout,
		},
		Admin: AdminSection{
			Enabled: false,
			Addr:    DefaultAdminAddr,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
