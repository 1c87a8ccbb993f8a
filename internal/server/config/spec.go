package config

import "time"

// ServerConfig is the root configuration for kvwait-server.
type ServerConfig struct {
	Server ServerSection `koanf:"server"`
	Admin  AdminSection  `koanf:"admin"`
	Log    LogSection    `koanf:"log"`
}

// ServerSection configures the key-value protocol listener.
type ServerSection struct {
	// Addr is the TCP listen address.
	Addr string `koanf:"addr"`

	// MaxSessions bounds the number of concurrently admitted connections.
	// Required; usually supplied as the positional command-line argument.
	MaxSessions int `koanf:"max_sessions"`

	// ReadTimeout bounds reading one request frame once its command byte
	// has arrived.
	ReadTimeout time.Duration `koanf:"read_timeout"`

	// WriteTimeout bounds writing one response frame.
	WriteTimeout time.Duration `koanf:"write_timeout"`

	// IdleTimeout closes connections that send nothing for this long.
	// Zero keeps idle connections open indefinitely.
	IdleTimeout time.Duration `koanf:"idle_timeout"`

	// RateLimit is the number of commands per second one connection may
	// issue before it is throttled. Zero disables throttling.
	RateLimit int `koanf:"rate_limit"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// AdminSection configures the HTTP endpoint serving health and metrics.
type AdminSection struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`

	// AllowList restricts admin requests to these IPs or CIDR blocks.
	// Empty allows every client.
	AllowList []string `koanf:"allow_list"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}
