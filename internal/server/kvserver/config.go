package kvserver

import "time"

// Config holds the protocol server configuration.
type Config struct {
	// Addr is the TCP listen address.
	Addr string
	// ReadTimeout bounds reading the rest of a frame once its command
	// byte arrived. Zero disables it.
	ReadTimeout time.Duration
	// WriteTimeout bounds writing one response. Zero disables it.
	WriteTimeout time.Duration
	// IdleTimeout bounds the gap between commands. Zero disables it,
	// so a logged-in client may stay silent forever.
	IdleTimeout time.Duration
	// RateLimit is the maximum number of commands per second per
	// connection. Commands above the limit are delayed, not refused.
	// Zero disables rate limiting.
	RateLimit int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Addr:         ":8080",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}
