package config

// Sanitize returns key/value pairs describing cfg for the startup log line.
// The server configuration holds no secrets; stored data never appears here.
func Sanitize(cfg *ServerConfig) []any {
	fields := []any{
		"addr", cfg.Server.Addr,
		"max_sessions", cfg.Server.MaxSessions,
		"read_timeout", cfg.Server.ReadTimeout.String(),
		"write_timeout", cfg.Server.WriteTimeout.String(),
		"idle_timeout", cfg.Server.IdleTimeout.String(),
		"rate_limit", cfg.Server.RateLimit,
		"log_level", cfg.Log.Level,
		"log_format", cfg.Log.Format,
	}
	if cfg.Admin.Enabled {
		fields = append(fields, "admin_addr", cfg.Admin.Addr)
	}
	return fields
}
