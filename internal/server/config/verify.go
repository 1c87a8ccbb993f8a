package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/yndnr/kvwait/internal/core/domain"
	"github.com/yndnr/kvwait/internal/telemetry/logger"
)

// Verify validates the configuration. Every failure wraps
// domain.ErrInvalidConfig.
func Verify(cfg *ServerConfig) error {
	if cfg == nil {
		return domain.ErrInvalidConfig.WithDetails("config is nil")
	}
	if err := verifyServer(&cfg.Server); err != nil {
		return err
	}
	if err := verifyAdmin(&cfg.Admin, cfg.Server.Addr); err != nil {
		return err
	}
	return verifyLog(&cfg.Log)
}

func verifyServer(s *ServerSection) error {
	if s.MaxSessions <= 0 {
		return invalid("server.max_sessions must be a positive integer, got %d", s.MaxSessions)
	}
	if err := verifyAddr("server.addr", s.Addr); err != nil {
		return err
	}
	if s.ReadTimeout < 0 || s.WriteTimeout < 0 || s.IdleTimeout < 0 || s.ShutdownTimeout < 0 {
		return invalid("server timeouts must not be negative")
	}
	if s.RateLimit < 0 {
		return invalid("server.rate_limit must not be negative, got %d", s.RateLimit)
	}
	return nil
}

func verifyAdmin(a *AdminSection, serverAddr string) error {
	if !a.Enabled {
		return nil
	}
	if err := verifyAddr("admin.addr", a.Addr); err != nil {
		return err
	}
	if a.Addr == serverAddr {
		return invalid("admin.addr must differ from server.addr (%s)", a.Addr)
	}
	for _, entry := range a.AllowList {
		if strings.Contains(entry, "/") {
			if _, _, err := net.ParseCIDR(entry); err != nil {
				return invalid("admin.allow_list entry %q: %v", entry, err)
			}
			continue
		}
		if net.ParseIP(entry) == nil {
			return invalid("admin.allow_list entry %q is not an IP or CIDR", entry)
		}
	}
	return nil
}

func verifyLog(l *LogSection) error {
	if !logger.ValidLevel(l.Level) {
		return invalid("log.level %q is not one of debug, info, warn, error", l.Level)
	}
	if !logger.ValidFormat(l.Format) {
		return invalid("log.format %q is not one of json, text", l.Format)
	}
	return nil
}

func verifyAddr(field, addr string) error {
	if addr == "" {
		return invalid("%s is required", field)
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return invalid("%s %q: %v", field, addr, err)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return domain.ErrInvalidConfig.WithDetails(fmt.Sprintf(format, args...))
}
