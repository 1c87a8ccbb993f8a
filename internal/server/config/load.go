package config

import (
	"github.com/yndnr/kvwait/internal/infra/confloader"
)

// EnvPrefix prefixes environment variables read by the server.
const EnvPrefix = "KVWAIT_"

// Load builds the configuration from the defaults, the YAML file at path
// (optional), KVWAIT_* variables and overrides, in increasing precedence,
// and verifies the result.
func Load(path string, overrides map[string]any) (*ServerConfig, error) {
	cfg := Default()

	loader := confloader.NewLoader(
		confloader.WithEnvPrefix(EnvPrefix),
		confloader.WithConfigFile(path),
		confloader.WithOverrides(overrides),
	)
	if err := loader.Load(cfg); err != nil {
		return nil, err
	}

	if err := Verify(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
