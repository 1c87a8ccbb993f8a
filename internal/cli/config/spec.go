package config

// CLIConfig is the configuration for kvwait-cli.
type CLIConfig struct {
	Connection ConnectionConfig `koanf:"connection" yaml:"connection" json:"connection"`
	Output     OutputConfig     `koanf:"output" yaml:"output" json:"output"`
	Shell      ShellConfig      `koanf:"shell" yaml:"shell" json:"shell"`
}

// ConnectionConfig holds the default server and credentials.
type ConnectionConfig struct {
	// Server is the protocol address, host:port.
	Server string `koanf:"server" yaml:"server" json:"server"`

	// Admin is the admin HTTP address used by the status command.
	Admin string `koanf:"admin" yaml:"admin" json:"admin"`

	User     string `koanf:"user" yaml:"user,omitempty" json:"user,omitempty"`
	Password string `koanf:"password" yaml:"password,omitempty" json:"password,omitempty"`
}

// OutputConfig holds output preferences.
type OutputConfig struct {
	// Format is table, json or yaml.
	Format string `koanf:"format" yaml:"format" json:"format"`
}

// ShellConfig configures the interactive shell.
type ShellConfig struct {
	// HistoryFile is where shell history persists. Empty disables it.
	HistoryFile string `koanf:"history_file" yaml:"history_file" json:"history_file"`

	// HistorySize caps the number of remembered lines.
	HistorySize int `koanf:"history_size" yaml:"history_size" json:"history_size"`
}

// Default returns the default CLI configuration.
func Default() *CLIConfig {
	return &CLIConfig{
		Connection: ConnectionConfig{
			Server: "localhost:8080",
			Admin:  "localhost:9090",
		},
		Output: OutputConfig{
			Format: "table",
		},
		Shell: ShellConfig{
			HistoryFile: DefaultHistoryPath(),
			HistorySize: 1000,
		},
	}
}

// Redacted returns a copy safe to print.
func (c *CLIConfig) Redacted() *CLIConfig {
	out := *c
	if out.Connection.Password != "" {
		out.Connection.Password = "[REDACTED]"
	}
	return &out
}
