// Package config defines the kvwait-server configuration structure.
//
//   - spec.go: the configuration tree with koanf tags
//   - default.go: built-in defaults
//   - verify.go: validation run before the server starts
//   - sanitize.go: the log-safe summary printed at startup
package config
