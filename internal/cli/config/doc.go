// Package config provides the kvwait-cli profile (~/.kvwait/cli.yaml).
//
// The profile supplies defaults for the global flags. Flags and their
// KVWAIT_CLI_* environment variables always win over the profile.
package config
