// Package confloader loads configuration with koanf.
//
// Priority (highest to lowest):
//
//  1. Overrides (command-line flags)
//  2. Environment variables
//  3. Configuration file (YAML)
//  4. Values already present in the target struct (defaults)
//
// The Watcher reports changes to the configuration file so long-running
// processes can apply reloadable settings such as the log level.
package confloader
