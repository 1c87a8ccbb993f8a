// Package command provides CLI command definitions for kvwait-cli.
//
// This package defines all CLI commands using urfave/cli/v2:
//
//   - root.go: App, global flags, profile resolution
//   - kv.go: register, put, get, mput, mget and getwhen
//   - batch.go: the random-operation load driver
//   - shell.go: interactive shell over one connection
//   - status.go: admin endpoint health and status
//   - config.go: CLI profile management
//
// One-shot commands dial, log in, run one operation and send EXIT.
package command
