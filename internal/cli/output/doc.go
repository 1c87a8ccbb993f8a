// Package output formats kvwait-cli results.
//
//   - formatter.go: Formatter interface and factory
//   - table.go: aligned tables for terminals
//   - json.go, yaml.go: machine-readable output
//   - progress.go: operation counter for batch runs
//   - spinner.go: animation while a GETWHEN blocks
//
// Values are raw bytes. Table output prints them as text when they are
// printable UTF-8 and quoted otherwise; JSON and YAML carry them as strings.
package output
