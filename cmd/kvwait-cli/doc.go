// Package main provides the entry point for kvwait-cli.
//
// kvwait-cli talks to kvwait-server over the binary protocol. It runs one
// operation per invocation (put, get, mput, mget, getwhen), drives random
// load with batch, or opens an interactive shell over a single connection.
// The status command reads the server's admin HTTP endpoint.
package main
