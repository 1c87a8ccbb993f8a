// Package main provides the entry point for kvwait-server.
//
// The server accepts the kvwait binary protocol on one TCP listener and
// admits at most MAX_SESSIONS connections at a time; further connections
// queue until a slot frees. An optional admin HTTP listener serves health,
// readiness, status and Prometheus metrics.
//
// Usage:
//
//	kvwait-server [flags] MAX_SESSIONS
//	kvwait-server --config /etc/kvwait/server.yaml 64
//
// Configuration is read from defaults, the YAML file, KVWAIT_* variables
// and flags, in increasing precedence. Editing the file changes the log
// level without a restart.
package main
