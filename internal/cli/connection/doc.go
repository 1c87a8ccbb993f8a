// Package connection provides the client side of kvwait for the CLI.
//
//   - client.go: binary protocol client over one persistent TCP connection
//   - manager.go: the current connection and login of an interactive shell
//   - http.go: admin HTTP client for /health, /ready and /status
package connection
