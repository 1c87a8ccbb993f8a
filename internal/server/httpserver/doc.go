// Package httpserver provides the admin HTTP endpoint of kvwait-server.
//
// Routes:
//
//   - GET /health: liveness and build information
//   - GET /ready: readiness of the protocol listener
//   - GET /status: session and store counters as JSON
//   - GET /metrics: Prometheus exposition
//
// Every route runs behind RequestID, Recover and AccessLog. An optional
// IP/CIDR allow list guards the whole endpoint.
package httpserver
