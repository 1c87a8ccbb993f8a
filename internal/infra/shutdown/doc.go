// Package shutdown coordinates graceful process termination.
//
// Usage:
//
//	h := shutdown.NewHandler(10*time.Second, log)
//	h.OnShutdown("kvserver", srv.Shutdown)
//	h.OnShutdown("admin", admin.Shutdown)
//	err := h.Wait(ctx) // blocks until SIGINT/SIGTERM or ctx is done
//
// Hooks run in reverse registration order under one shared timeout.
package shutdown
