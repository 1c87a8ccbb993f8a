package httpserver

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/yndnr/kvwait/internal/infra/buildinfo"
	"github.com/yndnr/kvwait/internal/telemetry/logger"
)

type handler struct {
	ready  func() bool
	status func() any
	logger logger.Logger
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	GoVersion string `json:"go_version"`
	Time      string `json:"time"`
}

// ReadyResponse is the body of GET /ready.
type ReadyResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	info := buildinfo.Get()
	h.writeJSON(w, r, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Version:   info.Version,
		Commit:    info.Commit,
		GoVersion: info.GoVersion,
		Time:      time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *handler) handleReady(w http.ResponseWriter, r *http.Request) {
	resp := ReadyResponse{
		Status: "ready",
		Time:   time.Now().UTC().Format(time.RFC3339),
	}
	code := http.StatusOK
	if h.ready != nil && !h.ready() {
		resp.Status = "not_ready"
		code = http.StatusServiceUnavailable
	}
	h.writeJSON(w, r, code, resp)
}

func (h *handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, h.status())
}

func (h *handler) writeJSON(w http.ResponseWriter, r *http.Request, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Warn("write response failed",
			"request_id", GetRequestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
	}
}
