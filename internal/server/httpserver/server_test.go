package httpserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/yndnr/kvwait/internal/telemetry/logger"
	"github.com/yndnr/kvwait/internal/telemetry/metric"
)

func TestServer_StartShutdown(t *testing.T) {
	s := New("127.0.0.1:0", NewRouter(&RouterConfig{Logger: logger.Discard()}), logger.Discard())
	if s.Addr() != nil {
		t.Error("Addr() != nil before Start")
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	resp, err := http.Get("http://" + s.Addr().String() + "/health")
	if err != nil {
		t.Fatalf("GET /health error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestServer_StartBindError(t *testing.T) {
	s := New("127.0.0.1:-1", http.NotFoundHandler(), logger.Discard())
	if err := s.Start(); err == nil {
		t.Fatal("Start() with invalid port succeeded")
	}
}

func serve(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = "192.0.2.10:5555"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_Health(t *testing.T) {
	h := NewRouter(&RouterConfig{Logger: logger.Discard()})
	rec := serve(t, h, "/health")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "healthy" || body.Version == "" || body.GoVersion == "" {
		t.Errorf("health = %+v", body)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing")
	}
}

func TestRouter_Ready(t *testing.T) {
	tests := []struct {
		name       string
		ready      func() bool
		wantCode   int
		wantStatus string
	}{
		{"no probe", nil, http.StatusOK, "ready"},
		{"ready", func() bool { return true }, http.StatusOK, "ready"},
		{"not ready", func() bool { return false }, http.StatusServiceUnavailable, "not_ready"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewRouter(&RouterConfig{Logger: logger.Discard(), Ready: tt.ready})
			rec := serve(t, h, "/ready")
			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			var body ReadyResponse
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Status != tt.wantStatus {
				t.Errorf("body.Status = %q, want %q", body.Status, tt.wantStatus)
			}
		})
	}
}

func TestRouter_Status(t *testing.T) {
	h := NewRouter(&RouterConfig{
		Logger: logger.Discard(),
		Status: func() any { return map[string]int{"sessions_active": 3} },
	})
	rec := serve(t, h, "/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"sessions_active":3`) {
		t.Errorf("body = %s", rec.Body.String())
	}

	bare := NewRouter(&RouterConfig{Logger: logger.Discard()})
	if rec := serve(t, bare, "/status"); rec.Code != http.StatusNotFound {
		t.Errorf("status without provider = %d, want 404", rec.Code)
	}
}

func TestRouter_Metrics(t *testing.T) {
	reg := metric.NewRegistry()
	reg.SessionAdmitted()

	h := NewRouter(&RouterConfig{Logger: logger.Discard(), Metrics: reg.Handler()})
	rec := serve(t, h, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "kvwait_sessions_admitted_total 1") {
		t.Errorf("metrics output missing admitted counter:\n%s", body)
	}

	bare := NewRouter(&RouterConfig{Logger: logger.Discard()})
	if rec := serve(t, bare, "/metrics"); rec.Code != http.StatusNotFound {
		t.Errorf("metrics without handler = %d, want 404", rec.Code)
	}
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	h := NewRouter(&RouterConfig{Logger: logger.Discard()})
	req := httptest.NewRequest(http.MethodPost, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /health = %d, want 405", rec.Code)
	}
}
