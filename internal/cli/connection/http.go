package connection

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/yndnr/kvwait/internal/infra/buildinfo"
)

// HealthStatus is the admin /health response.
type HealthStatus struct {
	Status    string `json:"status" yaml:"status"`
	Version   string `json:"version" yaml:"version"`
	Commit    string `json:"commit" yaml:"commit"`
	GoVersion string `json:"go_version" yaml:"go_version"`
	Time      string `json:"time" yaml:"time"`
}

// ReadyStatus is the admin /ready response.
type ReadyStatus struct {
	Status string `json:"status" yaml:"status"`
	Time   string `json:"time" yaml:"time"`
}

// Ready reports whether the server declared itself ready.
func (r *ReadyStatus) Ready() bool {
	return r.Status == "ready"
}

// AdminClient talks to the server's admin HTTP endpoint.
type AdminClient struct {
	baseURL string
	client  *http.Client
}

// NewAdminClient creates a client for the admin endpoint at server.
func NewAdminClient(server string) *AdminClient {
	baseURL := server
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}

	return &AdminClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// BaseURL returns the base URL of the client.
func (c *AdminClient) BaseURL() string {
	return c.baseURL
}

// Get performs a GET request.
func (c *AdminClient) Get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "kvwait-cli/"+buildinfo.Version)
	req.Header.Set("Accept", "application/json")
	return c.client.Do(req)
}

// Health fetches /health.
func (c *AdminClient) Health(ctx context.Context) (*HealthStatus, error) {
	resp, err := c.Get(ctx, "/health")
	if err != nil {
		return nil, err
	}
	var out HealthStatus
	if err := ParseResponse(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Ready fetches /ready. A 503 is reported as a not-ready status, not an error.
func (c *AdminClient) Ready(ctx context.Context) (*ReadyStatus, error) {
	resp, err := c.Get(ctx, "/ready")
	if err != nil {
		return nil, err
	}
	var out ReadyStatus
	if resp.StatusCode == http.StatusServiceUnavailable {
		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			out.Status = "not_ready"
		}
		return &out, nil
	}
	if err := ParseResponse(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Status fetches /status as a generic document.
func (c *AdminClient) Status(ctx context.Context) (map[string]any, error) {
	resp, err := c.Get(ctx, "/status")
	if err != nil {
		return nil, err
	}
	out := make(map[string]any)
	if err := ParseResponse(resp, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ParseResponse parses a JSON response body into the target struct.
func ParseResponse(resp *http.Response, target any) error {
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Message != "" {
			return fmt.Errorf("[%s] %s", errResp.Code, errResp.Message)
		}
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}

	if target != nil {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return fmt.Errorf("parse response: %w", err)
		}
	}

	return nil
}
