package health

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// ProbeResult is the outcome of one provider reachability probe.
type ProbeResult struct {
	// Reachable is true when the provider answered at all.
	Reachable bool `json:"reachable"`

	// StatusCode is the HTTP status received, zero when the request itself
	// failed.
	StatusCode int `json:"status_code,omitempty"`

	// Error describes a failed or degraded probe.
	Error string `json:"error,omitempty"`
}

// OK reports whether the probe saw a healthy provider.
func (r ProbeResult) OK() bool {
	return r.Reachable && r.StatusCode >= 200 && r.StatusCode < 300
}

// Prober checks whether an external provider endpoint is reachable.
type Prober interface {
	Probe(ctx context.Context, url string) ProbeResult
}

// HTTPProber probes providers with a timeout-bounded HEAD request, falling
// back to GET for endpoints that reject HEAD.
type HTTPProber struct {
	client *http.Client
}

// NewHTTPProber creates a prober whose requests are bounded by timeout.
func NewHTTPProber(timeout time.Duration) *HTTPProber {
	return &HTTPProber{
		client: &http.Client{Timeout: timeout},
	}
}

func (p *HTTPProber) Probe(ctx context.Context, url string) ProbeResult {
	result := p.request(ctx, http.MethodHead, url)
	if result.Reachable && result.StatusCode == http.StatusMethodNotAllowed {
		result = p.request(ctx, http.MethodGet, url)
	}
	return result
}

func (p *HTTPProber) request(ctx context.Context, method, url string) ProbeResult {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return ProbeResult{Error: fmt.Sprintf("invalid probe request: %v", err)}
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return ProbeResult{Error: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	result := ProbeResult{Reachable: true, StatusCode: resp.StatusCode}
	if !result.OK() {
		result.Error = fmt.Sprintf("unexpected status %d", resp.StatusCode)
	}
	return result
}
