package probe

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cleitonmarx/preflight"
)

// maxDrain bounds how much of a response body is read before closing it.
const maxDrain = 64 << 10

// HTTPReady is ready when GET <endpoint><path> answers with a 2xx status.
type HTTPReady struct {
	client *http.Client
	path   string
}

// NewHTTPReady creates an HTTP probe for path. A nil client uses http.DefaultClient.
func NewHTTPReady(client *http.Client, path string) *HTTPReady {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPReady{client: client, path: path}
}

// Check implements preflight.Probe.
func (p *HTTPReady) Check(ctx context.Context, svc preflight.Service) preflight.ProbeResult {
	start := time.Now()
	target, err := url.JoinPath(svc.Endpoint, p.path)
	if err != nil {
		return preflight.Failed(svc, 0, preflight.NewProbeError(preflight.ErrTransport, "invalid endpoint", err))
	}

	resp, err := get(ctx, p.client, target)
	latency := time.Since(start)
	if err != nil {
		return preflight.Failed(svc, latency, classifyTransport(ctx, err))
	}
	defer closeBody(resp)

	if !isSuccess(resp.StatusCode) {
		return preflight.Failed(svc, latency, statusError(resp))
	}
	return preflight.Ready(svc, latency)
}

func get(ctx context.Context, client *http.Client, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	return client.Do(req)
}

func closeBody(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrain))
	_ = resp.Body.Close()
}
