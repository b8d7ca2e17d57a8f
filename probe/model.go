package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cleitonmarx/preflight"
)

// ModelMetadata is the subset of the model status response the probe reads.
type ModelMetadata struct {
	Name     string   `json:"name"`
	Platform string   `json:"platform"`
	Versions []string `json:"versions"`
}

// ModelLoaded is ready when GET <endpoint>/v2/models/<model> lists at least one version.
type ModelLoaded struct {
	client *http.Client
}

// NewModelLoaded creates a model probe. A nil client uses http.DefaultClient.
func NewModelLoaded(client *http.Client) *ModelLoaded {
	if client == nil {
		client = http.DefaultClient
	}
	return &ModelLoaded{client: client}
}

// Check implements preflight.Probe.
func (p *ModelLoaded) Check(ctx context.Context, svc preflight.Service) preflight.ProbeResult {
	start := time.Now()
	model := svc.ModelName()
	target, err := url.JoinPath(svc.Endpoint, ModelsPath, model)
	if err != nil {
		return preflight.Failed(svc, 0, preflight.NewProbeError(preflight.ErrTransport, "invalid endpoint", err))
	}

	resp, err := get(ctx, p.client, target)
	if err != nil {
		return preflight.Failed(svc, time.Since(start), classifyTransport(ctx, err))
	}
	defer closeBody(resp)

	if resp.StatusCode == http.StatusNotFound {
		perr := statusError(resp)
		perr.Detail = fmt.Sprintf("model %q not found", model)
		return preflight.Failed(svc, time.Since(start), perr)
	}
	if !isSuccess(resp.StatusCode) {
		return preflight.Failed(svc, time.Since(start), statusError(resp))
	}

	var meta ModelMetadata
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxDrain)).Decode(&meta); err != nil {
		return preflight.Failed(svc, time.Since(start),
			preflight.NewProbeError(preflight.ErrHTTP, "invalid model metadata", err))
	}
	latency := time.Since(start)
	if len(meta.Versions) == 0 {
		return preflight.Failed(svc, latency,
			preflight.NewProbeError(preflight.ErrEmptyResult, "no versions loaded", nil))
	}

	res := preflight.Ready(svc, latency)
	res.Info = meta.describe()
	return res
}

func (m ModelMetadata) describe() string {
	platform := m.Platform
	if platform == "" {
		platform = "n/a"
	}
	return fmt.Sprintf("platform %s, versions %s", platform, strings.Join(m.Versions, ", "))
}
