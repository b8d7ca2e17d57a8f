// Package probe provides the readiness probes for each service kind: a container runtime
// query, an HTTP readiness endpoint, a model status endpoint and the streaming server API.
package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"

	"github.com/cleitonmarx/preflight"
)

const (
	// ReadyPath is the inference server readiness endpoint.
	ReadyPath = "/v2/health/ready"
	// ModelsPath is the prefix of the per-model status endpoint.
	ModelsPath = "/v2/models/"
	// StreamPathsPath is the streaming server endpoint listing the configured paths.
	StreamPathsPath = "/v3/paths/list"
)

// Defaults returns one probe per built-in kind, sharing client for HTTP and runtime for containers.
// The composite kind is handled by the orchestrator itself.
func Defaults(client *http.Client, runtime ContainerRuntime) map[preflight.Kind]preflight.Probe {
	return map[preflight.Kind]preflight.Probe{
		preflight.KindRuntime:   NewRuntimeReachable(runtime),
		preflight.KindContainer: NewContainerRunning(runtime),
		preflight.KindHTTP:      NewHTTPReady(client, ReadyPath),
		preflight.KindModel:     NewModelLoaded(client),
		preflight.KindStream:    NewHTTPReady(client, StreamPathsPath),
	}
}

// classifyTransport maps an error returned by an HTTP round trip to a ProbeError.
func classifyTransport(ctx context.Context, err error) *preflight.ProbeError {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil:
		return preflight.NewProbeError(preflight.ErrTimeout, "request timed out", err)
	case errors.Is(err, syscall.ECONNREFUSED):
		return preflight.NewProbeError(preflight.ErrConnectionRefused, "connection refused", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return preflight.NewProbeError(preflight.ErrTimeout, "request timed out", err)
	}
	return preflight.NewProbeError(preflight.ErrTransport, "endpoint unreachable", err)
}

// statusError reports a non-success HTTP status.
func statusError(resp *http.Response) *preflight.ProbeError {
	return &preflight.ProbeError{
		Kind:       preflight.ErrHTTP,
		Detail:     fmt.Sprintf("unexpected status %d", resp.StatusCode),
		StatusCode: resp.StatusCode,
	}
}

func isSuccess(code int) bool {
	return code >= 200 && code < 300
}
