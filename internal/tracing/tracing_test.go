package tracing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestSpanNameFormatter(t *testing.T) {
	req, err := http.NewRequest(http.MethodGet, "http://localhost:8000/v2/health/ready", nil)
	require.NoError(t, err)
	assert.Equal(t, "GET /v2/health/ready", SpanNameFormatter("", req))
}

func TestNewHTTPClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("Traceparent"), "expected trace context to be propagated")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tp := sdktrace.NewTracerProvider()
	defer tp.Shutdown(context.Background()) //nolint:errcheck
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(newPropagator())

	ctx, span := tp.Tracer("test").Start(context.Background(), "probe")
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/v2/health/ready", nil)
	require.NoError(t, err)
	resp, err := NewHTTPClient().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSetup_ExportsOnShutdown(t *testing.T) {
	var (
		mu    sync.Mutex
		paths []string
	)
	collector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer collector.Close()

	telemetry, err := Setup(context.Background(), collector.URL, "test")
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(context.Background(), "preflight.run")
	span.End()

	require.NoError(t, telemetry.Shutdown(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, paths, "/v1/traces")
}

func TestSetup_InvalidEndpoint(t *testing.T) {
	for _, endpoint := range []string{"", "localhost:4318", "ftp://collector:4318", "http://"} {
		_, err := Setup(context.Background(), endpoint, "test")
		assert.ErrorContains(t, err, "invalid OTLP endpoint", endpoint)
	}
}
