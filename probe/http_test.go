package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleitonmarx/preflight"
)

func closedServerURL(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	return srv.URL
}

func TestHTTPReady_Check(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		handler    http.HandlerFunc
		wantStatus preflight.Status
		wantKind   preflight.ErrorKind
		wantCode   int
		wantErr    string
	}{
		{
			name: "ready",
			path: ReadyPath,
			handler: func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != ReadyPath {
					w.WriteHeader(http.StatusNotFound)
					return
				}
				w.WriteHeader(http.StatusOK)
			},
			wantStatus: preflight.StatusReady,
		},
		{
			name: "stream-paths",
			path: StreamPathsPath,
			handler: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, StreamPathsPath, r.URL.Path)
				_, _ = w.Write([]byte(`{"itemCount":1,"pageCount":1,"items":[{"name":"cam1"}]}`))
			},
			wantStatus: preflight.StatusReady,
		},
		{
			name: "not-ready",
			path: ReadyPath,
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			},
			wantStatus: preflight.StatusFailed,
			wantKind:   preflight.ErrHTTP,
			wantCode:   http.StatusServiceUnavailable,
			wantErr:    "unexpected status 503",
		},
		{
			name: "redirect-to-missing-page",
			path: ReadyPath,
			handler: func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == ReadyPath {
					http.Redirect(w, r, "/missing", http.StatusFound)
					return
				}
				w.WriteHeader(http.StatusNotFound)
			},
			wantStatus: preflight.StatusFailed,
			wantKind:   preflight.ErrHTTP,
			wantCode:   http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			svc := preflight.Service{Name: "triton", Kind: preflight.KindHTTP, Endpoint: srv.URL, Required: true}
			res := NewHTTPReady(srv.Client(), tt.path).Check(context.Background(), svc)

			assert.Equal(t, tt.wantStatus, res.Status)
			assert.Equal(t, "triton", res.Service)
			assert.Positive(t, res.Latency)
			if tt.wantStatus == preflight.StatusReady {
				assert.NoError(t, res.Err)
				return
			}
			assert.Equal(t, tt.wantKind, preflight.KindOf(res.Err))
			var perr *preflight.ProbeError
			require.ErrorAs(t, res.Err, &perr)
			assert.Equal(t, tt.wantCode, perr.StatusCode)
			if tt.wantErr != "" {
				assert.EqualError(t, res.Err, tt.wantErr)
			}
		})
	}
}

func TestHTTPReady_Check_EndpointWithPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/triton"+ReadyPath {
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	svc := preflight.Service{Name: "triton", Kind: preflight.KindHTTP, Endpoint: srv.URL + "/triton/"}
	res := NewHTTPReady(nil, ReadyPath).Check(context.Background(), svc)
	assert.Equal(t, preflight.StatusReady, res.Status)
}

func TestHTTPReady_Check_ConnectionRefused(t *testing.T) {
	svc := preflight.Service{Name: "triton", Kind: preflight.KindHTTP, Endpoint: closedServerURL(t)}

	res := NewHTTPReady(nil, ReadyPath).Check(context.Background(), svc)

	assert.Equal(t, preflight.StatusFailed, res.Status)
	assert.Equal(t, preflight.ErrConnectionRefused, preflight.KindOf(res.Err))
	assert.ErrorContains(t, res.Err, "connection refused")
}

func TestHTTPReady_Check_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	svc := preflight.Service{Name: "triton", Kind: preflight.KindHTTP, Endpoint: srv.URL}
	res := NewHTTPReady(srv.Client(), ReadyPath).Check(ctx, svc)

	assert.Equal(t, preflight.StatusFailed, res.Status)
	assert.Equal(t, preflight.ErrTimeout, preflight.KindOf(res.Err))
	assert.ErrorContains(t, res.Err, "request timed out")
}

func TestDefaults(t *testing.T) {
	probes := Defaults(http.DefaultClient, &fakeRuntime{})

	for _, kind := range []preflight.Kind{
		preflight.KindRuntime, preflight.KindContainer, preflight.KindHTTP, preflight.KindModel, preflight.KindStream,
	} {
		assert.Contains(t, probes, kind)
	}
	assert.NotContains(t, probes, preflight.KindComposite)
	assert.Equal(t, StreamPathsPath, probes[preflight.KindStream].(*HTTPReady).path)
	assert.Equal(t, ReadyPath, probes[preflight.KindHTTP].(*HTTPReady).path)
}
