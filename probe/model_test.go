package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cleitonmarx/preflight"
)

func TestModelLoaded_Check(t *testing.T) {
	tests := []struct {
		name       string
		model      string
		status     int
		body       string
		wantStatus preflight.Status
		wantKind   preflight.ErrorKind
		wantErr    string
		wantInfo   string
	}{
		{
			name:       "loaded",
			model:      "yolo11n",
			status:     http.StatusOK,
			body:       `{"name":"yolo11n","versions":["1","2"],"platform":"onnxruntime_onnx","inputs":[],"outputs":[]}`,
			wantStatus: preflight.StatusReady,
			wantInfo:   "platform onnxruntime_onnx, versions 1, 2",
		},
		{
			name:       "loaded-without-platform",
			model:      "yolo11n",
			status:     http.StatusOK,
			body:       `{"name":"yolo11n","versions":["1"]}`,
			wantStatus: preflight.StatusReady,
			wantInfo:   "platform n/a, versions 1",
		},
		{
			name:       "no-versions",
			model:      "yolo11n",
			status:     http.StatusOK,
			body:       `{"name":"yolo11n","versions":[]}`,
			wantStatus: preflight.StatusFailed,
			wantKind:   preflight.ErrEmptyResult,
			wantErr:    "no versions loaded",
		},
		{
			name:       "unknown-model",
			model:      "yolo11x",
			status:     http.StatusNotFound,
			body:       `{"error":"Request for unknown model: 'yolo11x' is not found"}`,
			wantStatus: preflight.StatusFailed,
			wantKind:   preflight.ErrHTTP,
			wantErr:    `model "yolo11x" not found`,
		},
		{
			name:       "server-error",
			model:      "yolo11n",
			status:     http.StatusInternalServerError,
			wantStatus: preflight.StatusFailed,
			wantKind:   preflight.ErrHTTP,
			wantErr:    "unexpected status 500",
		},
		{
			name:       "invalid-body",
			model:      "yolo11n",
			status:     http.StatusOK,
			body:       `<html>`,
			wantStatus: preflight.StatusFailed,
			wantKind:   preflight.ErrHTTP,
			wantErr:    "invalid model metadata",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotPath string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			svc := preflight.Service{
				Name:     "model/" + tt.model,
				Kind:     preflight.KindModel,
				Endpoint: srv.URL,
				Model:    tt.model,
				Required: true,
			}
			res := NewModelLoaded(srv.Client()).Check(context.Background(), svc)

			assert.Equal(t, ModelsPath+tt.model, gotPath)
			assert.Equal(t, tt.wantStatus, res.Status)
			assert.Equal(t, tt.wantInfo, res.Info)
			if tt.wantStatus == preflight.StatusReady {
				assert.NoError(t, res.Err)
				return
			}
			assert.Equal(t, tt.wantKind, preflight.KindOf(res.Err))
			assert.ErrorContains(t, res.Err, tt.wantErr)
		})
	}
}

func TestModelLoaded_Check_ConnectionRefused(t *testing.T) {
	svc := preflight.Service{Name: "yolo11n", Kind: preflight.KindModel, Endpoint: closedServerURL(t)}

	res := NewModelLoaded(nil).Check(context.Background(), svc)

	assert.Equal(t, preflight.StatusFailed, res.Status)
	assert.Equal(t, preflight.ErrConnectionRefused, preflight.KindOf(res.Err))
}
