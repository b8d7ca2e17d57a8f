package report

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleitonmarx/preflight"
)

var startedAt = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

func notReadyReport() preflight.Report {
	return preflight.NewReport([]preflight.ProbeResult{
		{Service: "docker", Kind: preflight.KindRuntime, Required: true, Stage: 0, StageName: "runtime",
			Status: preflight.StatusReady, Attempts: 1, Latency: 35 * time.Millisecond},
		{Service: "container/mediamtx", Kind: preflight.KindContainer, Stage: 0, StageName: "runtime",
			Status: preflight.StatusFailed, Attempts: 3, Latency: 20 * time.Millisecond,
			Err:  preflight.NewProbeError(preflight.ErrNotFound, "not found", nil),
			Hint: "docker compose up -d mediamtx"},
		{Service: "triton", Kind: preflight.KindHTTP, Required: true, Stage: 1, StageName: "inference",
			Status: preflight.StatusTimedOut, Attempts: 4, Latency: 1500 * time.Microsecond,
			Err:  preflight.NewProbeError(preflight.ErrTimeout, "total timeout 60s exceeded", nil),
			Hint: "docker compose up -d triton"},
		{Service: "model/yolo11n", Kind: preflight.KindModel, Required: true, Stage: 2, StageName: "models",
			Status: preflight.StatusPending, Skipped: true,
			Err:  preflight.NewProbeError(preflight.ErrSkipped, "skipped: upstream dependency not ready", nil),
			Hint: "check the model repository"},
	}, startedAt, 61*time.Second, 3*time.Minute)
}

func readyReport() preflight.Report {
	return preflight.NewReport([]preflight.ProbeResult{
		{Service: "triton", Kind: preflight.KindHTTP, Required: true, Stage: 0, StageName: "inference",
			Status: preflight.StatusReady, Attempts: 2, Latency: 4 * time.Millisecond},
		{Service: "model/yolo11n", Kind: preflight.KindModel, Required: true, Stage: 1, StageName: "models",
			Status: preflight.StatusReady, Attempts: 1, Latency: 800 * time.Microsecond,
			Info: "platform onnxruntime_onnx, versions 1"},
	}, startedAt, 2500*time.Millisecond, time.Minute)
}

func TestNewDocument(t *testing.T) {
	doc := NewDocument(notReadyReport())

	assert.Equal(t, "not_ready", doc.Status)
	assert.Equal(t, "triton", doc.RootCause)
	assert.Equal(t, startedAt, doc.StartedAt)
	assert.Equal(t, int64(61000), doc.DurationMs)
	assert.Equal(t, int64(180000), doc.DeadlineMs)
	assert.Equal(t, []string{"container/mediamtx: not found"}, doc.Warnings)

	require.Len(t, doc.Services, 4)
	assert.Equal(t, ServiceResult{
		Name:      "docker",
		Kind:      "runtime",
		Stage:     "runtime",
		Required:  true,
		Status:    "ready",
		Attempts:  1,
		LatencyMs: 35,
	}, doc.Services[0])
	assert.Equal(t, ServiceResult{
		Name:      "triton",
		Kind:      "http",
		Stage:     "inference",
		Required:  true,
		Status:    "timed_out",
		Attempts:  4,
		LatencyMs: 1.5,
		ErrorKind: "timeout",
		Error:     "total timeout 60s exceeded",
		Hint:      "docker compose up -d triton",
	}, doc.Services[2])

	skipped := doc.Services[3]
	assert.True(t, skipped.Skipped)
	assert.Equal(t, "skipped", skipped.ErrorKind)
}

func TestDocument_ToJSON(t *testing.T) {
	data, err := NewDocument(readyReport()).ToJSON()
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "ready", raw["status"])
	assert.Equal(t, "2025-03-14T09:26:53Z", raw["startedAt"])
	assert.EqualValues(t, 2500, raw["durationMs"])
	assert.NotContains(t, raw, "rootCause")
	assert.NotContains(t, raw, "warnings")

	services := raw["services"].([]any)
	require.Len(t, services, 2)
	model := services[1].(map[string]any)
	assert.Equal(t, "model/yolo11n", model["name"])
	assert.Equal(t, "models", model["stage"])
	assert.EqualValues(t, 0.8, model["latencyMs"])
	assert.Equal(t, "platform onnxruntime_onnx, versions 1", model["info"])
	assert.NotContains(t, model, "error")
	assert.NotContains(t, model, "skipped")
}

func TestRender(t *testing.T) {
	r := readyReport()
	out := Render(r, WithTitle("Inference stack"))

	assert.Equal(t, Text(r, WithTitle("Inference stack")), out.Text)
	assert.Equal(t, NewDocument(r), out.Document)
	// rendering twice gives the same output
	assert.Equal(t, out, Render(r, WithTitle("Inference stack")))
}
