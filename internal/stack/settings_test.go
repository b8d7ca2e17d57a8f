package stack

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleitonmarx/preflight"
	"github.com/cleitonmarx/preflight/config"
)

func defaultSettings() Settings {
	return Settings{
		TritonURL:       "http://localhost:8000",
		TritonContainer: "triton",
		Models:          []string{"yolo11n"},
		StreamURL:       "http://localhost:9997",
		StreamContainer: "mediamtx",
		ComposeFile:     "docker/docker-compose.yml",
		Policy: PolicySettings{
			MaxAttempts:    30,
			AttemptTimeout: 2 * time.Second,
			Interval:       2 * time.Second,
			TotalTimeout:   60 * time.Second,
			Multiplier:     1,
		},
	}
}

func TestLoadSettings(t *testing.T) {
	tests := map[string]struct {
		assignments []string
		want        func(s *Settings)
		wantErr     string
	}{
		"defaults": {},
		"overrides": {
			assignments: []string{
				"PREFLIGHT_TRITON_URL=http://triton:8000",
				"PREFLIGHT_MODELS=yolo11n, yolo11s",
				"PREFLIGHT_STREAM_REQUIRED=true",
				"PREFLIGHT_TOTAL_TIMEOUT=2m",
			},
			want: func(s *Settings) {
				s.TritonURL = "http://triton:8000"
				s.Models = []string{"yolo11n", "yolo11s"}
				s.StreamRequired = true
				s.Policy.TotalTimeout = 2 * time.Minute
			},
		},
		"invalid_duration": {
			assignments: []string{"PREFLIGHT_INTERVAL=often"},
			wantErr:     "error parsing value for field 'Interval' (PREFLIGHT_INTERVAL)",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			p, err := config.NewMapProvider(tt.assignments...)
			require.NoError(t, err)

			got, err := LoadSettings(context.Background(), config.NewLoader(p))
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)

			want := defaultSettings()
			if tt.want != nil {
				tt.want(&want)
			}
			assert.Equal(t, want, got)
		})
	}
}

func TestDefault(t *testing.T) {
	g, err := Default(defaultSettings())
	require.NoError(t, err)

	stages := g.Stages()
	names := make([]string, 0, len(stages))
	for _, st := range stages {
		names = append(names, st.Name)
	}
	assert.Equal(t, []string{"runtime", "containers", "inference", "models", "streaming"}, names)

	assert.Equal(t, preflight.KindRuntime, stages[0].Services[0].Kind)

	containers := stages[1].Services
	require.Len(t, containers, 2)
	assert.Equal(t, "triton", containers[0].Endpoint)
	assert.True(t, containers[0].Required)
	assert.Equal(t, "docker compose -f docker/docker-compose.yml up -d triton", containers[0].Hint)
	assert.Equal(t, "mediamtx", containers[1].Endpoint)
	assert.False(t, containers[1].Required)

	model := stages[3].Services[0]
	assert.Equal(t, preflight.KindModel, model.Kind)
	assert.Equal(t, "yolo11n", model.ModelName())
	assert.Equal(t, "http://localhost:8000", model.Endpoint)

	stream := stages[4].Services[0]
	assert.Equal(t, preflight.KindStream, stream.Kind)
	assert.False(t, stream.Required)

	assert.Equal(t, 5*time.Minute, g.Deadline())
}

func TestDefault_StreamRequired(t *testing.T) {
	s := defaultSettings()
	s.StreamRequired = true

	g, err := Default(s)
	require.NoError(t, err)

	stages := g.Stages()
	assert.True(t, stages[1].Services[1].Required)
	assert.True(t, stages[4].Services[0].Required)
}

func TestDefault_Misconfiguration(t *testing.T) {
	tests := map[string]func(s *Settings){
		"no_models":       func(s *Settings) { s.Models = nil },
		"bad_triton_url":  func(s *Settings) { s.TritonURL = "triton:8000" },
		"same_containers": func(s *Settings) { s.StreamContainer = s.TritonContainer },
		"negative_attempts": func(s *Settings) { s.Policy.MaxAttempts = -1 },
	}

	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			s := defaultSettings()
			mutate(&s)

			_, err := Default(s)
			var cfgErr *preflight.ConfigError
			assert.True(t, errors.As(err, &cfgErr), "expected a ConfigError, got %v", err)
		})
	}
}
