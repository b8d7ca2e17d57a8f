package config

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// secretsProvider fails every lookup the way an unreadable secrets mount would.
type secretsProvider struct{}

func (secretsProvider) Get(context.Context, string) (string, error) {
	return "", errors.New("open /run/secrets/preflight: permission denied")
}

// commandLineChain mirrors the chain the CLI builds: --set overrides ahead of the environment.
func commandLineChain(t *testing.T) CompositeProvider {
	t.Helper()
	overrides, err := NewMapProvider(
		"PREFLIGHT_MODELS=yolo11s",
		"PREFLIGHT_STREAM_URL=",
	)
	require.NoError(t, err)
	env := NewEnvVarProviderFrom([]string{
		"PREFLIGHT_MODELS=yolo11n",
		"PREFLIGHT_TRITON_URL=http://triton:8000",
		"PREFLIGHT_STREAM_URL=http://mediamtx:9997",
		"PREFLIGHT_INTERVAL=",
	})
	return NewCompositeProvider(overrides, env)
}

func TestCompositeProvider_GetWithSource(t *testing.T) {
	tests := map[string]struct {
		key        string
		wantValue  string
		wantSource string
		wantErr    string
	}{
		"override_wins": {
			key:        "PREFLIGHT_MODELS",
			wantValue:  "yolo11s",
			wantSource: OverrideSource,
		},
		"environment_only": {
			key:        "PREFLIGHT_TRITON_URL",
			wantValue:  "http://triton:8000",
			wantSource: EnvSource,
		},
		"empty_override_wins": {
			key:        "PREFLIGHT_STREAM_URL",
			wantValue:  "",
			wantSource: OverrideSource,
		},
		"blank_environment": {
			key:     "PREFLIGHT_INTERVAL",
			wantErr: "PREFLIGHT_INTERVAL is not set (looked in --set, env)",
		},
		"missing": {
			key:     "PREFLIGHT_DOCKER_BINARY",
			wantErr: "PREFLIGHT_DOCKER_BINARY is not set (looked in --set, env)",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			p := commandLineChain(t)

			value, source, err := p.GetWithSource(context.Background(), tt.key)
			if tt.wantErr != "" {
				assert.EqualError(t, err, tt.wantErr)
				assert.ErrorIs(t, err, ErrNotSet)
				assert.Empty(t, source)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantValue, value)
			assert.Equal(t, tt.wantSource, source)

			got, err := p.Get(context.Background(), tt.key)
			require.NoError(t, err)
			assert.Equal(t, tt.wantValue, got)
		})
	}
}

func TestCompositeProvider_ProviderFailureStopsLookup(t *testing.T) {
	env := NewEnvVarProviderFrom([]string{"PREFLIGHT_TRITON_URL=http://triton:8000"})

	// a failing layer above the environment is not skipped over
	p := NewCompositeProvider(MapProvider{}, secretsProvider{}, env)
	_, _, err := p.GetWithSource(context.Background(), "PREFLIGHT_TRITON_URL")
	assert.EqualError(t, err, "config.secretsProvider: open /run/secrets/preflight: permission denied")
	assert.NotErrorIs(t, err, ErrNotSet)

	// below the environment it is never reached
	p = NewCompositeProvider(env, secretsProvider{}, nil)
	value, source, err := p.GetWithSource(context.Background(), "PREFLIGHT_TRITON_URL")
	require.NoError(t, err)
	assert.Equal(t, "http://triton:8000", value)
	assert.Equal(t, EnvSource, source)
}
