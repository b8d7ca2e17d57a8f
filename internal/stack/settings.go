package stack

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cleitonmarx/preflight"
	"github.com/cleitonmarx/preflight/config"
)

// Settings configures the built-in inference stack.
type Settings struct {
	TritonURL       string   `config:"PREFLIGHT_TRITON_URL" default:"http://localhost:8000"`
	TritonContainer string   `config:"PREFLIGHT_TRITON_CONTAINER" default:"triton"`
	Models          []string `config:"PREFLIGHT_MODELS" default:"yolo11n"`
	StreamURL       string   `config:"PREFLIGHT_STREAM_URL" default:"http://localhost:9997"`
	StreamContainer string   `config:"PREFLIGHT_STREAM_CONTAINER" default:"mediamtx"`
	// StreamRequired makes the streaming server block readiness.
	StreamRequired bool   `config:"PREFLIGHT_STREAM_REQUIRED" default:"false"`
	ComposeFile    string `config:"PREFLIGHT_COMPOSE_FILE" default:"docker/docker-compose.yml"`
	Policy         PolicySettings
}

// PolicySettings is the default retry policy of the built-in stack.
type PolicySettings struct {
	MaxAttempts    int           `config:"PREFLIGHT_MAX_ATTEMPTS" default:"30"`
	AttemptTimeout time.Duration `config:"PREFLIGHT_ATTEMPT_TIMEOUT" default:"2s"`
	Interval       time.Duration `config:"PREFLIGHT_INTERVAL" default:"2s"`
	TotalTimeout   time.Duration `config:"PREFLIGHT_TOTAL_TIMEOUT" default:"60s"`
	Multiplier     float64       `config:"PREFLIGHT_BACKOFF_MULTIPLIER" default:"1"`
	MaxInterval    time.Duration `config:"PREFLIGHT_MAX_INTERVAL" default:"0s"`
}

// LoadSettings resolves the settings through l.
func LoadSettings(ctx context.Context, l *config.Loader) (Settings, error) {
	var s Settings
	if err := config.LoadStruct(ctx, l, &s); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Policy returns the settings as a preflight.Policy.
func (p PolicySettings) Policy() preflight.Policy {
	return preflight.Policy{
		MaxAttempts:    p.MaxAttempts,
		AttemptTimeout: p.AttemptTimeout,
		Interval:       p.Interval,
		TotalTimeout:   p.TotalTimeout,
		Multiplier:     p.Multiplier,
		MaxInterval:    p.MaxInterval,
	}
}

// Default builds the built-in stack:
//
//	runtime → containers → inference server → models → streaming server
//
// The streaming server container and API are optional unless StreamRequired is set.
func Default(s Settings) (*preflight.Graph, error) {
	models := make([]preflight.Service, 0, len(s.Models))
	for _, name := range s.Models {
		models = append(models, preflight.Service{
			Name:     "model/" + name,
			Kind:     preflight.KindModel,
			Endpoint: s.TritonURL,
			Model:    name,
			Required: true,
			Hint:     fmt.Sprintf("check the model repository mounted into %s and its server log", s.TritonContainer),
		})
	}
	if len(models) == 0 {
		return nil, &preflight.ConfigError{Component: "PREFLIGHT_MODELS", Err: errors.New("no models configured")}
	}

	stages := []preflight.Stage{
		{
			Name: "runtime",
			Services: []preflight.Service{{
				Name:     "docker",
				Kind:     preflight.KindRuntime,
				Required: true,
				Hint:     "start the Docker daemon and check that the current user can reach it",
			}},
		},
		{
			Name: "containers",
			Services: []preflight.Service{
				{
					Name:     "container/" + s.TritonContainer,
					Kind:     preflight.KindContainer,
					Endpoint: s.TritonContainer,
					Required: true,
					Hint:     s.composeUp(s.TritonContainer),
				},
				{
					Name:     "container/" + s.StreamContainer,
					Kind:     preflight.KindContainer,
					Endpoint: s.StreamContainer,
					Required: s.StreamRequired,
					Hint:     s.composeUp(s.StreamContainer),
				},
			},
		},
		{
			Name: "inference",
			Services: []preflight.Service{{
				Name:     "triton",
				Kind:     preflight.KindHTTP,
				Endpoint: s.TritonURL,
				Required: true,
				Hint:     s.composeUp(s.TritonContainer),
			}},
		},
		{Name: "models", Services: models},
		{
			Name: "streaming",
			Services: []preflight.Service{{
				Name:     "mediamtx",
				Kind:     preflight.KindStream,
				Endpoint: s.StreamURL,
				Required: s.StreamRequired,
				Hint:     s.composeUp(s.StreamContainer),
			}},
		},
	}
	return preflight.NewGraph(s.Policy.Policy(), stages...)
}

func (s Settings) composeUp(service string) string {
	return fmt.Sprintf("docker compose -f %s up -d %s", s.ComposeFile, service)
}
