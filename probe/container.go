package probe

import (
	"context"
	"fmt"
	"time"

	"github.com/cleitonmarx/preflight"
)

// ContainerState is the coarse state of a container as seen by the runtime.
type ContainerState int

const (
	ContainerNotFound ContainerState = iota
	ContainerNotRunning
	ContainerRunning
)

func (s ContainerState) String() string {
	switch s {
	case ContainerNotFound:
		return "not found"
	case ContainerNotRunning:
		return "not running"
	case ContainerRunning:
		return "running"
	}
	return fmt.Sprintf("ContainerState(%d)", int(s))
}

// ContainerStatus is the answer of a container runtime query.
type ContainerStatus struct {
	State ContainerState
	// Raw is the runtime specific status, e.g. "exited" or "restarting".
	Raw string
}

// ContainerRuntime queries the container runtime.
type ContainerRuntime interface {
	// Ping checks that the runtime itself answers.
	Ping(ctx context.Context) error
	// ContainerStatus returns the state of the named container.
	// A missing container is reported as ContainerNotFound, not as an error.
	ContainerStatus(ctx context.Context, name string) (ContainerStatus, error)
}

// RunningContainer is ready when the container named by the service endpoint is running.
type RunningContainer struct {
	runtime ContainerRuntime
}

// NewContainerRunning creates a container probe backed by runtime.
func NewContainerRunning(runtime ContainerRuntime) *RunningContainer {
	return &RunningContainer{runtime: runtime}
}

// Check implements preflight.Probe.
func (p *RunningContainer) Check(ctx context.Context, svc preflight.Service) preflight.ProbeResult {
	start := time.Now()
	status, err := p.runtime.ContainerStatus(ctx, svc.Endpoint)
	latency := time.Since(start)
	if err != nil {
		return preflight.Failed(svc, latency, runtimeError(ctx, err))
	}

	switch status.State {
	case ContainerRunning:
		return preflight.Ready(svc, latency)
	case ContainerNotFound:
		return preflight.Failed(svc, latency, preflight.NewProbeError(preflight.ErrNotFound, "not found", nil))
	default:
		detail := "not running"
		if status.Raw != "" {
			detail = fmt.Sprintf("not running (%s)", status.Raw)
		}
		return preflight.Failed(svc, latency, preflight.NewProbeError(preflight.ErrNotRunning, detail, nil))
	}
}

// RuntimeReachable is ready when the container runtime answers.
type RuntimeReachable struct {
	runtime ContainerRuntime
}

// NewRuntimeReachable creates a runtime probe.
func NewRuntimeReachable(runtime ContainerRuntime) *RuntimeReachable {
	return &RuntimeReachable{runtime: runtime}
}

// Check implements preflight.Probe.
func (p *RuntimeReachable) Check(ctx context.Context, svc preflight.Service) preflight.ProbeResult {
	start := time.Now()
	if err := p.runtime.Ping(ctx); err != nil {
		return preflight.Failed(svc, time.Since(start), runtimeError(ctx, err))
	}
	return preflight.Ready(svc, time.Since(start))
}

func runtimeError(ctx context.Context, err error) *preflight.ProbeError {
	if ctx.Err() != nil {
		return preflight.NewProbeError(preflight.ErrTimeout, "container runtime query timed out", err)
	}
	return preflight.NewProbeError(preflight.ErrTransport, "container runtime unavailable", err)
}
