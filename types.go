// Package preflight verifies that a chain of dependent services has reached a ready state
// before a workload is launched. Services are grouped into ordered stages, probed concurrently
// within a stage under a bounded retry policy, and summarised in a ReadinessReport.
package preflight

import (
	"context"
	"time"
)

// Kind identifies which probe variant checks a Service.
type Kind string

const (
	// KindRuntime checks that the container runtime answers.
	KindRuntime Kind = "runtime"
	// KindContainer checks that a named container is running.
	KindContainer Kind = "container"
	// KindHTTP checks an HTTP readiness endpoint.
	KindHTTP Kind = "http"
	// KindModel checks that a model has at least one loaded version.
	KindModel Kind = "model"
	// KindStream checks the streaming server status endpoint.
	KindStream Kind = "stream"
	// KindComposite is ready when all of its member services are ready.
	KindComposite Kind = "composite"
)

// Kinds lists every supported kind in declaration order.
var Kinds = []Kind{KindRuntime, KindContainer, KindHTTP, KindModel, KindStream, KindComposite}

// Status is the outcome of a probe.
type Status string

const (
	StatusPending  Status = "pending"
	StatusReady    Status = "ready"
	StatusFailed   Status = "failed"
	StatusTimedOut Status = "timed_out"
)

// Overall is the aggregated readiness of a report.
type Overall string

const (
	OverallReady    Overall = "ready"
	OverallNotReady Overall = "not_ready"
)

// Service is a named dependency target.
type Service struct {
	// Name identifies the service in reports; it must be unique within a graph.
	Name string
	Kind Kind
	// Endpoint is the container name for KindContainer, unused for KindRuntime and
	// KindComposite, and a base URL otherwise.
	Endpoint string
	// Model is the model name for KindModel. Defaults to Name.
	Model string
	// Required services block overall readiness when they are not ready.
	Required bool
	// Policy overrides the graph default when non-zero.
	Policy Policy
	// Members are the services checked by a KindComposite service.
	Members []Service
	// Hint is an operator remediation shown when the service is not ready.
	Hint string
}

// ModelName returns the model checked by a KindModel service.
func (s Service) ModelName() string {
	if s.Model != "" {
		return s.Model
	}
	return s.Name
}

// Stage is an ordered group of services that may be checked in parallel once all prior stages are satisfied.
type Stage struct {
	Name     string
	Services []Service
}

// ProbeResult is the outcome of one check attempt, or the final outcome of a service.
type ProbeResult struct {
	Service  string
	Kind     Kind
	Required bool
	// Stage is the zero-based index of the stage the service belongs to.
	Stage     int
	StageName string
	Status    Status
	Latency   time.Duration
	Attempts  int
	// Err carries the error detail; nil when Status is StatusReady.
	Err error
	// Info carries informational detail from a ready probe, e.g. loaded model versions.
	Info    string
	Skipped bool
	// Hint is the remediation configured on the service, surfaced when it is not ready.
	Hint string
}

// Ready reports whether the result has StatusReady.
func (r ProbeResult) Ready() bool {
	return r.Status == StatusReady
}

// Detail returns the error detail, or an empty string when there is none.
func (r ProbeResult) Detail() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Probe performs a single synchronous readiness check of one service.
// The per-attempt timeout is carried by ctx.
type Probe interface {
	Check(ctx context.Context, svc Service) ProbeResult
}

// ProbeFunc adapts a function to the Probe interface.
type ProbeFunc func(ctx context.Context, svc Service) ProbeResult

// Check implements Probe.
func (f ProbeFunc) Check(ctx context.Context, svc Service) ProbeResult {
	return f(ctx, svc)
}

// Ready builds a ready result for svc.
func Ready(svc Service, latency time.Duration) ProbeResult {
	return ProbeResult{
		Service:  svc.Name,
		Kind:     svc.Kind,
		Required: svc.Required,
		Status:   StatusReady,
		Latency:  latency,
	}
}

// Failed builds a failed result for svc carrying err as its detail.
func Failed(svc Service, latency time.Duration, err error) ProbeResult {
	return ProbeResult{
		Service:  svc.Name,
		Kind:     svc.Kind,
		Required: svc.Required,
		Status:   StatusFailed,
		Latency:  latency,
		Err:      err,
	}
}
