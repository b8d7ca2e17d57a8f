package preflight

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a probe attempt did not succeed.
type ErrorKind string

const (
	// ErrNotFound means the container or service is absent.
	ErrNotFound ErrorKind = "not_found"
	// ErrNotRunning means the container exists but is not running.
	ErrNotRunning ErrorKind = "not_running"
	// ErrConnectionRefused means nothing is listening on the endpoint.
	ErrConnectionRefused ErrorKind = "connection_refused"
	// ErrTransport covers any other failure to reach the endpoint.
	ErrTransport ErrorKind = "transport"
	// ErrHTTP means the endpoint answered with a non-success status or an unusable body.
	ErrHTTP ErrorKind = "http"
	// ErrEmptyResult means the endpoint answered but reported zero loaded model versions.
	ErrEmptyResult ErrorKind = "empty_result"
	// ErrTimeout means an attempt or the total deadline was exceeded.
	ErrTimeout ErrorKind = "timeout"
	// ErrSkipped means the service was not attempted because an upstream dependency is not ready.
	ErrSkipped ErrorKind = "skipped"
)

var (
	// ErrAlreadyRunning is returned by Run when the orchestrator is already running.
	ErrAlreadyRunning = errors.New("preflight: orchestrator already running")

	errUpstreamNotReady = &ProbeError{Kind: ErrSkipped, Detail: "skipped: upstream dependency not ready"}
)

// ProbeError is the error detail captured in a ProbeResult.
type ProbeError struct {
	Kind   ErrorKind
	Detail string
	// StatusCode is set for ErrHTTP.
	StatusCode int
	Err        error
}

// NewProbeError creates a ProbeError of the given kind.
func NewProbeError(kind ErrorKind, detail string, err error) *ProbeError {
	return &ProbeError{Kind: kind, Detail: detail, Err: err}
}

// Error implements the error interface.
func (e *ProbeError) Error() string {
	switch {
	case e.Detail == "" && e.Err == nil:
		return string(e.Kind)
	case e.Err == nil:
		return e.Detail
	case e.Detail == "":
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Detail, e.Err)
}

// Unwrap returns the underlying error.
func (e *ProbeError) Unwrap() error {
	return e.Err
}

// Is matches another *ProbeError by kind so callers can write errors.Is(err, &ProbeError{Kind: ErrTimeout}).
func (e *ProbeError) Is(target error) bool {
	t, ok := target.(*ProbeError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Detail == "" || t.Detail == e.Detail)
}

// KindOf returns the ErrorKind carried by err, or an empty kind when err is not a ProbeError.
func KindOf(err error) ErrorKind {
	var pe *ProbeError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// ConfigError reports a misconfiguration detected before any probing begins.
type ConfigError struct {
	// Component is the stage or service name the error refers to, if any.
	Component string
	Err       error
}

// newConfigError wraps err with the component it refers to.
func newConfigError(component string, format string, args ...any) *ConfigError {
	return &ConfigError{Component: component, Err: fmt.Errorf(format, args...)}
}

// Error implements the error interface, returning a formatted error message with component context.
func (e *ConfigError) Error() string {
	if e.Component == "" {
		return fmt.Sprintf("preflight: invalid configuration: %v", e.Err)
	}
	return fmt.Sprintf("preflight: invalid configuration: %v, component: %s", e.Err, e.Component)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return e.Err
}
