package preflight

import (
	"slices"
	"time"
)

// Report is the aggregated outcome of one orchestrator run.
// It is assembled once and never mutated; accessors return copies.
type Report struct {
	results   []ProbeResult
	status    Overall
	rootCause string
	startedAt time.Time
	duration  time.Duration
	deadline  time.Duration
}

// NewReport assembles a report from final results listed in stage graph order.
// The overall status is ready iff every required result is ready.
func NewReport(results []ProbeResult, startedAt time.Time, duration, deadline time.Duration) Report {
	r := Report{
		results:   slices.Clone(results),
		status:    OverallReady,
		startedAt: startedAt,
		duration:  duration,
		deadline:  deadline,
	}
	for _, res := range r.results {
		if !res.Required || res.Ready() {
			continue
		}
		r.status = OverallNotReady
		if r.rootCause == "" && !res.Skipped {
			r.rootCause = res.Service
		}
	}
	return r
}

// Results returns one final result per service in stage graph order.
func (r Report) Results() []ProbeResult {
	return slices.Clone(r.results)
}

// Result returns the final result of the named service.
func (r Report) Result(service string) (ProbeResult, bool) {
	for _, res := range r.results {
		if res.Service == service {
			return res, true
		}
	}
	return ProbeResult{}, false
}

// Status returns the overall readiness.
func (r Report) Status() Overall {
	return r.status
}

// Ready reports whether every required service is ready.
func (r Report) Ready() bool {
	return r.status == OverallReady
}

// RootCause returns the first required service that was attempted and did not become ready.
// It is empty when the report is ready.
func (r Report) RootCause() string {
	return r.rootCause
}

// Failures returns the required services that are not ready, skipped ones included.
func (r Report) Failures() []ProbeResult {
	var out []ProbeResult
	for _, res := range r.results {
		if res.Required && !res.Ready() {
			out = append(out, res)
		}
	}
	return out
}

// Warnings returns the optional services that failed or timed out.
func (r Report) Warnings() []ProbeResult {
	var out []ProbeResult
	for _, res := range r.results {
		if !res.Required && (res.Status == StatusFailed || res.Status == StatusTimedOut) {
			out = append(out, res)
		}
	}
	return out
}

// StartedAt returns when the run started.
func (r Report) StartedAt() time.Time {
	return r.startedAt
}

// Duration returns how long the run took.
func (r Report) Duration() time.Duration {
	return r.duration
}

// Deadline returns the aggregate deadline applied to the run.
func (r Report) Deadline() time.Duration {
	return r.deadline
}

// ExitCode returns the process exit status for the report: 0 when ready, 1 otherwise.
func (r Report) ExitCode() int {
	if r.Ready() {
		return 0
	}
	return 1
}
