package preflight

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Policy governs how a single service's probe is retried.
//
// The probe is attempted up to MaxAttempts times with Interval between attempts until it
// reports ready. When TotalTimeout elapses first the result is StatusTimedOut regardless of
// the attempts left. When the attempts are exhausted it is StatusFailed with the last error,
// or StatusTimedOut when every attempt timed out.
type Policy struct {
	MaxAttempts    int
	AttemptTimeout time.Duration
	Interval       time.Duration
	TotalTimeout   time.Duration
	// Multiplier grows the interval after every attempt when greater than 1.
	Multiplier float64
	// MaxInterval caps the grown interval. Zero means no cap.
	MaxInterval time.Duration
}

// DefaultPolicy returns the policy used when none is configured.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    30,
		AttemptTimeout: 2 * time.Second,
		Interval:       2 * time.Second,
		TotalTimeout:   60 * time.Second,
	}
}

// IsZero reports whether no field of the policy is set.
func (p Policy) IsZero() bool {
	return p == Policy{}
}

// WithDefaults fills every zero field of p from defaults.
func (p Policy) WithDefaults(defaults Policy) Policy {
	if p.MaxAttempts == 0 {
		p.MaxAttempts = defaults.MaxAttempts
	}
	if p.AttemptTimeout == 0 {
		p.AttemptTimeout = defaults.AttemptTimeout
	}
	if p.Interval == 0 {
		p.Interval = defaults.Interval
	}
	if p.TotalTimeout == 0 {
		p.TotalTimeout = defaults.TotalTimeout
	}
	if p.Multiplier == 0 {
		p.Multiplier = defaults.Multiplier
	}
	if p.MaxInterval == 0 {
		p.MaxInterval = defaults.MaxInterval
	}
	return p
}

// Validate checks that the policy can bound a probe.
func (p Policy) Validate() error {
	var errs []error
	if p.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("max attempts must be at least 1, got %d", p.MaxAttempts))
	}
	if p.AttemptTimeout <= 0 {
		errs = append(errs, fmt.Errorf("attempt timeout must be positive, got %s", p.AttemptTimeout))
	}
	if p.Interval < 0 {
		errs = append(errs, fmt.Errorf("interval must not be negative, got %s", p.Interval))
	}
	if p.TotalTimeout <= 0 {
		errs = append(errs, fmt.Errorf("total timeout must be positive, got %s", p.TotalTimeout))
	}
	if p.Multiplier < 0 {
		errs = append(errs, fmt.Errorf("multiplier must not be negative, got %g", p.Multiplier))
	}
	if p.MaxInterval < 0 {
		errs = append(errs, fmt.Errorf("max interval must not be negative, got %s", p.MaxInterval))
	}
	return errors.Join(errs...)
}

// Execute runs probe against svc under the policy and returns the final result.
// It never returns a non-terminal status: the result is ready, failed or timed out.
func (p Policy) Execute(ctx context.Context, svc Service, probe Probe) ProbeResult {
	totalCtx, cancel := context.WithTimeoutCause(ctx, p.TotalTimeout,
		fmt.Errorf("total timeout %s exceeded", p.TotalTimeout))
	defer cancel()

	last := ProbeResult{Service: svc.Name, Kind: svc.Kind, Required: svc.Required, Status: StatusPending}
	interval := p.Interval
	answered := false
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if totalCtx.Err() != nil {
			return p.timedOut(totalCtx, last)
		}

		last = p.attempt(totalCtx, svc, probe)
		last.Attempts = attempt
		if last.Ready() {
			return last
		}
		answered = answered || KindOf(last.Err) != ErrTimeout
		if totalCtx.Err() != nil {
			return p.timedOut(totalCtx, last)
		}
		if attempt == p.MaxAttempts {
			break
		}

		if interval > 0 {
			timer := time.NewTimer(interval)
			select {
			case <-totalCtx.Done():
				timer.Stop()
				return p.timedOut(totalCtx, last)
			case <-timer.C:
			}
		}
		interval = p.grow(interval)
	}

	last.Status = StatusFailed
	if !answered {
		last.Status = StatusTimedOut
	}
	return last
}

// attempt runs a single check bounded by AttemptTimeout.
// A probe that ignores its context is abandoned once the attempt deadline passes.
func (p Policy) attempt(ctx context.Context, svc Service, probe Probe) ProbeResult {
	attemptCtx, cancel := context.WithTimeout(ctx, p.AttemptTimeout)
	defer cancel()

	start := time.Now()
	resultCh := make(chan ProbeResult, 1)
	go func() {
		resultCh <- checkSafe(attemptCtx, svc, probe)
	}()

	select {
	case res := <-resultCh:
		return normalize(svc, res, time.Since(start))
	case <-attemptCtx.Done():
		elapsed := time.Since(start)
		detail := fmt.Sprintf("attempt timed out after %s", p.AttemptTimeout)
		if ctx.Err() != nil {
			// cut short by the total or aggregate deadline
			detail = fmt.Sprintf("attempt interrupted after %s", elapsed.Round(time.Millisecond))
		}
		return Failed(svc, elapsed, NewProbeError(ErrTimeout, detail, attemptCtx.Err()))
	}
}

// timedOut converts the last attempt into a timed out result carrying the deadline cause.
func (p Policy) timedOut(ctx context.Context, last ProbeResult) ProbeResult {
	last.Status = StatusTimedOut
	detail := "deadline exceeded"
	if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.DeadlineExceeded) {
		detail = cause.Error()
	}
	last.Err = NewProbeError(ErrTimeout, detail, last.Err)
	return last
}

// grow returns the interval to wait before the next attempt.
func (p Policy) grow(interval time.Duration) time.Duration {
	if p.Multiplier <= 1 {
		return interval
	}
	next := time.Duration(float64(interval) * p.Multiplier)
	if p.MaxInterval > 0 && next > p.MaxInterval {
		return p.MaxInterval
	}
	return next
}

// checkSafe calls the probe with panic recovery.
func checkSafe(ctx context.Context, svc Service, probe Probe) (res ProbeResult) {
	defer func() {
		if r := recover(); r != nil {
			res = Failed(svc, 0, fmt.Errorf("panic in probe for %s: %v", svc.Name, r))
		}
	}()
	return probe.Check(ctx, svc)
}

// normalize fills the identity fields a probe may leave empty and guarantees that a
// non-ready result carries an error detail.
func normalize(svc Service, res ProbeResult, elapsed time.Duration) ProbeResult {
	res.Service = svc.Name
	res.Kind = svc.Kind
	res.Required = svc.Required
	if res.Latency == 0 {
		res.Latency = elapsed
	}
	if res.Status == StatusReady {
		res.Err = nil
		return res
	}
	// StatusTimedOut is reserved for the total deadline.
	res.Status = StatusFailed
	if res.Err == nil {
		res.Err = NewProbeError(ErrTransport, "probe reported no detail", nil)
	}
	return res
}
