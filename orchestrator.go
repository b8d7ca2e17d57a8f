package preflight

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const instrumentationName = "github.com/cleitonmarx/preflight"

// State is the lifecycle state of an orchestrator run.
type State int

const (
	StateNotStarted State = iota
	StateRunning
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Progress is a snapshot of where a run is.
type Progress struct {
	State State
	// Stage is the index of the stage being probed while State is StateRunning, and of the
	// last stage actually probed once StateCompleted.
	Stage int
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithProbe registers the probe used for services of the given kind.
func WithProbe(kind Kind, p Probe) Option {
	return func(o *Orchestrator) {
		if p != nil {
			o.probes[kind] = p
		}
	}
}

// WithProbes registers several probes at once.
func WithProbes(probes map[Kind]Probe) Option {
	return func(o *Orchestrator) {
		for kind, p := range probes {
			if p != nil {
				o.probes[kind] = p
			}
		}
	}
}

// WithLogger sets the structured logger. Runs are silent by default.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithParallelism bounds how many services of a stage are probed at the same time.
// Values <= 0 mean one task per service.
func WithParallelism(n int) Option {
	return func(o *Orchestrator) {
		o.parallelism = n
	}
}

// WithDeadline caps the aggregate deadline of a run. Values <= 0 are ignored.
func WithDeadline(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.deadlineCap = d
		}
	}
}

// Orchestrator drives a stage graph to completion and decides go/no-go.
//
// Stages run strictly in order; services within a stage are probed concurrently, each under
// its own Policy. When a required service of a stage does not become ready, later stages are
// not attempted and their services are reported as skipped.
type Orchestrator struct {
	graph       *Graph
	probes      map[Kind]Probe
	logger      *slog.Logger
	parallelism int
	deadlineCap time.Duration

	tracer   trace.Tracer
	attempts metric.Int64Counter
	duration metric.Float64Histogram

	running    atomic.Bool
	progressMu sync.RWMutex
	progress   Progress
}

// New creates an orchestrator for graph.
func New(graph *Graph, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		graph:  graph,
		probes: make(map[Kind]Probe),
		logger: slog.New(slog.DiscardHandler),
		tracer: otel.Tracer(instrumentationName),
	}
	o.probes[KindComposite] = ProbeFunc(o.checkComposite)
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	o.initInstruments()
	return o
}

func (o *Orchestrator) initInstruments() {
	meter := otel.Meter(instrumentationName)
	var err error
	o.attempts, err = meter.Int64Counter(
		"preflight.probe.attempts",
		metric.WithDescription("Number of probe attempts per service run"),
	)
	if err != nil {
		o.logger.Warn("creating attempts counter", "error", err)
		o.attempts = noop.Int64Counter{}
	}
	o.duration, err = meter.Float64Histogram(
		"preflight.probe.duration",
		metric.WithDescription("Latency of the final probe attempt"),
		metric.WithUnit("s"),
	)
	if err != nil {
		o.logger.Warn("creating duration histogram", "error", err)
		o.duration = noop.Float64Histogram{}
	}
}

// Progress returns the current state of the orchestrator.
func (o *Orchestrator) Progress() Progress {
	o.progressMu.RLock()
	defer o.progressMu.RUnlock()
	return o.progress
}

func (o *Orchestrator) setProgress(p Progress) {
	o.progressMu.Lock()
	o.progress = p
	o.progressMu.Unlock()
}

// Deadline returns the aggregate deadline applied to a run: the graph deadline, capped by
// WithDeadline when set.
func (o *Orchestrator) Deadline() time.Duration {
	if o.graph == nil {
		return 0
	}
	d := o.graph.Deadline()
	if o.deadlineCap > 0 && o.deadlineCap < d {
		return o.deadlineCap
	}
	return d
}

// Validate reports misconfiguration that would abort a run before any probing begins.
func (o *Orchestrator) Validate() error {
	if o.graph == nil {
		return newConfigError("", "stage graph is empty")
	}
	for _, st := range o.graph.stages {
		for _, svc := range st.Services {
			if err := o.requireProbe(svc); err != nil {
				return err
			}
			for _, m := range svc.Members {
				if err := o.requireProbe(m); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (o *Orchestrator) requireProbe(svc Service) error {
	if _, ok := o.probes[svc.Kind]; !ok {
		return newConfigError(svc.Name, "no probe registered for kind %q", svc.Kind)
	}
	return nil
}

// Run probes the stage graph and returns the readiness report.
//
// Probe failures never surface as errors: they are captured in the report. Run returns an
// error only for misconfiguration (*ConfigError), detected before any probing, or when the
// orchestrator is already running (ErrAlreadyRunning).
func (o *Orchestrator) Run(ctx context.Context) (Report, error) {
	if err := o.Validate(); err != nil {
		return Report{}, err
	}
	if !o.running.CompareAndSwap(false, true) {
		return Report{}, ErrAlreadyRunning
	}
	defer o.running.Store(false)

	deadline := o.Deadline()
	runCtx, cancel := context.WithTimeoutCause(ctx, deadline,
		fmt.Errorf("aggregate deadline %s exceeded", deadline))
	defer cancel()

	runCtx, span := o.tracer.Start(runCtx, "preflight.run",
		trace.WithAttributes(
			attribute.Int("preflight.stages", len(o.graph.stages)),
			attribute.Int("preflight.services", o.graph.Len()),
			attribute.String("preflight.deadline", deadline.String()),
		))
	defer span.End()

	o.logger.InfoContext(runCtx, "readiness check started",
		"stages", len(o.graph.stages), "services", o.graph.Len(), "deadline", deadline)

	startedAt := time.Now()
	results := make([]ProbeResult, 0, o.graph.Len())
	blockedBy := ""
	lastStage := 0
	for i, st := range o.graph.Stages() {
		if blockedBy != "" {
			o.logger.DebugContext(runCtx, "stage skipped", "stage", st.Name, "blocked_by", blockedBy)
			results = append(results, skippedResults(i, st)...)
			continue
		}

		lastStage = i
		o.setProgress(Progress{State: StateRunning, Stage: i})
		stageResults := o.runStage(runCtx, i, st)
		results = append(results, stageResults...)

		for _, res := range stageResults {
			if res.Required && !res.Ready() {
				blockedBy = res.Service
				break
			}
		}
	}
	o.setProgress(Progress{State: StateCompleted, Stage: lastStage})

	report := NewReport(results, startedAt, time.Since(startedAt), deadline)

	span.SetAttributes(attribute.String("preflight.status", string(report.Status())))
	if report.Ready() {
		span.SetStatus(codes.Ok, "")
		o.logger.InfoContext(runCtx, "readiness check completed",
			"status", report.Status(), "duration", report.Duration(), "warnings", len(report.Warnings()))
	} else {
		span.SetStatus(codes.Error, "required services not ready")
		o.logger.WarnContext(runCtx, "readiness check completed",
			"status", report.Status(), "duration", report.Duration(), "root_cause", report.RootCause())
	}
	return report, nil
}

// runStage probes every service of a stage concurrently and returns the results in
// declaration order regardless of completion order.
func (o *Orchestrator) runStage(ctx context.Context, idx int, st Stage) []ProbeResult {
	ctx, span := o.tracer.Start(ctx, "preflight.stage",
		trace.WithAttributes(
			attribute.String("preflight.stage", st.Name),
			attribute.Int("preflight.stage.index", idx),
		))
	defer span.End()

	o.logger.DebugContext(ctx, "stage started", "stage", st.Name, "index", idx, "services", len(st.Services))

	results := make([]ProbeResult, len(st.Services))
	var g errgroup.Group
	g.SetLimit(o.limit(len(st.Services)))
	for i, svc := range st.Services {
		g.Go(func() error {
			results[i] = o.runService(ctx, idx, st.Name, svc)
			return nil
		})
	}
	// g.Wait() never returns an error because all goroutines return nil.
	_ = g.Wait()

	return results
}

func (o *Orchestrator) runService(ctx context.Context, stage int, stageName string, svc Service) ProbeResult {
	attrs := []attribute.KeyValue{
		attribute.String("preflight.service", svc.Name),
		attribute.String("preflight.kind", string(svc.Kind)),
		attribute.Bool("preflight.required", svc.Required),
	}
	ctx, span := o.tracer.Start(ctx, "preflight.service", trace.WithAttributes(attrs...))
	defer span.End()

	res := svc.Policy.Execute(ctx, svc, o.probes[svc.Kind])
	res.Stage = stage
	res.StageName = stageName
	res.Hint = svc.Hint

	statusAttrs := metric.WithAttributes(append(attrs, attribute.String("preflight.status", string(res.Status)))...)
	o.attempts.Add(ctx, int64(res.Attempts), statusAttrs)
	o.duration.Record(ctx, res.Latency.Seconds(), statusAttrs)

	span.SetAttributes(
		attribute.String("preflight.status", string(res.Status)),
		attribute.Int("preflight.attempts", res.Attempts),
	)
	switch {
	case res.Ready():
		span.SetStatus(codes.Ok, "")
		o.logger.InfoContext(ctx, "service ready",
			"service", svc.Name, "attempts", res.Attempts, "latency", res.Latency)
	case svc.Required:
		span.SetStatus(codes.Error, res.Detail())
		o.logger.WarnContext(ctx, "required service not ready",
			"service", svc.Name, "status", res.Status, "attempts", res.Attempts, "error", res.Detail())
	default:
		span.SetStatus(codes.Error, res.Detail())
		o.logger.WarnContext(ctx, "optional service not ready",
			"service", svc.Name, "status", res.Status, "attempts", res.Attempts, "error", res.Detail())
	}
	return res
}

func (o *Orchestrator) limit(services int) int {
	if o.parallelism <= 0 || o.parallelism > services {
		return services
	}
	return o.parallelism
}

// checkComposite checks each member once, in order, with the probe registered for its kind.
func (o *Orchestrator) checkComposite(ctx context.Context, svc Service) ProbeResult {
	start := time.Now()
	var info []string
	for _, m := range svc.Members {
		res := normalize(m, checkSafe(ctx, m, o.probes[m.Kind]), time.Since(start))
		if !res.Ready() {
			return Failed(svc, time.Since(start), fmt.Errorf("%s: %w", m.Name, res.Err))
		}
		if res.Info != "" {
			info = append(info, m.Name+": "+res.Info)
		}
	}
	res := Ready(svc, time.Since(start))
	res.Info = strings.Join(info, "; ")
	return res
}

// skippedResults reports every service of a stage that was not attempted.
func skippedResults(idx int, st Stage) []ProbeResult {
	out := make([]ProbeResult, 0, len(st.Services))
	for _, svc := range st.Services {
		out = append(out, ProbeResult{
			Service:   svc.Name,
			Kind:      svc.Kind,
			Required:  svc.Required,
			Stage:     idx,
			StageName: st.Name,
			Status:    StatusPending,
			Err:       errUpstreamNotReady,
			Skipped:   true,
			Hint:      svc.Hint,
		})
	}
	return out
}
