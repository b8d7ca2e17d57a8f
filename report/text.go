package report

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/cleitonmarx/preflight"
)

const (
	markReady   = "✓"
	markFailed  = "✗"
	markWarn    = "⚠"
	markSkipped = "-"
)

type textConfig struct {
	title    string
	nextStep string
}

// Option configures the text rendering.
type Option func(*textConfig)

// WithTitle sets the heading printed above the results.
func WithTitle(title string) Option {
	return func(cfg *textConfig) {
		cfg.title = title
	}
}

// WithNextStep sets the command suggested when the report is ready.
func WithNextStep(cmd string) Option {
	return func(cfg *textConfig) {
		cfg.nextStep = cmd
	}
}

// Text renders r for a terminal. Every service is listed in stage graph order with its final
// status, attempt count, latency and error detail; the root cause is named in the headline
// and marked on its line.
func Text(r preflight.Report, opts ...Option) string {
	cfg := textConfig{title: "Service readiness"}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	var b strings.Builder
	rule := strings.Repeat("=", 60)
	fmt.Fprintf(&b, "%s\n%s\n%s\n", rule, cfg.title, rule)
	if r.Ready() {
		b.WriteString("Status: READY\n")
	} else if cause := r.RootCause(); cause != "" {
		fmt.Fprintf(&b, "Status: NOT READY (root cause: %s)\n", cause)
	} else {
		b.WriteString("Status: NOT READY\n")
	}

	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	stage := -1
	for _, res := range r.Results() {
		if res.Stage != stage {
			stage = res.Stage
			fmt.Fprintf(tw, "\n[%s]\n", stageLabel(res))
		}
		writeLine(tw, res, res.Service == r.RootCause())
	}
	_ = tw.Flush()

	if warnings := r.Warnings(); len(warnings) > 0 {
		b.WriteString("\nWarnings:\n")
		for _, w := range warnings {
			fmt.Fprintf(&b, "  %s %s is optional and %s: %s\n", markWarn, w.Service, statusLabel(w), w.Detail())
		}
	}

	var hints []string
	for _, res := range r.Results() {
		if !res.Ready() && !res.Skipped && res.Hint != "" {
			hints = append(hints, fmt.Sprintf("  %s: %s", res.Service, res.Hint))
		}
	}
	if len(hints) > 0 {
		fmt.Fprintf(&b, "\nHints:\n%s\n", strings.Join(hints, "\n"))
	}

	fmt.Fprintf(&b, "\n%s\n", summary(r))
	if r.Ready() && cfg.nextStep != "" {
		fmt.Fprintf(&b, "Next: %s\n", cfg.nextStep)
	}
	return b.String()
}

func writeLine(tw *tabwriter.Writer, res preflight.ProbeResult, rootCause bool) {
	required := "required"
	if !res.Required {
		required = "optional"
	}
	detail := res.Info
	if !res.Ready() {
		detail = res.Detail()
	}
	if rootCause {
		detail += "  <- root cause"
	}
	fmt.Fprintf(tw, "  %s %s\t%s\t%s\tattempts=%d\tlatency=%s\t%s\n",
		mark(res), res.Service, required, statusLabel(res), res.Attempts, formatLatency(res.Latency), detail)
}

func mark(res preflight.ProbeResult) string {
	switch {
	case res.Ready():
		return markReady
	case res.Skipped:
		return markSkipped
	case !res.Required:
		return markWarn
	}
	return markFailed
}

func statusLabel(res preflight.ProbeResult) string {
	if res.Skipped {
		return "skipped"
	}
	return strings.ReplaceAll(string(res.Status), "_", " ")
}

func stageLabel(res preflight.ProbeResult) string {
	if res.StageName != "" {
		return res.StageName
	}
	return fmt.Sprintf("stage-%d", res.Stage+1)
}

func summary(r preflight.Report) string {
	var required, ready int
	for _, res := range r.Results() {
		if res.Required {
			required++
			if res.Ready() {
				ready++
			}
		}
	}
	return fmt.Sprintf("Summary: %d/%d required services ready, %d warning(s), took %s (deadline %s)",
		ready, required, len(r.Warnings()), r.Duration().Round(time.Millisecond), r.Deadline())
}

func formatLatency(d time.Duration) string {
	if d == 0 {
		return "-"
	}
	if d < time.Millisecond {
		return d.Round(time.Microsecond).String()
	}
	return d.Round(time.Millisecond).String()
}
