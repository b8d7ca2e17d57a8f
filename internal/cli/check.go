package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/cleitonmarx/preflight"
	"github.com/cleitonmarx/preflight/internal/tracing"
	"github.com/cleitonmarx/preflight/probe"
	"github.com/cleitonmarx/preflight/report"
	"github.com/cleitonmarx/preflight/report/mermaid"
)

const (
	formatText    = "text"
	formatJSON    = "json"
	formatMermaid = "mermaid"
	formatYAML    = "yaml"
)

type checkFlags struct {
	format      string
	deadline    time.Duration
	parallelism int
	next        string
	title       string
	otlp        string
}

func newCheckCommand(opts *Options, flags *globalFlags) *cobra.Command {
	var cf checkFlags
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Probe the stack and report whether it is ready",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, opts, flags, cf)
		},
	}
	cmd.Flags().StringVarP(&cf.format, "format", "o", formatText, "Output format: text, json or mermaid")
	cmd.Flags().DurationVar(&cf.deadline, "deadline", 0, "Cap the aggregate deadline of the run (default: derived from the policies)")
	cmd.Flags().IntVar(&cf.parallelism, "parallelism", 0, "Maximum services probed at once within a stage (default: all)")
	cmd.Flags().StringVar(&cf.next, "next", "", "Command suggested when the stack is ready (also PREFLIGHT_NEXT_STEP)")
	cmd.Flags().StringVar(&cf.title, "title", "", "Heading of the text report")
	cmd.Flags().StringVar(&cf.otlp, "otlp-endpoint", "", "Export traces and metrics to this OTLP/HTTP collector (also PREFLIGHT_OTLP_ENDPOINT)")
	return cmd
}

func runCheck(cmd *cobra.Command, opts *Options, flags *globalFlags, cf checkFlags) error {
	switch cf.format {
	case formatText, formatJSON, formatMermaid:
	default:
		return misconfigured(fmt.Errorf("unknown format %q, expected text, json or mermaid", cf.format))
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := newSession(ctx, opts, flags)
	if err != nil {
		return err
	}
	rs, err := s.runSettings(ctx)
	if err != nil {
		return err
	}
	if cf.next == "" {
		cf.next = rs.NextStep
	}
	if cf.otlp == "" {
		cf.otlp = rs.OTLPEndpoint
	}

	g, err := s.graph(ctx, flags.file)
	if err != nil {
		return err
	}

	if cf.otlp != "" {
		telemetry, err := tracing.Setup(ctx, cf.otlp, opts.Version)
		if err != nil {
			return misconfigured(err)
		}
		defer func() {
			if err := telemetry.Shutdown(context.WithoutCancel(ctx)); err != nil {
				s.logger.WarnContext(ctx, "exporting telemetry", "error", err)
			}
		}()
		s.logger.DebugContext(ctx, "telemetry enabled", "endpoint", cf.otlp)
	}

	client := opts.HTTPClient
	if client == nil {
		client = tracing.NewHTTPClient()
	}
	runtime := opts.Runtime
	if runtime == nil {
		runtime = probe.NewDockerCLI(rs.DockerBinary)
	}

	orch := preflight.New(g,
		preflight.WithProbes(probe.Defaults(client, runtime)),
		preflight.WithLogger(s.logger),
		preflight.WithParallelism(cf.parallelism),
		preflight.WithDeadline(cf.deadline),
	)
	r, err := orch.Run(ctx)
	if err != nil {
		return misconfigured(err)
	}

	if err := writeReport(cmd.OutOrStdout(), r, cf); err != nil {
		return err
	}
	if !r.Ready() {
		return &ExitError{Code: r.ExitCode()}
	}
	return nil
}

func writeReport(w io.Writer, r preflight.Report, cf checkFlags) error {
	var out string
	switch cf.format {
	case formatJSON:
		data, err := report.NewDocument(r).ToJSON()
		if err != nil {
			return fmt.Errorf("encoding report: %w", err)
		}
		out = string(data) + "\n"
	case formatMermaid:
		out = mermaid.GenerateReportGraph(r)
	default:
		opts := []report.Option{report.WithNextStep(cf.next)}
		if cf.title != "" {
			opts = append(opts, report.WithTitle(cf.title))
		}
		out = report.Text(r, opts...)
	}
	_, err := io.WriteString(w, out)
	return err
}
