package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cleitonmarx/preflight"
	"github.com/cleitonmarx/preflight/internal/stack"
	"github.com/cleitonmarx/preflight/report/mermaid"
)

func newPlanCommand(opts *Options, flags *globalFlags) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the stage graph and retry policies without probing anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch format {
			case formatText, formatMermaid, formatYAML:
			default:
				return misconfigured(fmt.Errorf("unknown format %q, expected text, mermaid or yaml", format))
			}

			s, err := newSession(cmd.Context(), opts, flags)
			if err != nil {
				return err
			}
			g, err := s.graph(cmd.Context(), flags.file)
			if err != nil {
				return err
			}
			return writePlan(cmd.OutOrStdout(), g, format)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "o", formatText, "Output format: text, mermaid or yaml")
	return cmd
}

func writePlan(w io.Writer, g *preflight.Graph, format string) error {
	switch format {
	case formatMermaid:
		_, err := io.WriteString(w, mermaid.GeneratePlanGraph(g))
		return err
	case formatYAML:
		data, err := stack.Describe(g).Marshal()
		if err != nil {
			return fmt.Errorf("encoding stack file: %w", err)
		}
		_, err = w.Write(data)
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for i, st := range g.Stages() {
		fmt.Fprintf(tw, "%d. %s\n", i+1, st.Name)
		for _, svc := range st.Services {
			writePlanLine(tw, "  ", svc)
			for _, m := range svc.Members {
				writePlanLine(tw, "    ", m)
			}
		}
	}
	fmt.Fprintf(tw, "\n%d service(s) in %d stage(s), aggregate deadline %s\n", g.Len(), len(g.Stages()), g.Deadline())
	return tw.Flush()
}

func writePlanLine(w io.Writer, indent string, svc preflight.Service) {
	required := "required"
	if !svc.Required {
		required = "optional"
	}
	target := svc.Endpoint
	if svc.Kind == preflight.KindModel {
		target = strings.TrimRight(svc.Endpoint, "/") + " model=" + svc.ModelName()
	}
	if target == "" {
		target = "-"
	}
	p := svc.Policy
	fmt.Fprintf(w, "%s%s\t%s\t%s\t%s\t%d×%s every %s within %s\n",
		indent, svc.Name, svc.Kind, required, target, p.MaxAttempts, p.AttemptTimeout, p.Interval, p.TotalTimeout)
}
