package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cleitonmarx/preflight/config"
	"github.com/cleitonmarx/preflight/internal/stack"
)

func newConfigCommand(opts *Options, flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective settings and where each value came from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := newSession(ctx, opts, flags)
			if err != nil {
				return err
			}
			if _, err := stack.LoadSettings(ctx, s.loader); err != nil {
				return misconfigured(err)
			}
			if _, err := s.runSettings(ctx); err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tVALUE\tSOURCE")
			for _, a := range s.loader.Accesses() {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", a.Key, displayValue(a), a.Source)
			}
			return tw.Flush()
		},
	}
}

func displayValue(a config.KeyAccess) string {
	if a.Value == "" {
		return `""`
	}
	return a.Value
}
