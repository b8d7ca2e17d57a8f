// Package cli wires the preflight command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/cleitonmarx/preflight"
	"github.com/cleitonmarx/preflight/config"
	"github.com/cleitonmarx/preflight/internal/stack"
	"github.com/cleitonmarx/preflight/probe"
)

// Exit codes of the preflight command.
const (
	ExitReady    = 0
	ExitNotReady = 1
	ExitConfig   = 2
)

// ExitError carries the process exit code of a command. Err is nil when the outcome has
// already been reported on stdout.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func misconfigured(err error) error {
	return &ExitError{Code: ExitConfig, Err: err}
}

// ExitCode maps an error returned by the root command to a process exit code.
// Errors that are not an *ExitError come from flag parsing and count as misconfiguration.
func ExitCode(err error) int {
	if err == nil {
		return ExitReady
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitConfig
}

// Options holds CLI-level configuration. Zero fields use the real environment.
type Options struct {
	Version string
	// Env is the configuration provider consulted after --set overrides.
	Env        config.Provider
	Runtime    probe.ContainerRuntime
	HTTPClient *http.Client
	Stdout     io.Writer
	Stderr     io.Writer
}

// globalFlags are shared by every command.
type globalFlags struct {
	file      string
	overrides []string
	verbose   bool
}

// NewRootCmd wires the cobra root command. Running it without a subcommand runs check.
func NewRootCmd(opts Options) *cobra.Command {
	if opts.Env == nil {
		opts.Env = config.NewEnvVarProvider()
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}

	var flags globalFlags
	checkCmd := newCheckCommand(&opts, &flags)

	root := &cobra.Command{
		Use:   "preflight",
		Short: "Verify that dependent services are ready before launching a workload",
		Long: "preflight probes a dependency-ordered stack of services (container runtime, containers,\n" +
			"inference server, models, streaming server) with bounded retries and reports go/no-go.\n" +
			"It exits 0 when every required service is ready, 1 when not, and 2 on misconfiguration.",
		Version:       opts.Version,
		Args:          cobra.NoArgs,
		RunE:          checkCmd.RunE,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(opts.Stdout)
	root.SetErr(opts.Stderr)

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.file, "file", "f", "", "YAML stack file (default: built-in inference stack)")
	pf.StringArrayVar(&flags.overrides, "set", nil, "Override a setting, KEY=VALUE (repeatable, e.g. --set PREFLIGHT_MODELS=yolo11n)")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "Enable debug logging on stderr (also PREFLIGHT_DEBUG=1)")

	root.Flags().AddFlagSet(checkCmd.Flags())
	root.AddCommand(checkCmd)
	root.AddCommand(newPlanCommand(&opts, &flags))
	root.AddCommand(newConfigCommand(&opts, &flags))
	return root
}

// session is the state shared by a single command invocation.
type session struct {
	loader *config.Loader
	logger *slog.Logger
}

func newSession(ctx context.Context, opts *Options, flags *globalFlags) (*session, error) {
	overrides, err := config.NewMapProvider(flags.overrides...)
	if err != nil {
		return nil, misconfigured(fmt.Errorf("--set: %w", err))
	}
	loader := config.NewLoader(config.NewCompositeProvider(overrides, opts.Env))

	verbose := flags.verbose || config.GetWithDefault(ctx, loader, "PREFLIGHT_DEBUG", false)
	return &session{
		loader: loader,
		logger: newLogger(opts.Stderr, verbose),
	}, nil
}

// graph loads the stack file when one is given, the built-in stack otherwise.
func (s *session) graph(ctx context.Context, file string) (*preflight.Graph, error) {
	if file != "" {
		f, err := stack.Load(file)
		if err != nil {
			return nil, misconfigured(err)
		}
		g, err := f.Graph()
		if err != nil {
			return nil, misconfigured(err)
		}
		s.logger.DebugContext(ctx, "stack file loaded", "file", file, "stages", len(g.Stages()), "services", g.Len())
		return g, nil
	}

	settings, err := stack.LoadSettings(ctx, s.loader)
	if err != nil {
		return nil, misconfigured(err)
	}
	g, err := stack.Default(settings)
	if err != nil {
		return nil, misconfigured(err)
	}
	s.logger.DebugContext(ctx, "built-in stack configured", "triton", settings.TritonURL, "models", settings.Models)
	return g, nil
}

// runSettings configures how the command talks to the outside world.
type runSettings struct {
	DockerBinary string `config:"PREFLIGHT_DOCKER_BINARY" default:"docker"`
	OTLPEndpoint string `config:"PREFLIGHT_OTLP_ENDPOINT" default:""`
	NextStep     string `config:"PREFLIGHT_NEXT_STEP" default:"python scripts/run_deepstream.py"`
}

func (s *session) runSettings(ctx context.Context) (runSettings, error) {
	var rs runSettings
	if err := config.LoadStruct(ctx, s.loader, &rs); err != nil {
		return runSettings{}, misconfigured(err)
	}
	return rs, nil
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
