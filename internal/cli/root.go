package cli

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/prreview/loadgen/internal/logging"
	"github.com/prreview/loadgen/internal/performance"
	"github.com/prreview/loadgen/internal/performance/config"
)

var version = "0.1.0"

// Exit codes returned by ExitCode.
const (
	ExitOK               = 0
	ExitError            = 1
	ExitConfigError      = 2
	ExitThresholdsFailed = 99
)

// ErrThresholdsFailed is returned by the run command when the test completed
// but at least one threshold did not pass.
var ErrThresholdsFailed = errors.New("thresholds failed")

// NewRootCmd builds the loadgen command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "loadgen",
		Short:   "Open-model load generator for the PR-review service",
		Version: version,
		Long: `loadgen drives the PR-review HTTP service at a constant arrival rate.

Iterations start on a fixed schedule regardless of how slowly the service
answers. When every virtual user is busy the arrival is dropped and counted,
so the offered load never bends to the system under test.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	root.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error (default: $LOG_LEVEL or info)")
	root.PersistentFlags().String("log-format", "", "Log format: text, json, cli, logfmt (default: $LOG_FORMAT or text)")

	root.AddCommand(newRunCmd())
	root.AddCommand(newPresetsCmd())
	root.AddCommand(newValidateCmd())

	return root
}

// Execute runs the root command with the process arguments.
func Execute() error {
	return NewRootCmd().Execute()
}

// ExitCode maps an error returned by Execute to a process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrThresholdsFailed):
		return ExitThresholdsFailed
	case performance.IsConfigError(err):
		return ExitConfigError
	default:
		return ExitError
	}
}

// setupLogging configures apex/log from flags, falling back to the
// environment.
func setupLogging(cmd *cobra.Command) error {
	env, err := config.LoadEnv()
	if err != nil {
		return err
	}

	level, _ := cmd.Flags().GetString("log-level")
	if level == "" {
		level = env.LogLevel
	}
	format, _ := cmd.Flags().GetString("log-format")
	if format == "" {
		format = env.LogFormat
	}

	return logging.Setup(level, format, cmd.ErrOrStderr())
}
