package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/apex/log"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/prreview/loadgen/internal/performance/config"
	"github.com/prreview/loadgen/internal/performance/engine"
	"github.com/prreview/loadgen/internal/performance/output"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a load test from a configuration file or built-in presets",
		Long: `Run scenarios at a constant arrival rate and report the results.

Config file mode:
  loadgen run --config pr-review.yaml

Preset mode:
  loadgen run --preset create_pr --preset get_reviews --duration 30s

The command exits 2 on configuration errors, 99 when a threshold fails and
1 on any other error.`,
		Args: cobra.NoArgs,
		RunE: runLoadTest,
	}

	addConfigFlags(cmd)
	cmd.Flags().Bool("json", false, "Print the JSON report to stdout instead of the console summary")
	cmd.Flags().StringP("output", "o", "", "Write the JSON report to this file")
	cmd.Flags().String("html", "", "Write an HTML report to this file")
	cmd.Flags().BoolP("quiet", "q", false, "Disable live progress output, show only PASSED or FAILED")
	cmd.Flags().Bool("no-color", false, "Disable colored output")
	cmd.Flags().String("metrics-addr", "", "Expose live Prometheus metrics on this address (e.g. :9090)")

	return cmd
}

func runLoadTest(cmd *cobra.Command, args []string) error {
	cfg, err := loadTestConfig(cmd.Flags())
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	outputPath, _ := cmd.Flags().GetString("output")
	htmlPath, _ := cmd.Flags().GetString("html")
	quiet, _ := cmd.Flags().GetBool("quiet")
	noColor, _ := cmd.Flags().GetBool("no-color")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

	eng, err := engine.NewEngine(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if metricsAddr != "" {
		shutdown, err := serveMetrics(metricsAddr, eng)
		if err != nil {
			eng.Close()
			return err
		}
		defer shutdown()
	}

	name := cfg.Name
	if name == "" {
		name = "loadgen"
	}
	console := output.NewConsoleOutput(output.ConsoleOutputConfig{
		TestName:      name,
		TotalDuration: longestDuration(cfg),
		Writer:        cmd.OutOrStdout(),
		Quiet:         quiet || jsonOutput,
		NoColor:       noColor,
	})
	console.PrintHeader(eng.ScenarioNames())

	watchCtx, stopWatch := context.WithCancel(ctx)
	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		output.Watch(watchCtx, eng, console)
	}()

	result, runErr := eng.Run(ctx)
	stopWatch()
	<-watchDone

	if result == nil {
		return runErr
	}
	if result.Name == "" {
		result.Name = name
	}

	if jsonOutput {
		if err := output.WriteJSON(cmd.OutOrStdout(), result); err != nil {
			return err
		}
	} else {
		console.PrintSummary(result)
	}

	if outputPath != "" {
		if err := output.WriteJSONFile(outputPath, result); err != nil {
			return err
		}
		log.WithField("path", outputPath).Info("report written")
	}
	if htmlPath != "" {
		if err := output.WriteHTMLFile(htmlPath, result); err != nil {
			return err
		}
		log.WithField("path", htmlPath).Info("HTML report written")
	}

	if runErr != nil {
		return runErr
	}
	if !result.Passed {
		var failed []string
		for _, t := range result.FailedThresholds() {
			failed = append(failed, t.Scenario+" "+t.Metric+" "+t.Expression)
		}
		return errors.Wrap(ErrThresholdsFailed, strings.Join(failed, "; "))
	}
	return nil
}

// serveMetrics exposes the engine's collectors over HTTP until the returned
// function is called.
func serveMetrics(addr string, eng *engine.Engine) (func(), error) {
	reg := prometheus.NewRegistry()
	for _, c := range eng.Collectors() {
		if err := reg.Register(c); err != nil {
			return nil, errors.Wrap(err, "failed to register metrics collector")
		}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).WithField("addr", addr).Error("metrics server stopped")
		}
	}()
	log.WithField("addr", addr).Info("serving metrics on /metrics")

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}, nil
}

// longestDuration returns the longest arrival window among the scenarios.
func longestDuration(cfg *config.TestConfig) time.Duration {
	var longest time.Duration
	for _, sc := range cfg.Scenarios {
		if sc == nil {
			continue
		}
		if d, err := config.ParseDurationString(sc.Duration); err == nil && d > longest {
			longest = d
		}
	}
	return longest
}
