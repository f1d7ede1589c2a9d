// Package engine orchestrates load test runs: single scenarios driven
// programmatically and multi-scenario test configurations.
package engine

import (
	"context"

	"github.com/apex/log"

	"github.com/prreview/loadgen/internal/performance"
	"github.com/prreview/loadgen/internal/performance/check"
	"github.com/prreview/loadgen/internal/performance/executor"
	"github.com/prreview/loadgen/internal/performance/metrics"
)

// RunScenario drives scenario under cfg until the run completes and returns
// its frozen summary.
//
// Only configuration problems are returned as errors, all of them at once
// and before any arrival is generated. Transport failures, failed checks,
// drops and abandoned iterations are reported in the summary. Cancelling
// ctx ends the arrival window early; in-flight iterations then drain as
// they would at the deadline.
func RunScenario(ctx context.Context, cfg executor.Config, scenario performance.Scenario, checks []check.Check) (*metrics.Summary, error) {
	m := metrics.NewEngineWithConfig(metrics.EngineConfig{Name: cfg.Name})
	return RunScenarioWithMetrics(ctx, cfg, scenario, checks, m)
}

// RunScenarioWithMetrics is RunScenario recording into a caller-supplied
// metrics engine, so progress can be observed while the run is live.
func RunScenarioWithMetrics(ctx context.Context, cfg executor.Config, scenario performance.Scenario, checks []check.Check, m *metrics.Engine) (*metrics.Summary, error) {
	exec, err := executor.CreateAndInitExecutor(ctx, &cfg)
	if err != nil {
		m.Stop()
		return nil, err
	}

	logger := log.WithFields(log.Fields{
		"scenario": cfg.Name,
		"rate":     cfg.Rate,
		"duration": cfg.Duration,
	})
	logger.Debug("run starting")

	if err := exec.Run(ctx, scenario, checks, m); err != nil {
		m.Stop()
		return nil, err
	}

	summary := m.Finalize()
	logger.WithFields(log.Fields{
		"arrivals":  summary.Arrivals,
		"completed": summary.Completed,
		"dropped":   summary.Dropped,
		"abandoned": summary.Abandoned,
	}).Debug("run finished")

	return summary, nil
}
