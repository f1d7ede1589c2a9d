package perf

import (
	"context"
	"time"

	"github.com/prreview/loadgen/internal/performance"
	"github.com/prreview/loadgen/internal/performance/check"
	"github.com/prreview/loadgen/internal/performance/config"
	"github.com/prreview/loadgen/internal/performance/engine"
	"github.com/prreview/loadgen/internal/performance/executor"
	"github.com/prreview/loadgen/internal/performance/metrics"
	"github.com/prreview/loadgen/internal/prreview"
)

// Core types re-exported for callers outside this module.
type (
	// Config describes one constant-arrival-rate run.
	Config = executor.Config

	// Scenario performs one iteration per arrival.
	Scenario = performance.Scenario

	// IterationFunc adapts a function to Scenario.
	IterationFunc = performance.IterationFunc

	// VirtualUser is the worker an iteration runs on.
	VirtualUser = performance.VirtualUser

	// Outcome is the result of one iteration.
	Outcome = performance.Outcome

	// Check is a named predicate over an Outcome.
	Check = check.Check

	// Predicate decides whether an Outcome passes a check.
	Predicate = check.Predicate

	// Summary is the frozen result of a run.
	Summary = metrics.Summary

	// TestConfig is a multi-scenario test file.
	TestConfig = config.TestConfig

	// ScenarioConfig is one scenario in a TestConfig.
	ScenarioConfig = config.ScenarioConfig

	// TestResult is the result of RunTest.
	TestResult = engine.TestResult

	// ThresholdResult is one evaluated threshold.
	ThresholdResult = engine.ThresholdResult

	// ConfigError reports an invalid configuration field.
	ConfigError = performance.ConfigError
)

// NewCheck names a predicate.
func NewCheck(name string, p Predicate) Check {
	return check.New(name, p)
}

// NewConfig returns a Config with the default time unit, graceful stop and
// catch-up window filled in.
func NewConfig(name string, rate float64, duration time.Duration, preAllocatedVUs, maxVUs int) Config {
	return Config{
		Name:            name,
		Rate:            rate,
		Duration:        duration,
		PreAllocatedVUs: preAllocatedVUs,
		MaxVUs:          maxVUs,
	}.WithDefaults()
}

// RunScenario drives scenario at cfg's arrival rate and returns the summary.
// Configuration errors are returned before any arrival is generated.
func RunScenario(ctx context.Context, cfg Config, scenario Scenario, checks ...Check) (*Summary, error) {
	return engine.RunScenario(ctx, cfg, scenario, checks)
}

// LoadConfig reads a YAML or JSON test file.
func LoadConfig(path string) (*TestConfig, error) {
	return config.LoadConfig(path)
}

// RunTest runs every scenario in cfg against the PR-review service. Presets
// are expanded and the environment (BASE_URL, tokens, ids) is applied before
// the configuration is validated.
func RunTest(ctx context.Context, cfg *TestConfig) (*TestResult, error) {
	if err := prreview.ResolvePresets(cfg); err != nil {
		return nil, err
	}

	env, err := config.LoadEnv()
	if err != nil {
		return nil, err
	}
	env.Apply(cfg)

	eng, err := engine.NewEngine(cfg)
	if err != nil {
		return nil, err
	}
	defer eng.Close()

	return eng.Run(ctx)
}
