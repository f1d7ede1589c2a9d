package engine

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	httpclient "github.com/prreview/loadgen/internal/http"
	"github.com/prreview/loadgen/internal/performance"
	"github.com/prreview/loadgen/internal/performance/check"
	"github.com/prreview/loadgen/internal/performance/config"
	"github.com/prreview/loadgen/internal/performance/executor"
	"github.com/prreview/loadgen/internal/performance/metrics"
	"github.com/prreview/loadgen/internal/prreview"
)

// Engine runs every scenario of a test configuration.
//
// Each scenario gets its own executor, VU pool and metrics engine; the HTTP
// connection pool is shared.
//
// Example usage:
//
//	cfg, _ := config.LoadConfig("test.yaml")
//	engine, _ := NewEngine(cfg)
//	result, _ := engine.Run(context.Background())
//	fmt.Printf("Test passed: %v\n", result.Passed)
type Engine struct {
	config *config.TestConfig
	client *httpclient.Client

	scenarios map[string]*ScenarioRunner
	order     []string
	mu        sync.RWMutex

	startTime time.Time
	running   bool
	closeOnce sync.Once
}

// ScenarioRunner holds everything needed to run one scenario.
type ScenarioRunner struct {
	Name       string
	Config     *config.ScenarioConfig
	ExecConfig *executor.Config
	Executor   executor.Executor
	Scenario   performance.Scenario
	Checks     []check.Check
	Metrics    *metrics.Engine
	Result     *ScenarioResult
}

// ScenarioResult contains the results of a single scenario.
type ScenarioResult struct {
	Name     string           `json:"name"`
	Executor string           `json:"executor"`
	Summary  *metrics.Summary `json:"summary"`
	Stats    *executor.Stats  `json:"stats,omitempty"`
	Error    error            `json:"-"`
}

// TestResult contains the complete test results.
type TestResult struct {
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	StartTime   time.Time     `json:"startTime"`
	EndTime     time.Time     `json:"endTime"`
	Duration    time.Duration `json:"duration"`

	Scenarios map[string]*ScenarioResult `json:"scenarios"`

	Passed     bool              `json:"passed"`
	Thresholds []ThresholdResult `json:"thresholds,omitempty"`

	Error error `json:"-"`
}

// ScenarioNames returns the scenario names in a stable order.
func (r *TestResult) ScenarioNames() []string {
	names := make([]string, 0, len(r.Scenarios))
	for name := range r.Scenarios {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FailedThresholds returns the thresholds that did not pass.
func (r *TestResult) FailedThresholds() []ThresholdResult {
	var failed []ThresholdResult
	for _, t := range r.Thresholds {
		if !t.Passed {
			failed = append(failed, t)
		}
	}
	return failed
}

// NewEngine prepares every scenario of cfg. Presets must already be resolved
// and environment values applied.
//
// Returns a *multierror.Error of *performance.ConfigError when the
// configuration is invalid.
func NewEngine(cfg *config.TestConfig) (*Engine, error) {
	config.ApplyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	settings := cfg.Settings
	options := []httpclient.ClientOption{httpclient.WithHeader("User-Agent", settings.UserAgent)}
	for k, v := range settings.Headers {
		options = append(options, httpclient.WithHeader(k, config.ResolveVariables(v, cfg.Variables)))
	}
	client := httpclient.NewClient(httpclient.Config{
		Timeout:             settings.Timeout.GetDuration(30 * time.Second),
		MaxIdleConnsPerHost: settings.MaxIdleConnsPerHost,
		MaxConnsPerHost:     settings.MaxConnectionsPerHost,
		InsecureSkipVerify:  settings.InsecureSkipVerify,
	}, options...)

	e := &Engine{
		config:    cfg,
		client:    client,
		scenarios: make(map[string]*ScenarioRunner),
	}

	for _, name := range config.SortedScenarioNames(cfg) {
		runner, err := e.newRunner(name, cfg.Scenarios[name])
		if err != nil {
			e.Close()
			return nil, errors.Wrapf(err, "scenario %s", name)
		}
		e.scenarios[name] = runner
		e.order = append(e.order, name)
	}

	return e, nil
}

func (e *Engine) newRunner(name string, sc *config.ScenarioConfig) (*ScenarioRunner, error) {
	execConfig, err := config.ConvertToExecutorConfig(name, sc)
	if err != nil {
		return nil, err
	}

	checks, err := config.BuildChecks(sc.Checks)
	if err != nil {
		return nil, err
	}

	vars := config.MergeVariables(e.config.Variables, sc.Tags)
	if e.config.Settings.BaseURL != "" {
		vars["baseUrl"] = e.config.Settings.BaseURL
	}

	scenario, err := prreview.NewHTTPScenario(name, sc.Request, vars, e.client)
	if err != nil {
		return nil, err
	}

	exec, err := executor.CreateAndInitExecutor(context.Background(), execConfig)
	if err != nil {
		return nil, err
	}

	return &ScenarioRunner{
		Name:       name,
		Config:     sc,
		ExecConfig: execConfig,
		Executor:   exec,
		Scenario:   scenario,
		Checks:     checks,
		Metrics:    metrics.NewEngineWithConfig(metrics.EngineConfig{Name: name}),
	}, nil
}

// Run executes all scenarios and returns the test results.
//
// By default, all scenarios run concurrently. If Options.Sequential is true,
// scenarios run one at a time in name order.
func (e *Engine) Run(ctx context.Context) (*TestResult, error) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil, errors.New("engine is already running")
	}
	e.running = true
	e.startTime = time.Now()
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
		e.client.CloseIdleConnections()
	}()

	log.WithFields(log.Fields{
		"test":      e.config.Name,
		"scenarios": len(e.order),
	}).Info("test starting")

	var runErr error
	if e.config.Options != nil && e.config.Options.Sequential {
		runErr = e.runScenariosSequentially(ctx)
	} else {
		runErr = e.runScenariosConcurrently(ctx)
	}

	result := &TestResult{
		Name:        e.config.Name,
		Description: e.config.Description,
		StartTime:   e.startTime,
		EndTime:     time.Now(),
		Duration:    time.Since(e.startTime),
		Scenarios:   make(map[string]*ScenarioResult, len(e.order)),
		Passed:      runErr == nil,
		Error:       runErr,
	}

	for _, name := range e.order {
		runner := e.scenarios[name]
		if runner.Result == nil {
			continue
		}
		result.Scenarios[name] = runner.Result
		result.Thresholds = append(result.Thresholds,
			EvaluateThresholds(e.config.Thresholds, name, runner.Result.Summary)...)
	}

	for _, t := range result.Thresholds {
		if !t.Passed {
			result.Passed = false
			log.WithFields(log.Fields{
				"scenario":   t.Scenario,
				"metric":     t.Metric,
				"expression": t.Expression,
				"value":      t.Value,
			}).Warn("threshold failed")
		}
	}

	return result, runErr
}

// runScenariosConcurrently runs all scenarios in parallel.
func (e *Engine) runScenariosConcurrently(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, name := range e.order {
		runner := e.scenarios[name]
		g.Go(func() error {
			return e.runScenario(gctx, runner)
		})
	}
	return g.Wait()
}

// runScenariosSequentially runs all scenarios one at a time.
func (e *Engine) runScenariosSequentially(ctx context.Context) error {
	for _, name := range e.order {
		if err := ctx.Err(); err != nil {
			e.Close()
			return err
		}
		if err := e.runScenario(ctx, e.scenarios[name]); err != nil {
			e.Close()
			return err
		}
	}
	return nil
}

// runScenario runs a single scenario and freezes its metrics.
func (e *Engine) runScenario(ctx context.Context, runner *ScenarioRunner) error {
	logger := log.WithFields(log.Fields{
		"scenario": runner.Name,
		"rate":     runner.ExecConfig.Rate,
		"timeUnit": runner.ExecConfig.TimeUnit,
		"duration": runner.ExecConfig.Duration,
		"maxVUs":   runner.ExecConfig.MaxVUs,
	})
	logger.Info("scenario starting")

	err := runner.Executor.Run(ctx, runner.Scenario, runner.Checks, runner.Metrics)
	summary := runner.Metrics.Finalize()

	runner.Result = &ScenarioResult{
		Name:     runner.Name,
		Executor: string(runner.Executor.Type()),
		Summary:  summary,
		Stats:    runner.Executor.GetStats(),
		Error:    err,
	}

	if err != nil {
		logger.WithError(err).Error("scenario failed")
		return errors.Wrapf(err, "scenario %s failed", runner.Name)
	}

	logger.WithFields(log.Fields{
		"arrivals":  summary.Arrivals,
		"completed": summary.Completed,
		"failed":    summary.Failed,
		"dropped":   summary.Dropped,
		"abandoned": summary.Abandoned,
	}).Info("scenario finished")
	return nil
}

// Close stops the metrics engines of scenarios that never ran.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		for _, runner := range e.scenarios {
			runner.Metrics.Stop()
		}
	})
}

// GetConfig returns the test configuration.
func (e *Engine) GetConfig() *config.TestConfig {
	return e.config
}

// ScenarioNames returns the scenario names in run order.
func (e *Engine) ScenarioNames() []string {
	return append([]string(nil), e.order...)
}

// Metrics returns the live metrics engine of a scenario.
func (e *Engine) Metrics(name string) (*metrics.Engine, bool) {
	runner, ok := e.scenarios[name]
	if !ok {
		return nil, false
	}
	return runner.Metrics, true
}

// Collectors returns one Prometheus collector per scenario.
func (e *Engine) Collectors() []prometheus.Collector {
	out := make([]prometheus.Collector, 0, len(e.order))
	for _, name := range e.order {
		out = append(out, metrics.NewCollector(e.scenarios[name].Metrics, name))
	}
	return out
}

// IsRunning returns true if the engine is currently running.
func (e *Engine) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// Stop ends the arrival window of every scenario. In-flight iterations drain
// normally.
func (e *Engine) Stop(ctx context.Context) error {
	var lastErr error
	for _, name := range e.order {
		if err := e.scenarios[name].Executor.Stop(ctx); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// GetProgress returns the overall test progress (0.0 to 1.0).
func (e *Engine) GetProgress() float64 {
	if len(e.order) == 0 {
		return 0.0
	}

	var total float64
	for _, name := range e.order {
		total += e.scenarios[name].Executor.GetProgress()
	}
	return total / float64(len(e.order))
}

// GetScenarioStats returns current stats for all scenarios.
func (e *Engine) GetScenarioStats() map[string]*executor.Stats {
	stats := make(map[string]*executor.Stats, len(e.order))
	for _, name := range e.order {
		stats[name] = e.scenarios[name].Executor.GetStats()
	}
	return stats
}
