package config

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/prreview/loadgen/internal/performance"
	"github.com/prreview/loadgen/internal/performance/check"
)

// Threshold metric groups.
const (
	ThresholdIterationDuration = "iteration_duration"
	ThresholdIterationsFailed  = "iterations_failed"
	ThresholdIterationsDropped = "iterations_dropped"
	ThresholdChecks            = "checks"
)

var thresholdMetrics = map[string][]string{
	ThresholdIterationDuration: {"p50", "p90", "p95", "p99", "min", "max", "avg", "med"},
	ThresholdIterationsFailed:  {"rate", "count"},
	ThresholdIterationsDropped: {"rate", "count"},
	ThresholdChecks:            {"rate"},
}

var thresholdRe = regexp.MustCompile(`^(\w+)\s*(<=|>=|==|!=|<|>)\s*(.+)$`)

// Threshold is a parsed expression such as "p95 < 500ms".
type Threshold struct {
	Metric string
	Op     string
	Value  string
}

// ParseThreshold parses a threshold expression.
func ParseThreshold(expr string) (Threshold, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return Threshold{}, errors.New("threshold expression cannot be empty")
	}

	m := thresholdRe.FindStringSubmatch(expr)
	if len(m) != 4 {
		return Threshold{}, errors.Errorf("invalid expression format: %s", expr)
	}
	return Threshold{Metric: m[1], Op: m[2], Value: strings.TrimSpace(m[3])}, nil
}

// Validate validates the entire test configuration. Presets must be resolved
// and defaults applied first.
//
// Returns nil if valid, or a *multierror.Error of *performance.ConfigError.
func (c *TestConfig) Validate() error {
	var result *multierror.Error
	add := func(field, format string, args ...interface{}) {
		result = multierror.Append(result, &performance.ConfigError{
			Field:   field,
			Message: fmt.Sprintf(format, args...),
		})
	}

	if len(c.Scenarios) == 0 {
		add("scenarios", "at least one scenario is required")
	}

	for _, name := range SortedScenarioNames(c) {
		sc := c.Scenarios[name]
		if sc == nil {
			add("scenarios."+name, "scenario is empty")
			continue
		}
		result = multierror.Append(result, validateScenario(name, sc))
	}

	if c.Thresholds != nil {
		validateThresholds(c.Thresholds, add)
	}

	validateSettings(&c.Settings, add)

	return result.ErrorOrNil()
}

func validateScenario(name string, sc *ScenarioConfig) error {
	var result *multierror.Error
	prefix := "scenarios." + name

	execCfg, err := ConvertToExecutorConfig(name, sc)
	if err != nil {
		result = multierror.Append(result, &performance.ConfigError{Field: prefix, Message: err.Error()})
	} else if err := execCfg.Validate(); err != nil {
		var merr *multierror.Error
		if errors.As(err, &merr) {
			for _, e := range merr.Errors {
				result = multierror.Append(result, prefixed(prefix, e))
			}
		} else {
			result = multierror.Append(result, prefixed(prefix, err))
		}
	}

	if sc.Request == nil {
		result = multierror.Append(result, &performance.ConfigError{
			Field:   prefix + ".request",
			Message: "a request or a preset is required",
		})
	} else {
		if sc.Request.URL == "" {
			result = multierror.Append(result, &performance.ConfigError{
				Field:   prefix + ".request.url",
				Message: "URL is required",
			})
		}
		if _, err := ParseDurationString(sc.Request.Timeout); err != nil {
			result = multierror.Append(result, &performance.ConfigError{
				Field:   prefix + ".request.timeout",
				Message: err.Error(),
			})
		}
	}

	for i, cc := range sc.Checks {
		if err := validateCheck(cc); err != nil {
			result = multierror.Append(result, &performance.ConfigError{
				Field:   fmt.Sprintf("%s.checks[%d]", prefix, i),
				Message: err.Error(),
			})
		}
	}

	return result.ErrorOrNil()
}

func prefixed(prefix string, err error) error {
	var ce *performance.ConfigError
	if errors.As(err, &ce) {
		return &performance.ConfigError{Field: prefix + "." + ce.Field, Message: ce.Message}
	}
	return &performance.ConfigError{Field: prefix, Message: err.Error()}
}

func validateCheck(cc CheckConfig) error {
	if len(cc.Status) == 0 && cc.MaxDuration == "" && !cc.NoError && cc.JSONPath == "" &&
		cc.BodyContains == "" && cc.Schema == "" {
		return errors.New("check has no conditions")
	}

	if cc.MaxDuration != "" {
		if d, err := ParseDurationString(cc.MaxDuration); err != nil {
			return err
		} else if d <= 0 {
			return errors.New("maxDuration must be positive")
		}
	}

	if cc.JSONPath != "" && cc.Equals == nil && !cc.Exists {
		return errors.New("jsonPath requires equals or exists")
	}
	if cc.JSONPath == "" && (cc.Equals != nil || cc.Exists) {
		return errors.New("equals and exists require jsonPath")
	}

	if cc.Schema != "" {
		if _, err := check.CompileSchema(cc.Schema); err != nil {
			return err
		}
	}
	return nil
}

func validateThresholds(t *ThresholdsConfig, add func(field, format string, args ...interface{})) {
	groups := []struct {
		name  string
		exprs []string
	}{
		{ThresholdIterationDuration, t.IterationDuration},
		{ThresholdIterationsFailed, t.IterationsFailed},
		{ThresholdIterationsDropped, t.IterationsDropped},
		{ThresholdChecks, t.Checks},
	}

	for _, g := range groups {
		for i, expr := range g.exprs {
			if err := validateThresholdExpression(g.name, expr); err != nil {
				add(fmt.Sprintf("thresholds.%s[%d]", g.name, i), "%v", err)
			}
		}
	}
}

// validateThresholdExpression validates a threshold expression for a metric
// group.
//
// Valid formats:
//   - "p95 < 500ms"
//   - "avg < 200ms"
//   - "rate < 0.01"
//   - "count < 1"
func validateThresholdExpression(group, expr string) error {
	th, err := ParseThreshold(expr)
	if err != nil {
		return err
	}

	allowed := thresholdMetrics[group]
	found := false
	for _, m := range allowed {
		if th.Metric == m {
			found = true
			break
		}
	}
	if !found {
		return errors.Errorf("%s supports %s, got %q", group, strings.Join(allowed, ", "), th.Metric)
	}

	if group == ThresholdIterationDuration {
		if _, err := ParseDurationString(th.Value); err != nil {
			return err
		}
		return nil
	}

	if _, err := strconv.ParseFloat(th.Value, 64); err != nil {
		return errors.Errorf("invalid threshold value: %s", th.Value)
	}
	return nil
}

// validateSettings validates global settings.
func validateSettings(s *GlobalSettings, add func(field, format string, args ...interface{})) {
	if s.BaseURL != "" {
		u, err := url.Parse(s.BaseURL)
		if err != nil {
			add("settings.baseUrl", "invalid URL: %v", err)
		} else if u.Scheme != "http" && u.Scheme != "https" {
			add("settings.baseUrl", "scheme must be http or https")
		}
	}

	if s.MaxConnectionsPerHost < 0 {
		add("settings.maxConnectionsPerHost", "cannot be negative")
	}
	if s.MaxIdleConnsPerHost < 0 {
		add("settings.maxIdleConnsPerHost", "cannot be negative")
	}
}

// SortedScenarioNames returns scenario names in a stable order.
func SortedScenarioNames(c *TestConfig) []string {
	names := make([]string, 0, len(c.Scenarios))
	for name := range c.Scenarios {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
