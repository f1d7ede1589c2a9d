package engine

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prreview/loadgen/internal/performance/config"
	"github.com/prreview/loadgen/internal/performance/metrics"
)

// ThresholdResult contains the result of a threshold evaluation.
type ThresholdResult struct {
	Scenario   string `json:"scenario"`
	Metric     string `json:"metric"`
	Expression string `json:"expression"`
	Passed     bool   `json:"passed"`
	Value      string `json:"value"`
	Message    string `json:"message,omitempty"`
}

// EvaluateThresholds evaluates every configured threshold against one
// scenario's summary.
func EvaluateThresholds(t *config.ThresholdsConfig, scenario string, s *metrics.Summary) []ThresholdResult {
	if t.IsEmpty() || s == nil {
		return nil
	}

	var results []ThresholdResult
	for _, expr := range t.IterationDuration {
		results = append(results, evaluateDurationThreshold(expr, s))
	}
	for _, expr := range t.IterationsFailed {
		results = append(results, evaluateCountRateThreshold(config.ThresholdIterationsFailed, expr, s.Failed, s.FailureRate()))
	}
	for _, expr := range t.IterationsDropped {
		results = append(results, evaluateCountRateThreshold(config.ThresholdIterationsDropped, expr, s.Dropped, s.DropRate()))
	}
	for _, expr := range t.Checks {
		results = append(results, evaluateChecksThreshold(expr, s))
	}

	for i := range results {
		results[i].Scenario = scenario
	}
	return results
}

// evaluateDurationThreshold evaluates a latency threshold like "p95 < 500ms".
func evaluateDurationThreshold(expr string, s *metrics.Summary) ThresholdResult {
	result := ThresholdResult{
		Metric:     config.ThresholdIterationDuration,
		Expression: expr,
	}

	th, err := config.ParseThreshold(expr)
	if err != nil {
		result.Message = fmt.Sprintf("failed to parse expression: %v", err)
		return result
	}

	var actual time.Duration
	switch th.Metric {
	case "min":
		actual = s.Latency.Min
	case "max":
		actual = s.Latency.Max
	case "avg":
		actual = s.Latency.Mean
	case "p50", "med":
		actual = s.Latency.P50
	case "p90":
		actual = s.Latency.P90
	case "p95":
		actual = s.Latency.P95
	case "p99":
		actual = s.Latency.P99
	default:
		result.Message = fmt.Sprintf("unknown metric: %s", th.Metric)
		return result
	}

	want, err := config.ParseDurationString(th.Value)
	if err != nil {
		result.Message = fmt.Sprintf("failed to parse threshold value: %v", err)
		return result
	}

	result.Value = actual.String()
	result.Passed = compareValues(float64(actual), th.Op, float64(want))
	if !result.Passed {
		result.Message = fmt.Sprintf("%s is %s, threshold: %s %s", th.Metric, actual, th.Op, want)
	}
	return result
}

// evaluateCountRateThreshold evaluates "count < 1" or "rate < 0.01" against
// a counter and its rate.
func evaluateCountRateThreshold(metric, expr string, count int64, rate float64) ThresholdResult {
	result := ThresholdResult{
		Metric:     metric,
		Expression: expr,
	}

	th, err := config.ParseThreshold(expr)
	if err != nil {
		result.Message = fmt.Sprintf("failed to parse expression: %v", err)
		return result
	}

	want, err := strconv.ParseFloat(th.Value, 64)
	if err != nil {
		result.Message = fmt.Sprintf("failed to parse threshold value: %v", err)
		return result
	}

	var actual float64
	switch th.Metric {
	case "count":
		actual = float64(count)
		result.Value = strconv.FormatInt(count, 10)
	case "rate":
		actual = rate
		result.Value = fmt.Sprintf("%.4f", rate)
	default:
		result.Message = fmt.Sprintf("%s only supports 'count' or 'rate' metrics, got: %s", metric, th.Metric)
		return result
	}

	result.Passed = compareValues(actual, th.Op, want)
	if !result.Passed {
		result.Message = fmt.Sprintf("%s is %s, threshold: %s %s", th.Metric, result.Value, th.Op, th.Value)
	}
	return result
}

// evaluateChecksThreshold evaluates the overall check pass rate.
func evaluateChecksThreshold(expr string, s *metrics.Summary) ThresholdResult {
	result := ThresholdResult{
		Metric:     config.ThresholdChecks,
		Expression: expr,
	}

	th, err := config.ParseThreshold(expr)
	if err != nil {
		result.Message = fmt.Sprintf("failed to parse expression: %v", err)
		return result
	}
	if th.Metric != "rate" {
		result.Message = fmt.Sprintf("checks only supports 'rate' metric, got: %s", th.Metric)
		return result
	}

	want, err := strconv.ParseFloat(th.Value, 64)
	if err != nil {
		result.Message = fmt.Sprintf("failed to parse threshold value: %v", err)
		return result
	}

	rate := s.ChecksPassRate()
	result.Value = fmt.Sprintf("%.4f", rate)
	result.Passed = compareValues(rate, th.Op, want)
	if !result.Passed {
		result.Message = fmt.Sprintf("check pass rate is %.4f, threshold: %s %.4f", rate, th.Op, want)
	}
	return result
}

// compareValues compares two values using the given operator.
func compareValues(actual float64, op string, threshold float64) bool {
	switch op {
	case "<":
		return actual < threshold
	case "<=":
		return actual <= threshold
	case ">":
		return actual > threshold
	case ">=":
		return actual >= threshold
	case "==":
		return actual == threshold
	case "!=":
		return actual != threshold
	default:
		return false
	}
}
