// Package config provides configuration parsing and validation for load tests.
package config

import (
	"time"
)

// TestConfig is the root configuration for a load test.
//
// Example YAML:
//
//	name: "PR review load"
//	settings:
//	  baseUrl: "http://localhost:8080"
//	  timeout: 10s
//	scenarios:
//	  create_pr:
//	    executor: constant-arrival-rate
//	    rate: 5
//	    timeUnit: 1s
//	    duration: 2m
//	    preAllocatedVUs: 10
//	    maxVUs: 20
//	    request:
//	      method: POST
//	      url: "{{baseUrl}}/pullRequest/create"
//	    checks:
//	      - name: "status is 201 or 400"
//	        status: [201, 400]
type TestConfig struct {
	// Name of the test (for reporting)
	Name string `json:"name" yaml:"name"`

	// Description of the test (optional)
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Settings contains global settings for all scenarios
	Settings GlobalSettings `json:"settings,omitempty" yaml:"settings,omitempty"`

	// Variables are available to every request template as {{name}}
	Variables map[string]string `json:"variables,omitempty" yaml:"variables,omitempty"`

	// Scenarios defines the load profiles to run
	Scenarios map[string]*ScenarioConfig `json:"scenarios" yaml:"scenarios"`

	// Thresholds define pass/fail criteria for the run
	Thresholds *ThresholdsConfig `json:"thresholds,omitempty" yaml:"thresholds,omitempty"`

	// Options for test execution
	Options *ExecutionOptions `json:"options,omitempty" yaml:"options,omitempty"`
}

// GlobalSettings contains global HTTP settings.
type GlobalSettings struct {
	// BaseURL is the PR-review service root, exposed as {{baseUrl}}
	BaseURL string `json:"baseUrl,omitempty" yaml:"baseUrl,omitempty"`

	// Timeout is the default HTTP request timeout
	Timeout Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// MaxConnectionsPerHost limits connections per host
	MaxConnectionsPerHost int `json:"maxConnectionsPerHost,omitempty" yaml:"maxConnectionsPerHost,omitempty"`

	// MaxIdleConnsPerHost limits idle connections per host
	MaxIdleConnsPerHost int `json:"maxIdleConnsPerHost,omitempty" yaml:"maxIdleConnsPerHost,omitempty"`

	// InsecureSkipVerify skips TLS certificate verification
	InsecureSkipVerify bool `json:"insecureSkipVerify,omitempty" yaml:"insecureSkipVerify,omitempty"`

	// UserAgent is the default User-Agent header
	UserAgent string `json:"userAgent,omitempty" yaml:"userAgent,omitempty"`

	// Headers are default headers applied to all requests
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
}

// ScenarioConfig defines a single load scenario.
type ScenarioConfig struct {
	// Executor is the load generation strategy (only "constant-arrival-rate")
	Executor string `json:"executor,omitempty" yaml:"executor,omitempty"`

	// Preset names a built-in PR-review scenario; fields set here override it
	Preset string `json:"preset,omitempty" yaml:"preset,omitempty"`

	// Rate is iterations per TimeUnit
	Rate float64 `json:"rate,omitempty" yaml:"rate,omitempty"`

	// TimeUnit is the period Rate is expressed in (e.g., "1s", "1m")
	TimeUnit string `json:"timeUnit,omitempty" yaml:"timeUnit,omitempty"`

	// Duration is how long arrivals are scheduled (e.g., "30s", "2m")
	Duration string `json:"duration,omitempty" yaml:"duration,omitempty"`

	// PreAllocatedVUs is the number of VUs created up front
	PreAllocatedVUs int `json:"preAllocatedVUs,omitempty" yaml:"preAllocatedVUs,omitempty"`

	// MaxVUs is the maximum number of concurrent VUs
	MaxVUs int `json:"maxVUs,omitempty" yaml:"maxVUs,omitempty"`

	// GracefulStop is how long in-flight iterations may run after the window
	GracefulStop string `json:"gracefulStop,omitempty" yaml:"gracefulStop,omitempty"`

	// CatchUpWindow is the maximum dispatch lag before an arrival is dropped
	CatchUpWindow string `json:"catchUpWindow,omitempty" yaml:"catchUpWindow,omitempty"`

	// ThinkTime holds a VU idle after each iteration
	ThinkTime string `json:"thinkTime,omitempty" yaml:"thinkTime,omitempty"`

	// Request is the HTTP request each iteration performs
	Request *RequestConfig `json:"request,omitempty" yaml:"request,omitempty"`

	// Checks are evaluated against every outcome
	Checks []CheckConfig `json:"checks,omitempty" yaml:"checks,omitempty"`

	// Tags are custom labels for this scenario
	Tags map[string]string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// RequestConfig defines the HTTP request of an iteration.
type RequestConfig struct {
	// Name for this request (used in per-request metrics)
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Method is the HTTP method
	Method string `json:"method" yaml:"method"`

	// URL is the request URL (supports variable substitution)
	URL string `json:"url" yaml:"url"`

	// Headers are request-specific headers (supports variable substitution)
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`

	// Body is the request body (supports variable substitution)
	Body string `json:"body,omitempty" yaml:"body,omitempty"`

	// Timeout overrides the global request timeout
	Timeout string `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// CheckConfig is a declarative check. Every condition that is set must hold
// for the check to pass.
type CheckConfig struct {
	// Name is the tally key; generated from the conditions when empty
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Status lists the accepted status codes
	Status []int `json:"status,omitempty" yaml:"status,omitempty"`

	// MaxDuration fails iterations at or above this latency
	MaxDuration string `json:"maxDuration,omitempty" yaml:"maxDuration,omitempty"`

	// NoError requires a response to have been received
	NoError bool `json:"noError,omitempty" yaml:"noError,omitempty"`

	// JSONPath selects a body value for Equals or Exists
	JSONPath string `json:"jsonPath,omitempty" yaml:"jsonPath,omitempty"`

	// Equals is the expected string form of the JSONPath value
	Equals *string `json:"equals,omitempty" yaml:"equals,omitempty"`

	// Exists requires the JSONPath to resolve
	Exists bool `json:"exists,omitempty" yaml:"exists,omitempty"`

	// BodyContains requires a substring of the response body
	BodyContains string `json:"bodyContains,omitempty" yaml:"bodyContains,omitempty"`

	// Schema is an inline JSON Schema the body must satisfy
	Schema string `json:"schema,omitempty" yaml:"schema,omitempty"`
}

// ThresholdsConfig defines pass/fail criteria for the run.
type ThresholdsConfig struct {
	// IterationDuration thresholds, e.g. ["p95 < 500ms", "avg < 200ms"]
	IterationDuration []string `json:"iteration_duration,omitempty" yaml:"iteration_duration,omitempty"`

	// IterationsFailed thresholds on the failure rate, e.g. ["rate < 0.01"]
	IterationsFailed []string `json:"iterations_failed,omitempty" yaml:"iterations_failed,omitempty"`

	// IterationsDropped thresholds, e.g. ["count < 1", "rate < 0.05"]
	IterationsDropped []string `json:"iterations_dropped,omitempty" yaml:"iterations_dropped,omitempty"`

	// Checks thresholds on the overall check pass rate, e.g. ["rate > 0.99"]
	Checks []string `json:"checks,omitempty" yaml:"checks,omitempty"`
}

// IsEmpty reports whether no threshold is configured.
func (t *ThresholdsConfig) IsEmpty() bool {
	return t == nil || len(t.IterationDuration)+len(t.IterationsFailed)+len(t.IterationsDropped)+len(t.Checks) == 0
}

// ExecutionOptions controls test execution behavior.
type ExecutionOptions struct {
	// Sequential runs scenarios one-by-one instead of concurrently
	Sequential bool `json:"sequential,omitempty" yaml:"sequential,omitempty"`
}

// Duration is a time.Duration that can be unmarshaled from JSON/YAML strings.
type Duration time.Duration

// GetDuration returns the duration or a default if empty.
func (d Duration) GetDuration(defaultValue time.Duration) time.Duration {
	if d == 0 {
		return defaultValue
	}
	return time.Duration(d)
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}

	if s == "" || s == "null" {
		*d = 0
		return nil
	}

	dur, err := ParseDurationString(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}

	dur, err := ParseDurationString(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// String returns the duration as a string.
func (d Duration) String() string {
	return time.Duration(d).String()
}
