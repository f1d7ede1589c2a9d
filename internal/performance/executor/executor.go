// Package executor runs scenarios under a load-generation strategy.
package executor

import (
	"context"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/prreview/loadgen/internal/performance"
	"github.com/prreview/loadgen/internal/performance/check"
	"github.com/prreview/loadgen/internal/performance/metrics"
	"github.com/prreview/loadgen/internal/performance/rate"
)

// Type identifies the type of executor.
type Type string

const (
	// TypeConstantArrivalRate maintains a fixed iteration rate.
	TypeConstantArrivalRate Type = "constant-arrival-rate"
)

const (
	// DefaultTimeUnit is the period Rate is expressed in when none is set.
	DefaultTimeUnit = time.Second

	// DefaultGracefulStop is how long in-flight iterations may run after the
	// arrival window closes.
	DefaultGracefulStop = 30 * time.Second
)

// Executor defines the interface for load generation strategies.
type Executor interface {
	// Type returns the executor type.
	Type() Type

	// Init validates and stores the configuration. Called once before Run.
	Init(ctx context.Context, config *Config) error

	// Run drives scenario until the run completes and blocks until then.
	// Every outcome is evaluated against checks and recorded in m.
	Run(ctx context.Context, scenario performance.Scenario, checks []check.Check, m *metrics.Engine) error

	// GetProgress returns progress through the arrival window (0.0 to 1.0).
	GetProgress() float64

	// GetActiveVUs returns the number of allocated VUs.
	GetActiveVUs() int

	// GetStats returns executor-specific statistics.
	GetStats() *Stats

	// Stop ends the arrival window early. In-flight iterations drain as
	// they would at the deadline.
	Stop(ctx context.Context) error
}

// Config contains configuration for an executor.
type Config struct {
	// Name is the name of this executor instance
	Name string `json:"name" yaml:"name"`

	// Type is the executor type
	Type Type `json:"type" yaml:"type"`

	// Rate is iterations per TimeUnit
	Rate float64 `json:"rate" yaml:"rate"`

	// TimeUnit is the period Rate is expressed in (default: 1s)
	TimeUnit time.Duration `json:"timeUnit,omitempty" yaml:"timeUnit,omitempty"`

	// Duration is the length of the arrival window
	Duration time.Duration `json:"duration" yaml:"duration"`

	// PreAllocatedVUs are created before the first arrival
	PreAllocatedVUs int `json:"preAllocatedVUs" yaml:"preAllocatedVUs"`

	// MaxVUs is the hard cap on concurrent iterations
	MaxVUs int `json:"maxVUs" yaml:"maxVUs"`

	// GracefulStop bounds the drain after the arrival window (default: 30s)
	GracefulStop time.Duration `json:"gracefulStop,omitempty" yaml:"gracefulStop,omitempty"`

	// CatchUpWindow is the maximum dispatch lag before an arrival is
	// dropped as missed (default: 1s)
	CatchUpWindow time.Duration `json:"catchUpWindow,omitempty" yaml:"catchUpWindow,omitempty"`

	// ThinkTime holds a VU idle after its iteration before it can be reused
	ThinkTime time.Duration `json:"thinkTime,omitempty" yaml:"thinkTime,omitempty"`
}

// Stats contains real-time executor statistics.
type Stats struct {
	StartTime     time.Time     `json:"startTime"`
	CurrentTime   time.Time     `json:"currentTime"`
	Elapsed       time.Duration `json:"elapsed"`
	TotalDuration time.Duration `json:"totalDuration"`

	PoolSize int `json:"poolSize"`
	BusyVUs  int `json:"busyVUs"`
	MaxVUs   int `json:"maxVUs"`

	Iterations int64 `json:"iterations"`
	InFlight   int   `json:"inFlight"`

	TargetRate float64            `json:"targetRate"`
	TimeUnit   time.Duration      `json:"timeUnit"`
	Schedule   rate.ScheduleStats `json:"schedule"`
}

// WithDefaults returns a copy of c with zero-valued optional fields set.
func (c Config) WithDefaults() Config {
	if c.Type == "" {
		c.Type = TypeConstantArrivalRate
	}
	if c.TimeUnit == 0 {
		c.TimeUnit = DefaultTimeUnit
	}
	if c.GracefulStop == 0 {
		c.GracefulStop = DefaultGracefulStop
	}
	if c.CatchUpWindow == 0 {
		c.CatchUpWindow = rate.DefaultCatchUpWindow
	}
	return c
}

// Validate checks the configuration and reports every problem at once.
// Each problem is a *performance.ConfigError.
func (c *Config) Validate() error {
	var result *multierror.Error
	fail := func(field, msg string) {
		result = multierror.Append(result, &performance.ConfigError{Field: field, Message: msg})
	}

	switch c.Type {
	case "", TypeConstantArrivalRate:
	default:
		fail("type", "unknown executor type: "+string(c.Type))
	}

	if c.Rate <= 0 {
		fail("rate", "rate must be > 0")
	}
	if c.Duration <= 0 {
		fail("duration", "duration must be > 0")
	}
	if c.TimeUnit < 0 {
		fail("timeUnit", "timeUnit must be > 0")
	}
	if c.MaxVUs <= 0 {
		fail("maxVUs", "maxVUs must be > 0")
	}
	if c.PreAllocatedVUs < 0 {
		fail("preAllocatedVUs", "preAllocatedVUs must be >= 0")
	}
	if c.MaxVUs > 0 && c.PreAllocatedVUs > c.MaxVUs {
		fail("preAllocatedVUs", "preAllocatedVUs must be <= maxVUs")
	}
	if c.GracefulStop < 0 {
		fail("gracefulStop", "gracefulStop must be >= 0")
	}
	if c.CatchUpWindow < 0 {
		fail("catchUpWindow", "catchUpWindow must be >= 0")
	}
	if c.ThinkTime < 0 {
		fail("thinkTime", "thinkTime must be >= 0")
	}

	return result.ErrorOrNil()
}

// ExpectedArrivals returns how many arrivals the configured schedule holds.
func (c *Config) ExpectedArrivals() int64 {
	d := c.WithDefaults()
	return rate.NewArrivalScheduler(d.Rate, d.TimeUnit, d.Duration, d.CatchUpWindow).Expected()
}

// NewExecutor creates an uninitialized executor of the given type. An empty
// type selects the constant-arrival-rate executor.
func NewExecutor(executorType Type) (Executor, error) {
	switch executorType {
	case "", TypeConstantArrivalRate:
		return NewConstantArrivalRate(), nil
	default:
		return nil, errors.Errorf("unknown executor type: %s", executorType)
	}
}

// CreateAndInitExecutor creates and initializes an executor for cfg.
func CreateAndInitExecutor(ctx context.Context, cfg *Config) (Executor, error) {
	exec, err := NewExecutor(cfg.Type)
	if err != nil {
		return nil, err
	}

	if err := exec.Init(ctx, cfg); err != nil {
		return nil, err
	}
	return exec, nil
}
