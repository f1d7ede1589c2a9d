package metrics

import (
	"time"

	"github.com/pkg/errors"
)

// RunState is the lifecycle state of a scenario run.
//
// A run moves strictly forward: pending → running → draining → completed.
type RunState int32

const (
	// StatePending is a configured run that has not started yet
	StatePending RunState = iota

	// StateRunning means arrivals are being scheduled
	StateRunning

	// StateDraining means the arrival deadline has passed and in-flight
	// iterations are finishing
	StateDraining

	// StateCompleted means every iteration finished or was abandoned
	StateCompleted
)

// String returns the string representation of the run state.
func (s RunState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name.
func (s RunState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *RunState) UnmarshalText(text []byte) error {
	switch string(text) {
	case "pending":
		*s = StatePending
	case "running":
		*s = StateRunning
	case "draining":
		*s = StateDraining
	case "completed":
		*s = StateCompleted
	default:
		return errors.Errorf("unknown run state %q", string(text))
	}
	return nil
}

// DropReason labels why an arrival did not start an iteration.
type DropReason string

const (
	// DropPoolExhausted means every VU was busy and the pool was at MaxVUs
	DropPoolExhausted DropReason = "pool_exhausted"

	// DropMissedDeadline means the arrival fell outside the catch-up window
	// or could only be dispatched after the run deadline
	DropMissedDeadline DropReason = "missed_deadline"
)

// StateChange records when a state transition occurred.
type StateChange struct {
	State     RunState  `json:"state"`
	Timestamp time.Time `json:"timestamp"`
	Arrivals  int64     `json:"arrivals"`
}

// LatencyStats contains latency statistics.
type LatencyStats struct {
	Min    time.Duration `json:"min"`
	Max    time.Duration `json:"max"`
	Mean   time.Duration `json:"mean"`
	StdDev time.Duration `json:"stdDev"`
	P50    time.Duration `json:"p50"`
	P90    time.Duration `json:"p90"`
	P95    time.Duration `json:"p95"`
	P99    time.Duration `json:"p99"`
	Count  int64         `json:"count"`
}

// LatencyPercentiles holds latency percentile values.
type LatencyPercentiles struct {
	Min time.Duration
	Max time.Duration
	P50 time.Duration
	P90 time.Duration
	P95 time.Duration
	P99 time.Duration
}

// CheckSummary is the pass/fail tally for one named check.
type CheckSummary struct {
	Name     string  `json:"name"`
	Passes   int64   `json:"passes"`
	Fails    int64   `json:"fails"`
	PassRate float64 `json:"passRate"`
}

// Total returns the number of evaluations of the check.
func (c CheckSummary) Total() int64 {
	return c.Passes + c.Fails
}

// Snapshot contains a point-in-time view of a run in progress.
//
// Each counter is read atomically but the snapshot as a whole is not; for
// example Started may already include an iteration that Completed does not.
type Snapshot struct {
	Arrivals        int64                `json:"arrivals"`
	Started         int64                `json:"started"`
	Completed       int64                `json:"completed"`
	Failed          int64                `json:"failed"`
	Dropped         int64                `json:"dropped"`
	Abandoned       int64                `json:"abandoned"`
	DroppedByReason map[DropReason]int64 `json:"droppedByReason"`
	Checks          []CheckSummary       `json:"checks"`
	BytesReceived   int64                `json:"bytesReceived"`
	Latency         LatencyStats         `json:"latency"`
	IterationRate   float64              `json:"iterationRate"`
	PoolSize        int                  `json:"poolSize"`
	BusyVUs         int                  `json:"busyVUs"`
	State           RunState             `json:"state"`
	Elapsed         time.Duration        `json:"elapsed"`
	StartTime       time.Time            `json:"startTime"`
	Timestamp       time.Time            `json:"timestamp"`
}

// TimeBucket captures the run at one emitter tick, both cumulative totals
// and the deltas since the previous bucket.
type TimeBucket struct {
	Timestamp time.Time `json:"timestamp"`

	// Cumulative
	Arrivals  int64 `json:"arrivals"`
	Started   int64 `json:"started"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Dropped   int64 `json:"dropped"`

	// Interval deltas
	IntervalCompleted   int64   `json:"intervalCompleted"`
	IntervalDropped     int64   `json:"intervalDropped"`
	IntervalRate        float64 `json:"intervalRate"`
	IntervalFailureRate float64 `json:"intervalFailureRate"`

	// Latency at bucket time
	LatencyP50 time.Duration `json:"latencyP50"`
	LatencyP90 time.Duration `json:"latencyP90"`
	LatencyP95 time.Duration `json:"latencyP95"`
	LatencyP99 time.Duration `json:"latencyP99"`
	LatencyMax time.Duration `json:"latencyMax"`

	BusyVUs  int      `json:"busyVUs"`
	PoolSize int      `json:"poolSize"`
	State    RunState `json:"state"`
}
