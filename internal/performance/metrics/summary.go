package metrics

import (
	"time"
)

// Summary is the frozen result of a run, produced by Engine.Finalize.
//
// A Summary is never mutated after it is built; callers must treat its maps
// and slices as read-only.
type Summary struct {
	Name      string        `json:"name,omitempty"`
	State     RunState      `json:"state"`
	StartTime time.Time     `json:"startTime"`
	EndTime   time.Time     `json:"endTime"`
	Duration  time.Duration `json:"duration"`

	Arrivals  int64 `json:"arrivals"`
	Started   int64 `json:"iterationsStarted"`
	Completed int64 `json:"iterationsCompleted"`
	Failed    int64 `json:"iterationsFailed"`
	Dropped   int64 `json:"iterationsDropped"`
	Abandoned int64 `json:"iterationsAbandoned"`

	DroppedByReason map[DropReason]int64 `json:"droppedByReason"`
	StatusClasses   map[string]int64     `json:"statusClasses"`
	BytesReceived   int64                `json:"bytesReceived"`

	Latency       LatencyStats            `json:"latency"`
	Requests      map[string]LatencyStats `json:"requests,omitempty"`
	IterationRate float64                 `json:"iterationRate"`
	SteadyRate    float64                 `json:"steadyStateRate"`

	Checks []CheckSummary `json:"checks"`

	MaxPoolSize  int           `json:"maxPoolSize"`
	StateHistory []StateChange `json:"stateHistory"`
	TimeSeries   []*TimeBucket `json:"timeSeries,omitempty"`
}

// FailureRate returns failed / completed, or 0 when nothing completed.
func (s *Summary) FailureRate() float64 {
	if s.Completed == 0 {
		return 0
	}
	return float64(s.Failed) / float64(s.Completed)
}

// DropRate returns dropped / arrivals, or 0 when nothing arrived.
func (s *Summary) DropRate() float64 {
	if s.Arrivals == 0 {
		return 0
	}
	return float64(s.Dropped) / float64(s.Arrivals)
}

// ChecksPassRate returns the pass rate across all checks. With no check
// evaluations it is 1.
func (s *Summary) ChecksPassRate() float64 {
	var passes, total int64
	for _, c := range s.Checks {
		passes += c.Passes
		total += c.Total()
	}
	if total == 0 {
		return 1
	}
	return float64(passes) / float64(total)
}

// Check looks up the tally for a named check.
func (s *Summary) Check(name string) (CheckSummary, bool) {
	for _, c := range s.Checks {
		if c.Name == name {
			return c, true
		}
	}
	return CheckSummary{}, false
}

// Balanced reports whether every arrival is accounted for as started or
// dropped, and every start as completed or abandoned.
func (s *Summary) Balanced() bool {
	return s.Started+s.Dropped == s.Arrivals &&
		s.Started == s.Completed+s.Abandoned
}

func (e *Engine) buildSummary() *Summary {
	snap := e.GetSnapshot()

	e.stateMu.Lock()
	start, end := e.startTime, e.endTime
	e.stateMu.Unlock()

	duration := end.Sub(start)
	rate := 0.0
	if duration > 0 {
		rate = float64(snap.Completed) / duration.Seconds()
	}
	steady, _ := e.bucketStore.SteadyStateRate()

	maxPool := snap.PoolSize
	series := e.GetTimeSeries()
	for _, b := range series {
		if b.PoolSize > maxPool {
			maxPool = b.PoolSize
		}
	}

	return &Summary{
		Name:            e.config.Name,
		State:           snap.State,
		StartTime:       start,
		EndTime:         end,
		Duration:        duration,
		Arrivals:        snap.Arrivals,
		Started:         snap.Started,
		Completed:       snap.Completed,
		Failed:          snap.Failed,
		Dropped:         snap.Dropped,
		Abandoned:       snap.Abandoned,
		DroppedByReason: snap.DroppedByReason,
		StatusClasses:   e.statusClassCounts(),
		BytesReceived:   snap.BytesReceived,
		Latency:         snap.Latency,
		Requests:        e.GetRequestStats(),
		IterationRate:   rate,
		SteadyRate:      steady,
		Checks:          snap.Checks,
		MaxPoolSize:     maxPool,
		StateHistory:    e.GetStateHistory(),
		TimeSeries:      series,
	}
}
