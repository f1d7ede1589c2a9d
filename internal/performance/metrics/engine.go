// Package metrics aggregates the counters and latency distribution of a
// scenario run.
package metrics

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/prreview/loadgen/internal/performance"
)

// Engine collects the metrics of one scenario run.
//
// Key features:
// - HDR histogram for latency percentiles
// - Lock-free counters for the arrival and iteration lifecycle
// - Per-check and per-drop-reason tallies
// - Continuous time-bucket emission
//
// An Engine is created per run and passed explicitly to the executor; there
// is no process-wide registry.
//
// # Thread Safety
//
// Engine is safe for concurrent use. Counters use atomic operations, the
// histograms and keyed tallies are mutex protected, and the background
// emitter runs in its own goroutine.
type Engine struct {
	latencyHist   *hdrhistogram.Histogram
	latencyHistMu sync.Mutex

	requestHists   map[string]*hdrhistogram.Histogram
	requestHistsMu sync.RWMutex

	// Lifecycle counters
	arrivals  atomic.Int64
	started   atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
	abandoned atomic.Int64
	bytes     atomic.Int64

	// Keyed tallies
	tallyMu       sync.RWMutex
	droppedBy     map[DropReason]*atomic.Int64
	statusClasses map[string]*atomic.Int64
	checks        map[string]*checkCounter

	poolSize atomic.Int32
	busyVUs  atomic.Int32

	state        atomic.Int32
	stateMu      sync.Mutex
	stateHistory []StateChange

	startTime time.Time
	endTime   time.Time

	bucketStore *TimeBucketStore

	emitterCtx    context.Context
	emitterCancel context.CancelFunc
	emitterWg     sync.WaitGroup
	stopOnce      sync.Once

	finalizeOnce sync.Once
	summary      *Summary

	config EngineConfig
}

type checkCounter struct {
	passes atomic.Int64
	fails  atomic.Int64
}

// EngineConfig contains configuration for the metrics engine.
type EngineConfig struct {
	// Name labels the run in the summary
	Name string

	// BucketInterval is the interval for time-series buckets (default: 1s).
	// A negative value disables the emitter.
	BucketInterval time.Duration

	// MaxBuckets is the maximum number of buckets to retain (default: 3600)
	MaxBuckets int

	// HistogramMin is the minimum recordable value in microseconds (default: 1)
	HistogramMin int64

	// HistogramMax is the maximum recordable value in microseconds (default: 1 hour)
	HistogramMax int64

	// HistogramSigFigs is the number of significant figures (default: 3)
	HistogramSigFigs int
}

// DefaultEngineConfig returns the default configuration.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		BucketInterval:   time.Second,
		MaxBuckets:       3600,
		HistogramMin:     1,
		HistogramMax:     3600000000,
		HistogramSigFigs: 3,
	}
}

// NewEngine creates a metrics engine with default configuration.
func NewEngine() *Engine {
	return NewEngineWithConfig(DefaultEngineConfig())
}

// NewEngineWithConfig creates a metrics engine with custom configuration.
// Zero-valued fields take their defaults.
func NewEngineWithConfig(config EngineConfig) *Engine {
	defaults := DefaultEngineConfig()
	if config.BucketInterval == 0 {
		config.BucketInterval = defaults.BucketInterval
	}
	if config.MaxBuckets <= 0 {
		config.MaxBuckets = defaults.MaxBuckets
	}
	if config.HistogramMin <= 0 {
		config.HistogramMin = defaults.HistogramMin
	}
	if config.HistogramMax <= 0 {
		config.HistogramMax = defaults.HistogramMax
	}
	if config.HistogramSigFigs <= 0 {
		config.HistogramSigFigs = defaults.HistogramSigFigs
	}

	ctx, cancel := context.WithCancel(context.Background())

	e := &Engine{
		latencyHist:   hdrhistogram.New(config.HistogramMin, config.HistogramMax, config.HistogramSigFigs),
		requestHists:  make(map[string]*hdrhistogram.Histogram),
		droppedBy:     make(map[DropReason]*atomic.Int64),
		statusClasses: make(map[string]*atomic.Int64),
		checks:        make(map[string]*checkCounter),
		stateHistory:  []StateChange{{State: StatePending, Timestamp: time.Now()}},
		startTime:     time.Now(),
		bucketStore:   NewTimeBucketStore(config.MaxBuckets),
		emitterCtx:    ctx,
		emitterCancel: cancel,
		config:        config,
	}

	if config.BucketInterval > 0 {
		e.emitterWg.Add(1)
		go e.runEmitter()
	}

	return e
}

// Name returns the run label.
func (e *Engine) Name() string {
	return e.config.Name
}

// RecordArrival counts one scheduled arrival.
func (e *Engine) RecordArrival() {
	e.arrivals.Add(1)
}

// RecordStarted counts an arrival that was admitted and started an iteration.
func (e *Engine) RecordStarted() {
	e.started.Add(1)
}

// RecordDropped counts an arrival that did not start an iteration.
func (e *Engine) RecordDropped(reason DropReason) {
	e.dropped.Add(1)
	tally(&e.tallyMu, e.droppedBy, reason).Add(1)
	e.bucketStore.RecordDrop()
}

// RecordCompleted records a finished iteration. Failed outcomes still
// contribute their latency.
func (e *Engine) RecordCompleted(o *performance.Outcome) {
	if o == nil {
		o = &performance.Outcome{}
	}

	latencyMicros := o.Latency.Microseconds()
	if latencyMicros < e.config.HistogramMin {
		latencyMicros = e.config.HistogramMin
	}
	if latencyMicros > e.config.HistogramMax {
		latencyMicros = e.config.HistogramMax
	}

	// HDR histograms are not safe for concurrent writes
	e.latencyHistMu.Lock()
	_ = e.latencyHist.RecordValue(latencyMicros)
	e.latencyHistMu.Unlock()

	if o.RequestName != "" {
		e.recordRequestHistogram(o.RequestName, latencyMicros)
	}

	e.completed.Add(1)
	e.bytes.Add(o.BytesReceived)
	failed := o.Failed()
	if failed {
		e.failed.Add(1)
	}
	tally(&e.tallyMu, e.statusClasses, o.StatusClass()).Add(1)
	e.bucketStore.RecordIteration(failed)
}

// RecordAbandoned counts iterations that were still in flight when the
// drain timeout elapsed.
func (e *Engine) RecordAbandoned(n int64) {
	if n > 0 {
		e.abandoned.Add(n)
	}
}

// RecordCheck records one evaluation of a named check.
func (e *Engine) RecordCheck(name string, passed bool) {
	e.tallyMu.RLock()
	c, ok := e.checks[name]
	e.tallyMu.RUnlock()

	if !ok {
		e.tallyMu.Lock()
		if c, ok = e.checks[name]; !ok {
			c = &checkCounter{}
			e.checks[name] = c
		}
		e.tallyMu.Unlock()
	}

	if passed {
		c.passes.Add(1)
	} else {
		c.fails.Add(1)
	}
}

// tally returns the counter for k, creating it on first use.
func tally[K comparable](mu *sync.RWMutex, m map[K]*atomic.Int64, k K) *atomic.Int64 {
	mu.RLock()
	c, ok := m[k]
	mu.RUnlock()
	if ok {
		return c
	}

	mu.Lock()
	defer mu.Unlock()
	if c, ok = m[k]; !ok {
		c = &atomic.Int64{}
		m[k] = c
	}
	return c
}

func (e *Engine) recordRequestHistogram(name string, latencyMicros int64) {
	e.requestHistsMu.Lock()
	defer e.requestHistsMu.Unlock()

	hist, exists := e.requestHists[name]
	if !exists {
		hist = hdrhistogram.New(e.config.HistogramMin, e.config.HistogramMax, e.config.HistogramSigFigs)
		e.requestHists[name] = hist
	}
	_ = hist.RecordValue(latencyMicros)
}

// SetState moves the run to state. Transitions only go forward; a repeated
// or backward transition is ignored and reported as false.
func (e *Engine) SetState(state RunState) bool {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()

	if state <= RunState(e.state.Load()) {
		return false
	}

	now := time.Now()
	if state == StateRunning {
		e.startTime = now
	}
	e.state.Store(int32(state))
	e.stateHistory = append(e.stateHistory, StateChange{
		State:     state,
		Timestamp: now,
		Arrivals:  e.arrivals.Load(),
	})
	return true
}

// State returns the current run state.
func (e *Engine) State() RunState {
	return RunState(e.state.Load())
}

// GetStateHistory returns the transitions so far, starting with pending.
func (e *Engine) GetStateHistory() []StateChange {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()

	result := make([]StateChange, len(e.stateHistory))
	copy(result, e.stateHistory)
	return result
}

// SetPoolSize updates the allocated VU count.
func (e *Engine) SetPoolSize(n int) {
	e.poolSize.Store(int32(n))
}

// SetBusyVUs updates the busy VU count.
func (e *Engine) SetBusyVUs(n int) {
	e.busyVUs.Store(int32(n))
}

func (e *Engine) runEmitter() {
	defer e.emitterWg.Done()

	ticker := time.NewTicker(e.config.BucketInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.emitterCtx.Done():
			return
		case <-ticker.C:
			e.emitBucket()
		}
	}
}

func (e *Engine) emitBucket() {
	e.bucketStore.CreateBucket(*e.GetSnapshot(), e.GetLatencyPercentiles())
}

// GetLatencyPercentiles returns current latency percentiles.
func (e *Engine) GetLatencyPercentiles() LatencyPercentiles {
	e.latencyHistMu.Lock()
	defer e.latencyHistMu.Unlock()

	return LatencyPercentiles{
		Min: time.Duration(e.latencyHist.Min()) * time.Microsecond,
		Max: time.Duration(e.latencyHist.Max()) * time.Microsecond,
		P50: time.Duration(e.latencyHist.ValueAtQuantile(50)) * time.Microsecond,
		P90: time.Duration(e.latencyHist.ValueAtQuantile(90)) * time.Microsecond,
		P95: time.Duration(e.latencyHist.ValueAtQuantile(95)) * time.Microsecond,
		P99: time.Duration(e.latencyHist.ValueAtQuantile(99)) * time.Microsecond,
	}
}

func latencyStats(h *hdrhistogram.Histogram) LatencyStats {
	return LatencyStats{
		Min:    time.Duration(h.Min()) * time.Microsecond,
		Max:    time.Duration(h.Max()) * time.Microsecond,
		Mean:   time.Duration(h.Mean()) * time.Microsecond,
		StdDev: time.Duration(h.StdDev()) * time.Microsecond,
		P50:    time.Duration(h.ValueAtQuantile(50)) * time.Microsecond,
		P90:    time.Duration(h.ValueAtQuantile(90)) * time.Microsecond,
		P95:    time.Duration(h.ValueAtQuantile(95)) * time.Microsecond,
		P99:    time.Duration(h.ValueAtQuantile(99)) * time.Microsecond,
		Count:  h.TotalCount(),
	}
}

// GetSnapshot returns a point-in-time view of the run.
func (e *Engine) GetSnapshot() *Snapshot {
	e.latencyHistMu.Lock()
	lat := latencyStats(e.latencyHist)
	e.latencyHistMu.Unlock()

	e.stateMu.Lock()
	start := e.startTime
	e.stateMu.Unlock()

	now := time.Now()
	elapsed := now.Sub(start)
	completed := e.completed.Load()

	rate := 0.0
	if elapsed.Seconds() > 0 {
		rate = float64(completed) / elapsed.Seconds()
	}

	return &Snapshot{
		Arrivals:        e.arrivals.Load(),
		Started:         e.started.Load(),
		Completed:       completed,
		Failed:          e.failed.Load(),
		Dropped:         e.dropped.Load(),
		Abandoned:       e.abandoned.Load(),
		DroppedByReason: e.droppedByReason(),
		Checks:          e.checkSummaries(),
		BytesReceived:   e.bytes.Load(),
		Latency:         lat,
		IterationRate:   rate,
		PoolSize:        int(e.poolSize.Load()),
		BusyVUs:         int(e.busyVUs.Load()),
		State:           e.State(),
		Elapsed:         elapsed,
		StartTime:       start,
		Timestamp:       now,
	}
}

func (e *Engine) droppedByReason() map[DropReason]int64 {
	e.tallyMu.RLock()
	defer e.tallyMu.RUnlock()

	result := make(map[DropReason]int64, len(e.droppedBy))
	for reason, c := range e.droppedBy {
		result[reason] = c.Load()
	}
	return result
}

func (e *Engine) statusClassCounts() map[string]int64 {
	e.tallyMu.RLock()
	defer e.tallyMu.RUnlock()

	result := make(map[string]int64, len(e.statusClasses))
	for class, c := range e.statusClasses {
		result[class] = c.Load()
	}
	return result
}

// checkSummaries returns per-check tallies sorted by name.
func (e *Engine) checkSummaries() []CheckSummary {
	e.tallyMu.RLock()
	result := make([]CheckSummary, 0, len(e.checks))
	for name, c := range e.checks {
		cs := CheckSummary{Name: name, Passes: c.passes.Load(), Fails: c.fails.Load()}
		if total := cs.Total(); total > 0 {
			cs.PassRate = float64(cs.Passes) / float64(total)
		}
		result = append(result, cs)
	}
	e.tallyMu.RUnlock()

	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// GetTimeSeries returns all time-series buckets.
func (e *Engine) GetTimeSeries() []*TimeBucket {
	return e.bucketStore.GetBuckets()
}

// GetRequestStats returns latency statistics per request name.
func (e *Engine) GetRequestStats() map[string]LatencyStats {
	e.requestHistsMu.RLock()
	defer e.requestHistsMu.RUnlock()

	result := make(map[string]LatencyStats, len(e.requestHists))
	for name, hist := range e.requestHists {
		result[name] = latencyStats(hist)
	}
	return result
}

// Stop stops the background emitter and emits a final bucket. It is safe to
// call more than once.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		e.emitterCancel()
		e.emitterWg.Wait()
		e.emitBucket()
	})
}

// Finalize stops the engine and freezes the run into a Summary. Later calls
// return the same Summary; records made after Finalize are not reflected.
func (e *Engine) Finalize() *Summary {
	e.finalizeOnce.Do(func() {
		e.Stop()

		e.stateMu.Lock()
		e.endTime = time.Now()
		e.stateMu.Unlock()

		e.summary = e.buildSummary()
	})
	return e.summary
}
