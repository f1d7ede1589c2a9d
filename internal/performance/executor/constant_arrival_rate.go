package executor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/apex/log"
	"github.com/pkg/errors"

	"github.com/prreview/loadgen/internal/performance"
	"github.com/prreview/loadgen/internal/performance/check"
	"github.com/prreview/loadgen/internal/performance/metrics"
	"github.com/prreview/loadgen/internal/performance/rate"
)

// ConstantArrivalRate maintains a fixed iteration rate (open model).
//
// Iterations are scheduled at a constant rate regardless of how long each
// one takes. Each arrival borrows a VU from a bounded pool; when the pool is
// at MaxVUs and every VU is busy the arrival is dropped rather than queued,
// so a slow target shows up as dropped iterations instead of a slower
// request rate.
//
// Example:
//
//	config:
//	  type: constant-arrival-rate
//	  rate: 5                # 5 iterations
//	  timeUnit: 1s           # per second
//	  duration: 2m
//	  preAllocatedVUs: 10
//	  maxVUs: 20
//
// # Lifecycle
//
// Run moves the metrics engine through pending → running → draining →
// completed. Draining starts when the arrival window closes; it ends when
// every in-flight iteration has finished or GracefulStop elapses. Iterations
// still running at that point are abandoned: their context is cancelled,
// they are counted once as abandoned, and whatever they return later is
// discarded.
type ConstantArrivalRate struct {
	config *Config

	scenario performance.Scenario
	checks   []check.Check
	metrics  *metrics.Engine

	pool     *performance.VUPool
	arrivals *rate.ArrivalScheduler

	// In-flight iterations, tracked until their outcome is recorded
	inflightMu sync.Mutex
	inflight   map[*iteration]struct{}
	wg         sync.WaitGroup

	// Closed when draining starts; cuts think time short
	stopping chan struct{}

	startTime  time.Time
	iterations atomic.Int64
	running    atomic.Bool

	cancelMu   sync.Mutex
	cancelFunc context.CancelFunc

	mu     sync.RWMutex
	logger log.Interface
}

// iteration is one admitted arrival. settled flips exactly once, either when
// the outcome is recorded or when the drain timeout abandons it.
type iteration struct {
	vu       *performance.VirtualUser
	settled  atomic.Bool
	recorded chan struct{}
}

// NewConstantArrivalRate creates a new constant arrival rate executor.
func NewConstantArrivalRate() *ConstantArrivalRate {
	return &ConstantArrivalRate{}
}

// Type returns the executor type.
func (e *ConstantArrivalRate) Type() Type {
	return TypeConstantArrivalRate
}

// Init validates config and applies defaults.
func (e *ConstantArrivalRate) Init(ctx context.Context, config *Config) error {
	if config == nil {
		return &performance.ConfigError{Message: "executor config is required"}
	}
	if config.Type != "" && config.Type != TypeConstantArrivalRate {
		return &performance.ConfigError{
			Field:   "type",
			Message: "expected " + string(TypeConstantArrivalRate) + ", got " + string(config.Type),
		}
	}
	if err := config.Validate(); err != nil {
		return err
	}

	cfg := config.WithDefaults()

	e.mu.Lock()
	e.config = &cfg
	e.logger = log.WithFields(log.Fields{
		"scenario": cfg.Name,
		"executor": string(cfg.Type),
	})
	e.mu.Unlock()
	return nil
}

// Run drives the arrival loop and blocks until the run has completed.
//
// Cancelling ctx closes the arrival window early; the run still drains and
// completes normally. Run only returns an error when the executor was not
// initialized or the VU pool cannot be built.
func (e *ConstantArrivalRate) Run(ctx context.Context, scenario performance.Scenario, checks []check.Check, m *metrics.Engine) error {
	if e.config == nil {
		return errors.New("executor not initialized")
	}
	if scenario == nil {
		return &performance.ConfigError{Field: "scenario", Message: "scenario is required"}
	}
	if m == nil {
		return errors.New("metrics engine is required")
	}

	pool, err := performance.NewVUPool(e.config.PreAllocatedVUs, e.config.MaxVUs)
	if err != nil {
		return err
	}
	pool.OnGrow(func(size int) {
		m.SetPoolSize(size)
		e.logger.WithField("vus", size).Debug("grew VU pool")
	})

	e.mu.Lock()
	e.scenario = scenario
	e.checks = checks
	e.metrics = m
	e.pool = pool
	e.arrivals = rate.NewArrivalScheduler(e.config.Rate, e.config.TimeUnit, e.config.Duration, e.config.CatchUpWindow)
	e.inflight = make(map[*iteration]struct{})
	e.stopping = make(chan struct{})
	e.mu.Unlock()

	// The arrival window ends at the deadline or on Stop; iterations outlive
	// it and are only cancelled when abandoned.
	arrivalCtx, cancel := context.WithCancel(ctx)
	e.cancelMu.Lock()
	e.cancelFunc = cancel
	e.cancelMu.Unlock()
	defer cancel()

	iterCtx, abandon := context.WithCancel(context.WithoutCancel(ctx))
	defer abandon()

	m.SetPoolSize(pool.Size())

	e.mu.Lock()
	e.startTime = time.Now()
	e.mu.Unlock()
	e.arrivals.Start(e.startTime)
	e.running.Store(true)
	m.SetState(metrics.StateRunning)

	e.logger.WithFields(log.Fields{
		"rate":            e.config.Rate,
		"timeUnit":        e.config.TimeUnit,
		"duration":        e.config.Duration,
		"preAllocatedVUs": e.config.PreAllocatedVUs,
		"maxVUs":          e.config.MaxVUs,
		"expected":        e.arrivals.Expected(),
	}).Info("run started")

	e.schedule(arrivalCtx, iterCtx)

	m.SetState(metrics.StateDraining)
	e.logger.WithField("inFlight", e.inFlight()).Debug("draining")

	abandoned := e.drain(e.config.GracefulStop)
	if abandoned > 0 {
		m.RecordAbandoned(abandoned)
		e.logger.WithError(performance.ErrDrainTimeout).
			WithField("abandoned", abandoned).
			Warn("abandoned in-flight iterations")
	}
	abandon()

	m.SetBusyVUs(pool.Busy())
	m.SetState(metrics.StateCompleted)
	e.running.Store(false)

	e.logger.WithFields(log.Fields{
		"iterations": e.iterations.Load(),
		"abandoned":  abandoned,
		"vus":        pool.Size(),
	}).Info("run completed")

	return nil
}

// schedule is the single arrival clock. It never waits on iterations.
func (e *ConstantArrivalRate) schedule(arrivalCtx, iterCtx context.Context) {
	for {
		arrival, err := e.arrivals.Next(arrivalCtx)
		if err != nil {
			if !errors.Is(err, rate.ErrScheduleComplete) {
				e.logger.WithError(err).Debug("arrival window closed early")
			}
			return
		}

		e.metrics.RecordArrival()

		if arrival.Missed {
			e.metrics.RecordDropped(metrics.DropMissedDeadline)
			e.logger.WithFields(log.Fields{
				"seq": arrival.Seq,
				"lag": arrival.Lag,
			}).Debug("dropped missed arrival")
			continue
		}

		vu, err := e.pool.Acquire()
		if err != nil {
			e.metrics.RecordDropped(metrics.DropPoolExhausted)
			e.logger.WithField("seq", arrival.Seq).Debug("dropped arrival, pool exhausted")
			continue
		}

		e.metrics.RecordStarted()
		e.metrics.SetBusyVUs(e.pool.Busy())

		it := &iteration{vu: vu, recorded: make(chan struct{})}
		e.track(it)

		e.wg.Add(1)
		go e.runIteration(iterCtx, it)
	}
}

// runIteration runs one iteration on its borrowed VU.
func (e *ConstantArrivalRate) runIteration(ctx context.Context, it *iteration) {
	defer e.wg.Done()
	defer e.release(it.vu)

	outcome := e.perform(ctx, it.vu)

	if !it.settled.CompareAndSwap(false, true) {
		// Abandoned by the drain timeout; the result is discarded
		return
	}

	check.Evaluate(outcome, e.checks, e.metrics)
	e.metrics.RecordCompleted(outcome)
	e.iterations.Add(1)

	e.untrack(it)
	close(it.recorded)

	e.think(ctx)
}

// perform calls the scenario, turning a panic into a failed outcome and
// filling in what the scenario left unset.
func (e *ConstantArrivalRate) perform(ctx context.Context, vu *performance.VirtualUser) (outcome *performance.Outcome) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			e.logger.WithFields(log.Fields{
				"vu":    vu.ID,
				"panic": r,
			}).Warn("iteration panicked")
			outcome = &performance.Outcome{Err: errors.Errorf("iteration panicked: %v", r)}
		}

		if outcome == nil {
			outcome = &performance.Outcome{}
		}
		if outcome.Latency == 0 {
			outcome.Latency = time.Since(start)
		}
		if outcome.StartTime.IsZero() {
			outcome.StartTime = start
		}
		outcome.VUID = vu.ID
		outcome.Iteration = vu.GetIteration()
	}()

	return e.scenario.PerformIteration(ctx, vu)
}

// think holds the VU for the configured think time. Draining cuts it short.
func (e *ConstantArrivalRate) think(ctx context.Context) {
	if e.config.ThinkTime <= 0 {
		return
	}

	timer := time.NewTimer(e.config.ThinkTime)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-e.stopping:
	case <-ctx.Done():
	}
}

func (e *ConstantArrivalRate) release(vu *performance.VirtualUser) {
	if err := e.pool.Release(vu); err != nil {
		e.logger.WithError(err).WithField("vu", vu.ID).Error("release failed")
		return
	}
	e.metrics.SetBusyVUs(e.pool.Busy())
}

func (e *ConstantArrivalRate) track(it *iteration) {
	e.inflightMu.Lock()
	e.inflight[it] = struct{}{}
	e.inflightMu.Unlock()
}

func (e *ConstantArrivalRate) untrack(it *iteration) {
	e.inflightMu.Lock()
	delete(e.inflight, it)
	e.inflightMu.Unlock()
}

func (e *ConstantArrivalRate) inFlight() int {
	e.inflightMu.Lock()
	defer e.inflightMu.Unlock()
	return len(e.inflight)
}

// drain waits for in-flight iterations for up to timeout and returns how
// many it had to abandon.
func (e *ConstantArrivalRate) drain(timeout time.Duration) int64 {
	close(e.stopping)

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		return 0
	case <-timer.C:
	}

	var (
		abandoned int64
		recording []chan struct{}
	)

	e.inflightMu.Lock()
	for it := range e.inflight {
		if it.settled.CompareAndSwap(false, true) {
			abandoned++
			delete(e.inflight, it)
		} else {
			// Finished just before the timeout and is being recorded
			recording = append(recording, it.recorded)
		}
	}
	e.inflightMu.Unlock()

	for _, ch := range recording {
		<-ch
	}

	return abandoned
}

// GetProgress returns progress through the arrival window (0.0 to 1.0).
func (e *ConstantArrivalRate) GetProgress() float64 {
	e.mu.RLock()
	start := e.startTime
	e.mu.RUnlock()

	if !e.running.Load() {
		if start.IsZero() {
			return 0.0
		}
		return 1.0
	}

	progress := float64(time.Since(start)) / float64(e.config.Duration)
	if progress > 1.0 {
		progress = 1.0
	}
	return progress
}

// GetActiveVUs returns the number of allocated VUs.
func (e *ConstantArrivalRate) GetActiveVUs() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.pool == nil {
		return 0
	}
	return e.pool.Size()
}

// GetStats returns executor statistics.
func (e *ConstantArrivalRate) GetStats() *Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	stats := &Stats{
		StartTime:   e.startTime,
		CurrentTime: time.Now(),
		Iterations:  e.iterations.Load(),
	}
	if !e.startTime.IsZero() {
		stats.Elapsed = time.Since(e.startTime)
	}
	if e.config != nil {
		stats.TotalDuration = e.config.Duration
		stats.MaxVUs = e.config.MaxVUs
		stats.TargetRate = e.config.Rate
		stats.TimeUnit = e.config.TimeUnit
	}
	if e.pool != nil {
		stats.PoolSize = e.pool.Size()
		stats.BusyVUs = e.pool.Busy()
	}
	if e.arrivals != nil {
		stats.Schedule = e.arrivals.Stats()
	}
	if e.inflight != nil {
		stats.InFlight = e.inFlight()
	}
	return stats
}

// Stop closes the arrival window early. Run drains and returns as usual.
func (e *ConstantArrivalRate) Stop(ctx context.Context) error {
	e.cancelMu.Lock()
	defer e.cancelMu.Unlock()
	if e.cancelFunc != nil {
		e.cancelFunc()
	}
	return nil
}

var _ Executor = (*ConstantArrivalRate)(nil)
