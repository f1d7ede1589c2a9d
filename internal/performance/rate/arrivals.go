// Package rate provides the arrival clock for open-model load generation.
package rate

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

// DefaultCatchUpWindow is how late an arrival may be dispatched before it is
// reported as missed.
const DefaultCatchUpWindow = time.Second

// ErrScheduleComplete is returned by Next once every arrival before the
// deadline has been issued and the deadline itself has passed.
var ErrScheduleComplete = errors.New("arrival schedule complete")

// Arrival is one scheduled iteration start.
type Arrival struct {
	// Seq is the 0-based position in the schedule.
	Seq int64 `json:"seq"`

	// Offset is the scheduled time relative to the run start.
	Offset time.Duration `json:"offset"`

	// Scheduled is the absolute target dispatch time.
	Scheduled time.Time `json:"scheduled"`

	// Dispatched is when Next actually returned the arrival.
	Dispatched time.Time `json:"dispatched"`

	// Lag is Dispatched - Scheduled, never negative.
	Lag time.Duration `json:"lag"`

	// Missed is set when the arrival is overdue beyond the catch-up window
	// or was dispatched at or after the deadline. The caller must record it
	// as dropped instead of starting an iteration.
	Missed bool `json:"missed"`
}

// ArrivalScheduler issues arrivals at a fixed rate for a fixed duration.
//
// This is an open model: arrival n is due at n × (timeUnit / rate) after the
// start, no matter how long earlier iterations take. The offset is computed
// from n directly so rounding never accumulates.
//
// # Drift correction
//
// When the caller falls behind, overdue arrivals are returned back-to-back
// rather than skipped. An arrival whose lag exceeds the catch-up window, or
// that could only be dispatched once the deadline had passed, is still
// returned but flagged Missed, so every scheduled arrival is accounted for.
//
// # Termination
//
// Only offsets strictly below the duration are scheduled. After the last
// one, Next blocks until the deadline and then returns ErrScheduleComplete.
//
// Next must be called from a single goroutine; the scheduler is the one
// ticking source of truth for a run. Stats may be read concurrently.
type ArrivalScheduler struct {
	rate     float64
	timeUnit time.Duration
	duration time.Duration
	catchUp  time.Duration

	mu    sync.Mutex
	start time.Time
	next  int64

	now   func() time.Time
	after func(time.Duration) <-chan time.Time

	// Metrics
	generated atomic.Int64
	missed    atomic.Int64
	maxLag    atomic.Int64
}

// NewArrivalScheduler creates a scheduler.
//
// Parameters:
//   - rate: iterations per timeUnit (values <= 0 fall back to 1)
//   - timeUnit: the period rate is expressed in (<= 0 means one second)
//   - duration: length of the arrival window
//   - catchUpWindow: maximum tolerated dispatch lag (<= 0 means DefaultCatchUpWindow)
func NewArrivalScheduler(rate float64, timeUnit, duration, catchUpWindow time.Duration) *ArrivalScheduler {
	if rate <= 0 {
		rate = 1.0
	}
	if timeUnit <= 0 {
		timeUnit = time.Second
	}
	if catchUpWindow <= 0 {
		catchUpWindow = DefaultCatchUpWindow
	}
	return &ArrivalScheduler{
		rate:     rate,
		timeUnit: timeUnit,
		duration: duration,
		catchUp:  catchUpWindow,
		now:      time.Now,
		after:    time.After,
	}
}

// Start pins the run start time. Calling it more than once has no effect.
// If it is never called, the first call to Next starts the clock.
func (s *ArrivalScheduler) Start(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.start.IsZero() {
		s.start = t
	}
}

// StartTime returns the pinned start time (zero before the clock starts).
func (s *ArrivalScheduler) StartTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.start
}

// Deadline returns the time after which no arrival is admitted.
func (s *ArrivalScheduler) Deadline() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.start.IsZero() {
		return time.Time{}
	}
	return s.start.Add(s.duration)
}

// Interval returns the spacing between consecutive arrivals.
func (s *ArrivalScheduler) Interval() time.Duration {
	return time.Duration(float64(s.timeUnit) / s.rate)
}

// OffsetOf returns the scheduled offset of arrival n.
func (s *ArrivalScheduler) OffsetOf(n int64) time.Duration {
	return time.Duration(float64(n) * float64(s.timeUnit) / s.rate)
}

// Expected returns how many arrivals the full schedule contains.
func (s *ArrivalScheduler) Expected() int64 {
	if s.duration <= 0 {
		return 0
	}
	n := int64(math.Ceil(float64(s.duration) * s.rate / float64(s.timeUnit)))
	// Float rounding can put the estimate one step off either way
	for n > 0 && s.OffsetOf(n-1) >= s.duration {
		n--
	}
	for s.OffsetOf(n) < s.duration {
		n++
	}
	return n
}

// Next blocks until the next arrival is due and returns it.
//
// Returns ErrScheduleComplete once the schedule is exhausted and the
// deadline has passed, or ctx.Err() if the context is cancelled first.
func (s *ArrivalScheduler) Next(ctx context.Context) (Arrival, error) {
	s.mu.Lock()
	if s.start.IsZero() {
		s.start = s.now()
	}
	n := s.next
	start := s.start
	s.mu.Unlock()

	deadline := start.Add(s.duration)
	offset := s.OffsetOf(n)

	if offset >= s.duration {
		if err := s.waitUntil(ctx, deadline); err != nil {
			return Arrival{}, err
		}
		return Arrival{}, ErrScheduleComplete
	}

	target := start.Add(offset)
	if err := s.waitUntil(ctx, target); err != nil {
		return Arrival{}, err
	}

	now := s.now()
	lag := now.Sub(target)
	if lag < 0 {
		lag = 0
	}

	arrival := Arrival{
		Seq:        n,
		Offset:     offset,
		Scheduled:  target,
		Dispatched: now,
		Lag:        lag,
		Missed:     lag > s.catchUp || !now.Before(deadline),
	}

	s.mu.Lock()
	s.next = n + 1
	s.mu.Unlock()

	s.generated.Add(1)
	if arrival.Missed {
		s.missed.Add(1)
	}
	for {
		cur := s.maxLag.Load()
		if int64(lag) <= cur || s.maxLag.CompareAndSwap(cur, int64(lag)) {
			break
		}
	}

	return arrival, nil
}

// waitUntil sleeps until t or until ctx is done. A cancelled context wins
// even when t is already in the past.
func (s *ArrivalScheduler) waitUntil(ctx context.Context, t time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	wait := t.Sub(s.now())
	if wait <= 0 {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.after(wait):
		return nil
	}
}

// Stats returns statistics about the schedule so far.
func (s *ArrivalScheduler) Stats() ScheduleStats {
	return ScheduleStats{
		Rate:      s.rate,
		TimeUnit:  s.timeUnit,
		Interval:  s.Interval(),
		Expected:  s.Expected(),
		Generated: s.generated.Load(),
		Missed:    s.missed.Load(),
		MaxLag:    time.Duration(s.maxLag.Load()),
	}
}

// ScheduleStats contains statistics about an ArrivalScheduler.
type ScheduleStats struct {
	Rate      float64       `json:"rate"`      // Iterations per time unit
	TimeUnit  time.Duration `json:"timeUnit"`  // Period the rate is expressed in
	Interval  time.Duration `json:"interval"`  // Spacing between arrivals
	Expected  int64         `json:"expected"`  // Arrivals in the full schedule
	Generated int64         `json:"generated"` // Arrivals issued so far
	Missed    int64         `json:"missed"`    // Arrivals flagged Missed
	MaxLag    time.Duration `json:"maxLag"`    // Largest dispatch lag observed
}
