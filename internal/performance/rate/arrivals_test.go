package rate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock advances only when the scheduler sleeps or the test says so.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.Advance(d)
	ch := make(chan time.Time, 1)
	ch <- c.Now()
	return ch
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestScheduler(clock *fakeClock, rate float64, timeUnit, duration, catchUp time.Duration) *ArrivalScheduler {
	s := NewArrivalScheduler(rate, timeUnit, duration, catchUp)
	s.now = clock.Now
	s.after = clock.After
	s.Start(clock.Now())
	return s
}

func drain(t *testing.T, s *ArrivalScheduler) []Arrival {
	t.Helper()
	var out []Arrival
	for {
		a, err := s.Next(context.Background())
		if err == ErrScheduleComplete {
			return out
		}
		require.NoError(t, err)
		out = append(out, a)
		if len(out) > 10000 {
			t.Fatal("schedule never completed")
		}
	}
}

func TestNewArrivalScheduler_Defaults(t *testing.T) {
	s := NewArrivalScheduler(0, 0, time.Second, 0)

	assert.Equal(t, time.Second, s.Interval())
	assert.Equal(t, DefaultCatchUpWindow, s.catchUp)
	assert.True(t, s.StartTime().IsZero())
	assert.True(t, s.Deadline().IsZero())
}

func TestArrivalScheduler_Expected(t *testing.T) {
	tests := []struct {
		name     string
		rate     float64
		timeUnit time.Duration
		duration time.Duration
		want     int64
	}{
		{"5/s for 2s", 5, time.Second, 2 * time.Second, 10},
		{"5/s for 1s", 5, time.Second, time.Second, 5},
		{"3/s for 1s", 3, time.Second, time.Second, 3},
		{"10/min for 1m", 10, time.Minute, time.Minute, 10},
		{"2.5/s for 1s", 2.5, time.Second, time.Second, 3},
		{"1/s for 1.5s", 1, time.Second, 1500 * time.Millisecond, 2},
		{"zero duration", 5, time.Second, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewArrivalScheduler(tt.rate, tt.timeUnit, tt.duration, 0)
			assert.Equal(t, tt.want, s.Expected())
		})
	}
}

func TestArrivalScheduler_OnSchedule(t *testing.T) {
	clock := newFakeClock()
	start := clock.Now()
	s := newTestScheduler(clock, 5, time.Second, 2*time.Second, 0)

	arrivals := drain(t, s)
	require.Len(t, arrivals, 10)

	for i, a := range arrivals {
		assert.Equal(t, int64(i), a.Seq)
		assert.Equal(t, time.Duration(i)*200*time.Millisecond, a.Offset)
		assert.Equal(t, start.Add(a.Offset), a.Scheduled)
		assert.Zero(t, a.Lag)
		assert.False(t, a.Missed, "arrival %d", i)
	}

	// Next holds until the deadline before reporting completion
	assert.Equal(t, start.Add(2*time.Second), clock.Now())

	stats := s.Stats()
	assert.Equal(t, int64(10), stats.Generated)
	assert.Equal(t, int64(0), stats.Missed)
	assert.Equal(t, 200*time.Millisecond, stats.Interval)
}

func TestArrivalScheduler_CatchUpAfterStall(t *testing.T) {
	clock := newFakeClock()
	s := newTestScheduler(clock, 10, time.Second, 2*time.Second, 250*time.Millisecond)

	first, err := s.Next(context.Background())
	require.NoError(t, err)
	assert.False(t, first.Missed)

	// The consumer stalls for a second; arrivals 1..10 are now overdue
	clock.Advance(time.Second)

	arrivals := drain(t, s)
	require.Len(t, arrivals, 19, "overdue arrivals are emitted, not skipped")

	var missed []int64
	for _, a := range arrivals {
		if a.Missed {
			missed = append(missed, a.Seq)
		}
	}
	// Lag for seq n is 1s - n*100ms; anything over 250ms is missed
	assert.Equal(t, []int64{1, 2, 3, 4, 5, 6, 7}, missed)

	stats := s.Stats()
	assert.Equal(t, int64(20), stats.Generated)
	assert.Equal(t, int64(7), stats.Missed)
	assert.Equal(t, 900*time.Millisecond, stats.MaxLag)
}

func TestArrivalScheduler_PastDeadlineIsMissed(t *testing.T) {
	clock := newFakeClock()
	s := newTestScheduler(clock, 5, time.Second, time.Second, 10*time.Second)

	_, err := s.Next(context.Background())
	require.NoError(t, err)

	clock.Advance(5 * time.Second)

	arrivals := drain(t, s)
	require.Len(t, arrivals, 4)
	for _, a := range arrivals {
		assert.True(t, a.Missed, "seq %d dispatched after the deadline", a.Seq)
	}
	assert.Equal(t, s.Expected(), s.Stats().Generated)
}

func TestArrivalScheduler_ContextCancelled(t *testing.T) {
	clock := newFakeClock()
	s := newTestScheduler(clock, 5, time.Second, time.Second, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int64(0), s.Stats().Generated)
}

func TestArrivalScheduler_StartIsIdempotent(t *testing.T) {
	clock := newFakeClock()
	s := newTestScheduler(clock, 5, time.Second, time.Second, 0)
	first := s.StartTime()

	s.Start(first.Add(time.Hour))
	assert.Equal(t, first, s.StartTime())
	assert.Equal(t, first.Add(time.Second), s.Deadline())
}

func TestArrivalScheduler_RealClock(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping real-time test in short mode")
	}

	s := NewArrivalScheduler(50, time.Second, 200*time.Millisecond, 0)
	start := time.Now()
	s.Start(start)

	var count int
	for {
		_, err := s.Next(context.Background())
		if err == ErrScheduleComplete {
			break
		}
		require.NoError(t, err)
		count++
	}

	assert.Equal(t, 10, count)
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
}
