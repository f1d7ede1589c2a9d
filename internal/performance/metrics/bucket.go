package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// TimeBucketStore stores time-bucketed run metrics in a ring buffer.
//
// Buckets are emitted on a fixed tick even when nothing completes, so the
// series stays continuous. The oldest bucket is overwritten once the buffer
// is full.
type TimeBucketStore struct {
	buckets    []*TimeBucket
	head       int // Next write position
	count      int
	maxBuckets int
	mu         sync.RWMutex

	lastBucketTime time.Time

	// Current interval accumulators
	currentCompleted atomic.Int64
	currentFailed    atomic.Int64
	currentDropped   atomic.Int64
}

// NewTimeBucketStore creates a new time bucket store.
//
// For a 1-hour run with 1-second buckets, use maxBuckets=3600.
func NewTimeBucketStore(maxBuckets int) *TimeBucketStore {
	if maxBuckets <= 0 {
		maxBuckets = 3600
	}

	return &TimeBucketStore{
		buckets:        make([]*TimeBucket, maxBuckets),
		maxBuckets:     maxBuckets,
		lastBucketTime: time.Now(),
	}
}

// RecordIteration counts a completed iteration into the current interval.
func (tbs *TimeBucketStore) RecordIteration(failed bool) {
	tbs.currentCompleted.Add(1)
	if failed {
		tbs.currentFailed.Add(1)
	}
}

// RecordDrop counts a dropped arrival into the current interval.
func (tbs *TimeBucketStore) RecordDrop() {
	tbs.currentDropped.Add(1)
}

// CreateBucket closes the current interval and appends a bucket built from
// the given cumulative totals.
func (tbs *TimeBucketStore) CreateBucket(totals Snapshot, latencies LatencyPercentiles) *TimeBucket {
	tbs.mu.Lock()
	defer tbs.mu.Unlock()

	now := time.Now()

	intervalCompleted := tbs.currentCompleted.Swap(0)
	intervalFailed := tbs.currentFailed.Swap(0)
	intervalDropped := tbs.currentDropped.Swap(0)

	intervalDuration := now.Sub(tbs.lastBucketTime).Seconds()
	if intervalDuration <= 0 {
		intervalDuration = 1.0
	}

	failureRate := 0.0
	if intervalCompleted > 0 {
		failureRate = float64(intervalFailed) / float64(intervalCompleted)
	}

	bucket := &TimeBucket{
		Timestamp:           now,
		Arrivals:            totals.Arrivals,
		Started:             totals.Started,
		Completed:           totals.Completed,
		Failed:              totals.Failed,
		Dropped:             totals.Dropped,
		IntervalCompleted:   intervalCompleted,
		IntervalDropped:     intervalDropped,
		IntervalRate:        float64(intervalCompleted) / intervalDuration,
		IntervalFailureRate: failureRate,
		LatencyP50:          latencies.P50,
		LatencyP90:          latencies.P90,
		LatencyP95:          latencies.P95,
		LatencyP99:          latencies.P99,
		LatencyMax:          latencies.Max,
		BusyVUs:             totals.BusyVUs,
		PoolSize:            totals.PoolSize,
		State:               totals.State,
	}

	tbs.buckets[tbs.head] = bucket
	tbs.head = (tbs.head + 1) % tbs.maxBuckets
	if tbs.count < tbs.maxBuckets {
		tbs.count++
	}
	tbs.lastBucketTime = now

	return bucket
}

// GetBuckets returns a copy of all buckets in chronological order.
func (tbs *TimeBucketStore) GetBuckets() []*TimeBucket {
	tbs.mu.RLock()
	defer tbs.mu.RUnlock()

	if tbs.count == 0 {
		return nil
	}

	result := make([]*TimeBucket, tbs.count)
	start := 0
	if tbs.count == tbs.maxBuckets {
		start = tbs.head
	}
	for i := 0; i < tbs.count; i++ {
		result[i] = tbs.buckets[(start+i)%tbs.maxBuckets]
	}

	return result
}

// GetBucketsForState returns the buckets emitted while the run was in state.
func (tbs *TimeBucketStore) GetBucketsForState(state RunState) []*TimeBucket {
	result := make([]*TimeBucket, 0)
	for _, b := range tbs.GetBuckets() {
		if b.State == state {
			result = append(result, b)
		}
	}
	return result
}

// GetLatestBucket returns the most recent bucket, or nil if none.
func (tbs *TimeBucketStore) GetLatestBucket() *TimeBucket {
	tbs.mu.RLock()
	defer tbs.mu.RUnlock()

	if tbs.count == 0 {
		return nil
	}
	return tbs.buckets[(tbs.head-1+tbs.maxBuckets)%tbs.maxBuckets]
}

// Count returns the current number of buckets stored.
func (tbs *TimeBucketStore) Count() int {
	tbs.mu.RLock()
	defer tbs.mu.RUnlock()
	return tbs.count
}

// SteadyStateRate averages the completion rate over buckets emitted while
// arrivals were running. The second value is the number of buckets used.
func (tbs *TimeBucketStore) SteadyStateRate() (float64, int) {
	running := tbs.GetBucketsForState(StateRunning)
	if len(running) == 0 {
		return 0, 0
	}

	var total float64
	for _, b := range running {
		total += b.IntervalRate
	}
	return total / float64(len(running)), len(running)
}
