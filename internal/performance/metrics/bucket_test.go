package metrics

import (
	"testing"
)

func TestTimeBucketStore_Intervals(t *testing.T) {
	store := NewTimeBucketStore(10)

	store.RecordIteration(false)
	store.RecordIteration(true)
	store.RecordDrop()

	b := store.CreateBucket(Snapshot{Completed: 2, Failed: 1, Dropped: 1, State: StateRunning}, LatencyPercentiles{})
	if b.IntervalCompleted != 2 {
		t.Errorf("IntervalCompleted = %d, want 2", b.IntervalCompleted)
	}
	if b.IntervalDropped != 1 {
		t.Errorf("IntervalDropped = %d, want 1", b.IntervalDropped)
	}
	if b.IntervalFailureRate != 0.5 {
		t.Errorf("IntervalFailureRate = %v, want 0.5", b.IntervalFailureRate)
	}

	// accumulators reset after each bucket
	b = store.CreateBucket(Snapshot{Completed: 2, State: StateDraining}, LatencyPercentiles{})
	if b.IntervalCompleted != 0 || b.IntervalDropped != 0 {
		t.Errorf("second bucket not reset: %+v", b)
	}
}

func TestTimeBucketStore_RingBuffer(t *testing.T) {
	store := NewTimeBucketStore(3)

	for i := int64(1); i <= 5; i++ {
		store.CreateBucket(Snapshot{Arrivals: i}, LatencyPercentiles{})
	}

	if store.Count() != 3 {
		t.Fatalf("Count = %d, want 3", store.Count())
	}

	buckets := store.GetBuckets()
	for i, want := range []int64{3, 4, 5} {
		if buckets[i].Arrivals != want {
			t.Errorf("buckets[%d].Arrivals = %d, want %d", i, buckets[i].Arrivals, want)
		}
	}
	if latest := store.GetLatestBucket(); latest.Arrivals != 5 {
		t.Errorf("latest Arrivals = %d, want 5", latest.Arrivals)
	}
}

func TestTimeBucketStore_SteadyStateRate(t *testing.T) {
	store := NewTimeBucketStore(10)

	if rate, n := store.SteadyStateRate(); rate != 0 || n != 0 {
		t.Errorf("empty store rate = %v over %d buckets", rate, n)
	}

	store.CreateBucket(Snapshot{State: StatePending}, LatencyPercentiles{})
	store.CreateBucket(Snapshot{State: StateRunning}, LatencyPercentiles{})
	store.CreateBucket(Snapshot{State: StateRunning}, LatencyPercentiles{})
	store.CreateBucket(Snapshot{State: StateDraining}, LatencyPercentiles{})

	if _, n := store.SteadyStateRate(); n != 2 {
		t.Errorf("steady buckets = %d, want 2", n)
	}
	if got := len(store.GetBucketsForState(StateDraining)); got != 1 {
		t.Errorf("draining buckets = %d, want 1", got)
	}
}
