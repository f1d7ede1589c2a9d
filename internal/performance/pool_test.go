package performance

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewVUPool_InvalidBounds(t *testing.T) {
	tests := []struct {
		name         string
		preAllocated int
		max          int
	}{
		{"zero max", 0, 0},
		{"negative pre-allocated", -1, 5},
		{"pre-allocated above max", 10, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewVUPool(tt.preAllocated, tt.max)
			require.Error(t, err)
			assert.True(t, IsConfigError(err))
		})
	}
}

func TestNewVUPool_PreAllocates(t *testing.T) {
	pool, err := NewVUPool(5, 20)
	require.NoError(t, err)

	assert.Equal(t, 5, pool.Size())
	assert.Equal(t, 5, pool.Idle())
	assert.Equal(t, 0, pool.Busy())
	assert.Equal(t, 20, pool.Max())

	for i, vu := range pool.VUs() {
		assert.Equal(t, i+1, vu.ID)
		assert.Equal(t, VUStateIdle, vu.GetState())
	}
}

func TestVUPool_AcquireReusesIdle(t *testing.T) {
	pool, err := NewVUPool(1, 3)
	require.NoError(t, err)

	vu, err := pool.Acquire()
	require.NoError(t, err)
	assert.Equal(t, VUStateBusy, vu.GetState())
	require.NoError(t, pool.Release(vu))

	again, err := pool.Acquire()
	require.NoError(t, err)
	assert.Same(t, vu, again)
	assert.Equal(t, 1, pool.Size(), "reuse must not grow the pool")
	assert.Equal(t, int64(2), again.GetIteration())
}

func TestVUPool_GrowsToMaxThenExhausts(t *testing.T) {
	pool, err := NewVUPool(1, 3)
	require.NoError(t, err)

	var grown []int
	pool.OnGrow(func(size int) { grown = append(grown, size) })

	var held []*VirtualUser
	for i := 0; i < 3; i++ {
		vu, err := pool.Acquire()
		require.NoError(t, err)
		held = append(held, vu)
	}
	assert.Equal(t, []int{2, 3}, grown)
	assert.Equal(t, 3, pool.Busy())

	_, err = pool.Acquire()
	assert.ErrorIs(t, err, ErrPoolExhausted)
	assert.Equal(t, 3, pool.Size(), "pool never exceeds max")

	require.NoError(t, pool.Release(held[1]))
	vu, err := pool.Acquire()
	require.NoError(t, err)
	assert.Same(t, held[1], vu)
}

func TestVUPool_ReleaseExactlyOnce(t *testing.T) {
	pool, err := NewVUPool(1, 1)
	require.NoError(t, err)

	vu, err := pool.Acquire()
	require.NoError(t, err)

	require.NoError(t, pool.Release(vu))
	assert.ErrorIs(t, pool.Release(vu), ErrVUNotBusy)
	assert.ErrorIs(t, pool.Release(nil), ErrVUNotBusy)
	assert.Equal(t, 1, pool.Idle())
	assert.Equal(t, 0, pool.Busy())
}

func TestVUPool_ConcurrentAcquireNeverDoubleAssigns(t *testing.T) {
	const max = 8
	pool, err := NewVUPool(2, max)
	require.NoError(t, err)

	var (
		owners   sync.Map // VU ID -> token
		maxBusy  atomic.Int32
		doubles  atomic.Int32
		acquired atomic.Int64
		wg       sync.WaitGroup
	)

	for g := 0; g < 32; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				vu, err := pool.Acquire()
				if err != nil {
					continue
				}
				acquired.Add(1)
				if _, loaded := owners.LoadOrStore(vu.ID, g); loaded {
					doubles.Add(1)
				}

				busy := int32(pool.Busy())
				for {
					cur := maxBusy.Load()
					if busy <= cur || maxBusy.CompareAndSwap(cur, busy) {
						break
					}
				}

				owners.Delete(vu.ID)
				if err := pool.Release(vu); err != nil {
					doubles.Add(1)
				}
			}
		}(g)
	}
	wg.Wait()

	assert.Zero(t, doubles.Load(), "a VU was handed to two owners")
	assert.LessOrEqual(t, int(maxBusy.Load()), max)
	assert.LessOrEqual(t, pool.Size(), max)
	assert.Equal(t, 0, pool.Busy())
	assert.Equal(t, pool.Size(), pool.Idle())
	assert.Positive(t, acquired.Load())
}
