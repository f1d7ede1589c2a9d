package performance

import (
	"sync"
	"sync/atomic"
)

// VUPool is a bounded, elastic set of Virtual Users.
//
// The pool starts with PreAllocated idle VUs and grows lazily, one VU per
// Acquire call that finds no idle VU, until Max VUs exist. It never shrinks
// during a run. Acquire never blocks: when every VU is busy and the pool is
// at Max, it fails with ErrPoolExhausted so the arrival clock is never held
// back by slow iterations.
//
// # Thread Safety
//
// Idle VUs are parked in a buffered channel sized to Max, so hand-off is
// lock-free. Growth is serialized by a mutex.
type VUPool struct {
	idle chan *VirtualUser

	all   []*VirtualUser
	allMu sync.Mutex

	max  int
	size atomic.Int32
	busy atomic.Int32

	onGrow func(size int)
}

// NewVUPool creates a pool and eagerly spawns preAllocated VUs.
//
// Returns a *ConfigError if the bounds are invalid.
func NewVUPool(preAllocated, max int) (*VUPool, error) {
	if max <= 0 {
		return nil, &ConfigError{Field: "maxVUs", Message: "maxVUs must be > 0"}
	}
	if preAllocated < 0 {
		return nil, &ConfigError{Field: "preAllocatedVUs", Message: "preAllocatedVUs must be >= 0"}
	}
	if preAllocated > max {
		return nil, &ConfigError{Field: "preAllocatedVUs", Message: "preAllocatedVUs must be <= maxVUs"}
	}

	p := &VUPool{
		idle: make(chan *VirtualUser, max),
		all:  make([]*VirtualUser, 0, max),
		max:  max,
	}

	p.allMu.Lock()
	for i := 0; i < preAllocated; i++ {
		p.idle <- p.spawnLocked()
	}
	p.allMu.Unlock()

	return p, nil
}

// OnGrow registers a callback invoked with the new pool size every time a
// VU is spawned lazily. Must be set before the pool is shared.
func (p *VUPool) OnGrow(fn func(size int)) {
	p.onGrow = fn
}

// spawnLocked creates a new VU. Caller must hold allMu.
func (p *VUPool) spawnLocked() *VirtualUser {
	vu := NewVirtualUser(len(p.all) + 1)
	p.all = append(p.all, vu)
	p.size.Store(int32(len(p.all)))
	return vu
}

// Acquire borrows a VU from the pool.
//
// It returns an idle VU if one exists, otherwise spawns a new one while the
// pool is below Max. If the pool is at Max and every VU is busy it returns
// ErrPoolExhausted immediately.
func (p *VUPool) Acquire() (*VirtualUser, error) {
	// Fast path: an idle VU is parked
	select {
	case vu := <-p.idle:
		return p.checkout(vu), nil
	default:
	}

	p.allMu.Lock()
	if len(p.all) < p.max {
		vu := p.spawnLocked()
		size := len(p.all)
		p.allMu.Unlock()

		if p.onGrow != nil {
			p.onGrow(size)
		}
		return p.checkout(vu), nil
	}
	p.allMu.Unlock()

	// At max: a VU may have been released since the fast path
	select {
	case vu := <-p.idle:
		return p.checkout(vu), nil
	default:
		return nil, ErrPoolExhausted
	}
}

func (p *VUPool) checkout(vu *VirtualUser) *VirtualUser {
	// Parked VUs are always idle; a failed CAS means the pool was corrupted
	// by an outside caller flipping state.
	if !vu.markBusy() {
		panic("performance: pooled virtual user was not idle")
	}
	p.busy.Add(1)
	return vu
}

// Release returns a borrowed VU to the pool.
//
// Returns ErrVUNotBusy if the VU is not currently borrowed, which makes a
// second release of the same acquisition an error instead of a duplicate
// pool entry.
func (p *VUPool) Release(vu *VirtualUser) error {
	if vu == nil {
		return ErrVUNotBusy
	}
	if !vu.markIdle() {
		return ErrVUNotBusy
	}
	p.busy.Add(-1)

	// Capacity equals Max and at most Max VUs exist, so this never blocks.
	p.idle <- vu
	return nil
}

// Size returns the number of VUs created so far.
func (p *VUPool) Size() int {
	return int(p.size.Load())
}

// Busy returns the number of VUs currently borrowed.
func (p *VUPool) Busy() int {
	return int(p.busy.Load())
}

// Idle returns the number of VUs currently parked.
func (p *VUPool) Idle() int {
	return len(p.idle)
}

// Max returns the hard upper bound on pool size.
func (p *VUPool) Max() int {
	return p.max
}

// VUs returns a snapshot of every VU the pool has created.
func (p *VUPool) VUs() []*VirtualUser {
	p.allMu.Lock()
	defer p.allMu.Unlock()

	out := make([]*VirtualUser, len(p.all))
	copy(out, p.all)
	return out
}
