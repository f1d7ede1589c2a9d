// Package performance holds the building blocks shared by the load engine:
// virtual users, the pool that owns them, iteration outcomes and the
// scenario capability that executors drive.
package performance

import (
	"sync"
	"sync/atomic"
	"time"
)

// VUState represents the lifecycle state of a Virtual User.
type VUState int32

const (
	// VUStateIdle indicates the VU is parked in the pool.
	VUStateIdle VUState = iota
	// VUStateBusy indicates the VU is borrowed for an iteration.
	VUStateBusy
)

func (s VUState) String() string {
	switch s {
	case VUStateIdle:
		return "idle"
	case VUStateBusy:
		return "busy"
	default:
		return "unknown"
	}
}

// VirtualUser is a reusable execution slot that performs one scenario
// iteration at a time.
//
// A VU is owned by the VUPool that created it. Executors borrow it with
// Acquire and hand it back with Release. Each VU carries its own variable
// scope so scenarios can keep state (for example ids they created) across
// iterations on the same slot.
type VirtualUser struct {
	// Unique ordinal for this VU (1-based)
	ID int

	// Lifecycle state (atomic for lock-free reads)
	state atomic.Int32

	// Iteration counter, incremented on every acquisition
	iteration atomic.Int64

	// Per-VU variable scope
	data   map[string]interface{}
	dataMu sync.RWMutex

	createdAt time.Time
}

// NewVirtualUser creates an idle Virtual User with the given ordinal.
func NewVirtualUser(id int) *VirtualUser {
	return &VirtualUser{
		ID:        id,
		data:      make(map[string]interface{}),
		createdAt: time.Now(),
	}
}

// GetState returns the current VU state.
func (vu *VirtualUser) GetState() VUState {
	return VUState(vu.state.Load())
}

// GetIteration returns the number of iterations this VU has started.
func (vu *VirtualUser) GetIteration() int64 {
	return vu.iteration.Load()
}

// CreatedAt returns when the pool spawned this VU.
func (vu *VirtualUser) CreatedAt() time.Time {
	return vu.createdAt
}

// markBusy transitions idle -> busy. It reports false if the VU was not idle.
func (vu *VirtualUser) markBusy() bool {
	if !vu.state.CompareAndSwap(int32(VUStateIdle), int32(VUStateBusy)) {
		return false
	}
	vu.iteration.Add(1)
	return true
}

// markIdle transitions busy -> idle. It reports false if the VU was not busy.
func (vu *VirtualUser) markIdle() bool {
	return vu.state.CompareAndSwap(int32(VUStateBusy), int32(VUStateIdle))
}

// SetData stores a value in the VU's variable scope.
func (vu *VirtualUser) SetData(key string, value interface{}) {
	vu.dataMu.Lock()
	defer vu.dataMu.Unlock()
	vu.data[key] = value
}

// GetData retrieves a value from the VU's variable scope.
func (vu *VirtualUser) GetData(key string) (interface{}, bool) {
	vu.dataMu.RLock()
	defer vu.dataMu.RUnlock()
	val, ok := vu.data[key]
	return val, ok
}

// ClearData removes a value from the VU's variable scope.
func (vu *VirtualUser) ClearData(key string) {
	vu.dataMu.Lock()
	defer vu.dataMu.Unlock()
	delete(vu.data, key)
}

// DataSnapshot returns a copy of the VU's variable scope.
func (vu *VirtualUser) DataSnapshot() map[string]interface{} {
	vu.dataMu.RLock()
	defer vu.dataMu.RUnlock()

	out := make(map[string]interface{}, len(vu.data))
	for k, v := range vu.data {
		out[k] = v
	}
	return out
}
