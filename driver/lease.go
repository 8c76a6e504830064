package driver

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// LeaseRegistry grants the exclusive per-channel lease required by spec.md
// §5: at most one round in flight per channelAddress, while different
// channels advance concurrently. Grounded on htlcswitch/switch.go's
// linkIndex — a map keyed by channel identifier guarded by a single mutex —
// generalized from "the link handling this channel" to "the mutex
// serializing rounds on this channel".
type LeaseRegistry struct {
	mu     sync.Mutex
	leases map[common.Address]*sync.Mutex
}

// NewLeaseRegistry returns an empty registry.
func NewLeaseRegistry() *LeaseRegistry {
	return &LeaseRegistry{leases: make(map[common.Address]*sync.Mutex)}
}

// Acquire blocks until the exclusive lease for addr is held, then returns a
// function that releases it. Concurrent callers for the same address wait
// behind the holder and never preempt it (spec.md §5); the order in which
// waiting callers obtain the lease is that of sync.Mutex, which is not FIFO.
func (r *LeaseRegistry) Acquire(addr common.Address) (release func()) {
	r.mu.Lock()
	lease, ok := r.leases[addr]
	if !ok {
		lease = &sync.Mutex{}
		r.leases[addr] = lease
	}
	r.mu.Unlock()

	lease.Lock()
	return lease.Unlock
}
