package executor

import "sync/atomic"

// concurrencyGate caps simultaneous requests to one provider. Acquisition
// never blocks: a full gate is reported immediately so the caller can fail
// over instead of queueing.
type concurrencyGate struct {
	limit   atomic.Int64
	current atomic.Int64
}

// newConcurrencyGate creates a gate. A limit of zero or less means
// unlimited.
func newConcurrencyGate(limit int64) *concurrencyGate {
	g := &concurrencyGate{}
	g.limit.Store(limit)
	return g
}

// TryAcquire claims a slot, reporting false when the gate is full.
func (g *concurrencyGate) TryAcquire() bool {
	limit := g.limit.Load()
	for {
		current := g.current.Load()
		if limit > 0 && current >= limit {
			return false
		}
		if g.current.CompareAndSwap(current, current+1) {
			return true
		}
	}
}

// Release frees a slot claimed by TryAcquire.
func (g *concurrencyGate) Release() {
	if g.current.Add(-1) < 0 {
		// Unbalanced release; clamp rather than go negative.
		g.current.Store(0)
	}
}

// Current returns the number of claimed slots.
func (g *concurrencyGate) Current() int64 {
	return g.current.Load()
}

// SetLimit adjusts the cap. In-flight requests above a lowered cap are
// allowed to finish; only new acquisitions see the new limit.
func (g *concurrencyGate) SetLimit(limit int64) {
	g.limit.Store(limit)
}
