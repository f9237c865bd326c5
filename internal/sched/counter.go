package sched

import "sync/atomic"

// PinEventCount returns the number of settled transitions on the
// identifier since the last reset: the up-count when level is HIGH (true),
// the down-count otherwise. Unknown identifiers read as 0.
//
// The counters are incremented by the tick pass, which can land at any
// point during this call, so the value is taken with the stable-read
// protocol: re-read until two consecutive reads agree. At most one tick
// can land per attempt, so the loop settles almost immediately.
//
// With reset, the selected counter is cleared — unless a tick bumped it
// again after the read stabilized, in which case it is set to 1 rather
// than 0 so the freshly observed transition carries over to the next
// query instead of being silently dropped.
func (s *Scheduler) PinEventCount(id uint8, level, reset bool) uint16 {
	sl := s.lookup(id)
	if sl == nil {
		return 0
	}

	c := &sl.downs
	if level {
		c = &sl.ups
	}

	stable := stableLoad(c)
	if reset {
		resetWithCarry(c, stable)
	}
	return uint16(stable)
}

// resetWithCarry clears the counter, unless it no longer holds the
// stabilized value — then a tick slipped in between the read and the
// reset, and its increment is handed to the next lookup as a 1.
func resetWithCarry(c *atomic.Uint32, stable uint32) {
	if !c.CompareAndSwap(stable, 0) {
		c.Store(1)
	}
}

// stableLoad reads the counter until two consecutive reads agree.
func stableLoad(c *atomic.Uint32) uint32 {
	for {
		v := c.Load()
		if c.Load() == v {
			return v
		}
	}
}

// bumpSaturating increments a transition counter, saturating at
// counterMax. CAS keeps a concurrent reset-with-carry from being
// overwritten by the increment.
func bumpSaturating(c *atomic.Uint32) {
	for {
		v := c.Load()
		if v >= counterMax {
			return
		}
		if c.CompareAndSwap(v, v+1) {
			return
		}
	}
}
