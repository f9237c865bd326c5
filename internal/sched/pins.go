package sched

// pinTest consumes the slot's unconsumed-transition flag and inspects the
// settled level. In edge mode (edge=true) it reports whether the consumed
// change landed on the requested level; in level mode it returns the
// settled level itself. The flag is consumed in both modes: a level query
// still eats a pending edge. Inactive slots report false without touching
// the flag.
func pinTest(sl *slot, level, edge bool) bool {
	if sl == nil || !sl.active.Load() {
		return false
	}

	changed := sl.changed.Swap(false)
	settled := sl.settled.Load()

	if !edge {
		return settled
	}
	return changed && settled == level
}

// PinGoHigh reports a settled LOW-to-HIGH transition on the identifier.
// Each real transition is reported at most once; the underlying change
// flag is consumed by the call. Unknown identifiers report false.
func (s *Scheduler) PinGoHigh(id uint8) bool {
	return pinTest(s.lookup(id), true, true)
}

// PinGoLow reports a settled HIGH-to-LOW transition on the identifier,
// consuming the change flag. Unknown identifiers report false.
func (s *Scheduler) PinGoLow(id uint8) bool {
	return pinTest(s.lookup(id), false, true)
}

// PinLevel returns the current settled (debounced) level of the
// identifier. The level argument is accepted for signature parity with the
// edge accessors and does not affect the result. Note that PinLevel also
// consumes the pending change flag, so interleaving it with PinGoHigh or
// PinGoLow can swallow an edge. Unknown identifiers report false.
func (s *Scheduler) PinLevel(id uint8, level bool) bool {
	return pinTest(s.lookup(id), level, false)
}
