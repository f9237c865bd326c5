package sched

import "time"

// Tick is the once-per-millisecond maintenance pass. The timer driver must
// call it exactly once per elapsed tick and never reentrantly; the pass is
// expected to complete well inside one tick interval.
//
// Per tick: the millisecond counter is advanced, the analog scan ring is
// serviced by exactly one channel, and every digital-range slot is run
// through the single-slot evaluation for its debounce side effects (the
// fired result is deliberately discarded — timer-range slots advance only
// through Check).
func (s *Scheduler) Tick() {
	if !s.ready.Load() {
		return
	}
	now := s.ticks.Add(1)

	if n := uint8(s.numAnalog.Load()); n > 0 {
		// Collect the conversion started one tick ago, then start the
		// next channel so its result is ready when the ring comes back.
		s.analog[s.cursor].Store(uint32(s.adc.ReadResult()))
		s.cursor++
		if s.cursor >= n {
			s.cursor = 0
		}
		s.adc.StartConversion(s.cursor)
	}

	cnt := int(s.count.Load())
	for i := 0; i < cnt; i++ {
		sl := &s.slots[i]
		if Classify(sl.id, s.maxDigitalPin) == KindDigital {
			s.eval(sl, now)
		}
	}
}

// eval is the single-slot evaluation shared by Tick and Check. It reports
// whether the slot just fired.
func (s *Scheduler) eval(sl *slot, now uint32) bool {
	if !sl.active.Load() {
		return false
	}
	at := sl.fireAt.Load()
	if at > now {
		return false
	}

	// Timed out. A recurring period of 0 keeps the slot firing every tick
	// and turns the pass into a debounce bypass: the raw level is taken
	// as settled immediately, while transition counting and the change
	// flag keep working without filter latency.
	bypass := false
	if sl.recurring.Load() {
		if p := sl.period.Load(); p == 0 {
			bypass = true
			sl.fireAt.Store(now + 1)
		} else {
			sl.fireAt.Store(at + p)
		}
	} else {
		sl.active.Store(false) // one-shot consumed
	}

	if Classify(sl.id, s.maxDigitalPin) == KindDigital {
		s.debounce(sl, s.pins.ReadPin(sl.id), bypass)
	}
	return true
}

// debounce steps the slot's hysteresis filter with one raw sample: an
// integer accumulator stands in for an analog low-pass filter and the trip
// logic for a Schmitt trigger. One step per tick; bypass forces the
// accumulator straight to the extreme for the sampled level.
func (s *Scheduler) debounce(sl *slot, raw, bypass bool) {
	if raw {
		if bypass {
			sl.acc.Store(debounceCeil)
		} else {
			sl.acc.Add(1)
		}
		if sl.acc.Load() > debounceRise {
			sl.acc.Store(debounceCeil)
			if !sl.settled.Load() {
				sl.changed.Store(true)
				bumpSaturating(&sl.ups)
			}
			sl.settled.Store(true)
		}
	} else {
		if bypass {
			sl.acc.Store(debounceFloor)
		} else {
			sl.acc.Add(-1)
		}
		if sl.acc.Load() < debounceFall {
			sl.acc.Store(debounceFloor)
			if sl.settled.Load() {
				sl.changed.Store(true)
				bumpSaturating(&sl.downs)
			}
			sl.settled.Store(false)
		}
	}
	sl.lastRaw.Store(raw)
}

// run is the built-in tick driver, armed once by Init.
func (s *Scheduler) run() {
	defer close(s.stopped)
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-s.quit:
			return
		case <-t.C:
			s.Tick()
		}
	}
}

// Stop shuts the built-in tick driver down and waits for the in-flight
// pass, if any, to finish. Safe to call more than once, and a no-op when
// no driver was armed.
func (s *Scheduler) Stop() {
	if s.quit == nil {
		return
	}
	s.stopOnce.Do(func() { close(s.quit) })
	<-s.stopped
}
