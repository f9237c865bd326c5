package sched

// New creates a Scheduler with an empty event table. Call Init before use.
func New(opts Options) *Scheduler {
	if opts.Pins == nil {
		opts.Pins = noopPins{}
	}
	if opts.ADC == nil {
		opts.ADC = noopADC{}
	}
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.MaxDigitalPin == 0 {
		opts.MaxDigitalPin = DefaultMaxDigitalPin
	}
	return &Scheduler{
		pins:          opts.Pins,
		adc:           opts.ADC,
		maxDigitalPin: opts.MaxDigitalPin,
		interval:      opts.TickInterval,
		slots:         make([]slot, opts.Capacity),
	}
}

// Init resets the event table and the analog scan ring, clamps the channel
// count to MaxAnalogChannels, and arms the built-in tick driver if one was
// requested. Arming happens at most once per Scheduler even when Init is
// called repeatedly; later calls only reset state.
//
// Init may be called while the driver is armed: the ready gate is lowered
// first so at most one already in-flight tick pass can overlap the reset,
// and that pass observes the table count from before it was cleared.
func (s *Scheduler) Init(numAnalogChannels uint8) {
	s.ready.Store(false)
	s.count.Store(0)

	for i := range s.slots {
		sl := &s.slots[i]
		sl.id = 0
		sl.active.Store(false)
		sl.recurring.Store(false)
		sl.fireAt.Store(0)
		sl.period.Store(0)
		sl.lastRaw.Store(false)
		sl.acc.Store(debounceFloor)
		sl.settled.Store(false)
		sl.changed.Store(false)
		sl.ups.Store(0)
		sl.downs.Store(0)
	}

	if numAnalogChannels > MaxAnalogChannels {
		numAnalogChannels = MaxAnalogChannels
	}
	s.numAnalog.Store(uint32(numAnalogChannels))
	for i := range s.analog {
		s.analog[i].Store(0)
	}
	s.cursor = 0
	if numAnalogChannels > 0 {
		// Prime the pipeline so the first tick collects a real result.
		s.adc.StartConversion(0)
	}

	if s.interval > 0 {
		s.armOnce.Do(func() {
			s.quit = make(chan struct{})
			s.stopped = make(chan struct{})
			go s.run()
		})
	}

	s.ready.Store(true)
}

// Now returns the current tick count.
func (s *Scheduler) Now() uint32 {
	return s.ticks.Load()
}

// lookup returns the slot registered for id, or nil.
func (s *Scheduler) lookup(id uint8) *slot {
	n := int(s.count.Load())
	for i := 0; i < n; i++ {
		if s.slots[i].id == id {
			return &s.slots[i]
		}
	}
	return nil
}

// Schedule registers (or re-registers) the identifier. A slot already
// holding this id is reused in place; otherwise a new slot is allocated if
// capacity remains, else Schedule reports false and the table is
// unchanged. On success the next firing is now+periodMs, both transition
// counters are reset, and the slot is active. The recurring=false,
// periodMs=0 combination instead disables the slot, leaving it dormant
// with its counters and settled level intact.
//
// A digital-range identifier additionally has its debounce state snapped
// to the current raw pin level, so the settled level is correct
// immediately instead of ramping up over the next debounceRise ticks.
func (s *Scheduler) Schedule(id uint8, recurring bool, periodMs uint32) bool {
	now := s.ticks.Load()

	sl := s.lookup(id)
	isNew := sl == nil
	if isNew {
		n := int(s.count.Load())
		if n >= len(s.slots) {
			return false
		}
		sl = &s.slots[n]
		sl.id = id
	}

	// recurring=false with period 0 is the canonical disable path: the
	// slot goes dormant but keeps its counters, settled level and change
	// flag readable until the next real registration.
	disable := !recurring && periodMs == 0

	sl.period.Store(periodMs)
	sl.fireAt.Store(now + periodMs)
	sl.recurring.Store(recurring)
	sl.active.Store(!disable)
	if !disable {
		sl.ups.Store(0)
		sl.downs.Store(0)
	}

	if !disable && Classify(id, s.maxDigitalPin) == KindDigital {
		raw := s.pins.ReadPin(id)
		sl.lastRaw.Store(raw)
		sl.changed.Store(false)
		if raw {
			sl.acc.Store(debounceCeil)
			sl.settled.Store(true)
		} else {
			sl.acc.Store(debounceFloor)
			sl.settled.Store(false)
		}
	}

	if isNew {
		// Publish only after the slot is fully initialized.
		s.count.Add(1)
	}
	return true
}

// Cancel deactivates the identifier's slot without removing it, preserving
// its counters and settled level for a later re-registration.
func (s *Scheduler) Cancel(id uint8) bool {
	return s.Schedule(id, false, 0)
}

// Check manually polls one slot and reports whether it just fired. This is
// the only way timer-range identifiers advance; digital-range identifiers
// are also evaluated automatically every tick, and evaluating one twice in
// the same tick is harmless because the fire-time guard is idempotent once
// the time has been bumped past now. Unknown identifiers report false.
func (s *Scheduler) Check(id uint8) bool {
	sl := s.lookup(id)
	if sl == nil {
		return false
	}
	return s.eval(sl, s.ticks.Load())
}

// AnalogRead returns the most recently stored sample for the channel. It
// never blocks: the value comes straight out of the scan ring and may be
// up to N ticks old for an N-channel ring. Channels outside the configured
// ring read as 0.
func (s *Scheduler) AnalogRead(channel uint8) uint16 {
	if uint32(channel) >= s.numAnalog.Load() {
		return 0
	}
	return uint16(s.analog[channel].Load())
}
