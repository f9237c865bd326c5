package sched

import "testing"

// pinMap is a scripted PinReader whose levels tests flip between ticks.
type pinMap struct {
	levels map[uint8]bool
}

func newPinMap() *pinMap {
	return &pinMap{levels: make(map[uint8]bool)}
}

func (p *pinMap) ReadPin(id uint8) bool { return p.levels[id] }

func (p *pinMap) set(id uint8, level bool) { p.levels[id] = level }

// fakeADC models the one-conversion-deep pipeline: ReadResult returns the
// scripted value for the channel whose conversion was last started.
type fakeADC struct {
	values  map[uint8]uint16
	pending uint8
	starts  []uint8
}

func newFakeADC() *fakeADC {
	return &fakeADC{values: make(map[uint8]uint16)}
}

func (a *fakeADC) StartConversion(ch uint8) {
	a.pending = ch
	a.starts = append(a.starts, ch)
}

func (a *fakeADC) ReadResult() uint16 { return a.values[a.pending] }

func newTestScheduler(t *testing.T, pins *pinMap, adc *fakeADC, analogs uint8) *Scheduler {
	t.Helper()
	opts := Options{}
	if pins != nil {
		opts.Pins = pins
	}
	if adc != nil {
		opts.ADC = adc
	}
	s := New(opts)
	s.Init(analogs)
	return s
}

func tickN(s *Scheduler, n int) {
	for i := 0; i < n; i++ {
		s.Tick()
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		id   uint8
		max  uint8
		want Kind
	}{
		{0, 13, KindDigital},
		{13, 13, KindDigital},
		{14, 13, KindTimer},
		{200, 13, KindTimer},
		{5, 5, KindDigital},
		{6, 5, KindTimer},
	}
	for _, tt := range tests {
		if got := Classify(tt.id, tt.max); got != tt.want {
			t.Errorf("Classify(%d, %d) = %v, want %v", tt.id, tt.max, got, tt.want)
		}
	}
}

func TestScheduleReusesSlot(t *testing.T) {
	s := newTestScheduler(t, nil, nil, 0)

	if !s.Schedule(20, true, 10) {
		t.Fatal("first Schedule failed")
	}
	if got := s.count.Load(); got != 1 {
		t.Fatalf("table size = %d, want 1", got)
	}

	// Generate some history, then re-register: same slot, counters reset.
	sl := s.lookup(20)
	sl.ups.Store(3)
	sl.downs.Store(4)

	if !s.Schedule(20, false, 25) {
		t.Fatal("re-register failed")
	}
	if got := s.count.Load(); got != 1 {
		t.Errorf("table size after re-register = %d, want 1", got)
	}
	if got := s.PinEventCount(20, true, false); got != 0 {
		t.Errorf("up count after re-register = %d, want 0", got)
	}
	if got := s.PinEventCount(20, false, false); got != 0 {
		t.Errorf("down count after re-register = %d, want 0", got)
	}
}

func TestScheduleCapacityExhausted(t *testing.T) {
	s := newTestScheduler(t, nil, nil, 0)

	for i := 0; i < DefaultCapacity; i++ {
		if !s.Schedule(uint8(20+i), true, 5) {
			t.Fatalf("Schedule #%d failed below capacity", i)
		}
	}
	if s.Schedule(99, true, 5) {
		t.Error("Schedule succeeded past capacity")
	}
	if got := s.count.Load(); got != DefaultCapacity {
		t.Errorf("table size = %d, want %d", got, DefaultCapacity)
	}

	// Reusing an existing id still works with a full table.
	if !s.Schedule(20, false, 7) {
		t.Error("re-register failed on full table")
	}
}

func TestOneShotFiresExactlyOnce(t *testing.T) {
	s := newTestScheduler(t, nil, nil, 0)
	s.Schedule(20, false, 5)

	tickN(s, 4)
	if s.Check(20) {
		t.Error("fired one tick early")
	}
	s.Tick()
	if !s.Check(20) {
		t.Error("did not fire at now+period")
	}
	if s.Check(20) {
		t.Error("one-shot fired a second time")
	}
	tickN(s, 100)
	if s.Check(20) {
		t.Error("consumed one-shot fired again later")
	}
}

func TestRecurringFiresEveryPeriod(t *testing.T) {
	s := newTestScheduler(t, nil, nil, 0)
	s.Schedule(20, true, 50)

	tickN(s, 49)
	if s.Check(20) {
		t.Error("fired at tick 49")
	}
	s.Tick()
	if !s.Check(20) {
		t.Error("did not fire at tick 50")
	}
	if got := s.lookup(20).fireAt.Load(); got != 100 {
		t.Errorf("next fire time = %d, want 100", got)
	}
	tickN(s, 49)
	if s.Check(20) {
		t.Error("fired at tick 99")
	}
	s.Tick()
	if !s.Check(20) {
		t.Error("did not fire at tick 100")
	}
}

func TestTimerAdvancesOnlyViaCheck(t *testing.T) {
	s := newTestScheduler(t, nil, nil, 0)
	s.Schedule(20, true, 1)

	// Ticks alone never evaluate a timer-range slot: the first Check
	// after a long gap still observes the original fire time.
	tickN(s, 10)
	if got := s.lookup(20).fireAt.Load(); got != 1 {
		t.Fatalf("fire time moved to %d without Check", got)
	}
	if !s.Check(20) {
		t.Error("overdue timer did not fire on Check")
	}
	if got := s.lookup(20).fireAt.Load(); got != 2 {
		t.Errorf("fire time after Check = %d, want 2", got)
	}
}

func TestCancelDeactivatesInPlace(t *testing.T) {
	s := newTestScheduler(t, nil, nil, 0)
	s.Schedule(20, true, 5)
	tickN(s, 5)
	if !s.Check(20) {
		t.Fatal("timer did not fire")
	}

	if !s.Cancel(20) {
		t.Fatal("Cancel failed")
	}
	if got := s.count.Load(); got != 1 {
		t.Errorf("table size after Cancel = %d, want 1 (slot retained)", got)
	}
	tickN(s, 100)
	if s.Check(20) {
		t.Error("canceled timer fired")
	}

	// Reactivation reuses the dormant slot.
	if !s.Schedule(20, false, 3) {
		t.Fatal("reactivation failed")
	}
	tickN(s, 3)
	if !s.Check(20) {
		t.Error("reactivated timer did not fire")
	}
}

func TestCancelPreservesCounts(t *testing.T) {
	pins := newPinMap()
	s := newTestScheduler(t, pins, nil, 0)

	s.Schedule(3, true, 1)
	pins.set(3, true)
	tickN(s, 20) // ramp up and trip
	if got := s.PinEventCount(3, true, false); got != 1 {
		t.Fatalf("up count before cancel = %d, want 1", got)
	}

	s.Cancel(3)
	if got := s.PinEventCount(3, true, false); got != 1 {
		t.Errorf("up count after cancel = %d, want 1 (history preserved)", got)
	}
}

func TestUnknownIdentifierQueries(t *testing.T) {
	s := newTestScheduler(t, nil, nil, 0)

	if s.Check(42) {
		t.Error("Check on unknown id returned true")
	}
	if got := s.PinEventCount(42, true, false); got != 0 {
		t.Errorf("PinEventCount on unknown id = %d, want 0", got)
	}
	if s.PinGoHigh(42) || s.PinGoLow(42) {
		t.Error("edge accessor on unknown id returned true")
	}
	if s.PinLevel(42, true) {
		t.Error("PinLevel on unknown id returned true")
	}
}

func TestAnalogRingRoundRobin(t *testing.T) {
	adc := newFakeADC()
	adc.values[0] = 100
	adc.values[1] = 200
	adc.values[2] = 300
	s := newTestScheduler(t, nil, adc, 3)

	// Init primes channel 0; each tick collects the pending conversion
	// and starts the next channel.
	s.Tick()
	if got := s.AnalogRead(0); got != 100 {
		t.Errorf("channel 0 after tick 1 = %d, want 100", got)
	}
	s.Tick()
	if got := s.AnalogRead(1); got != 200 {
		t.Errorf("channel 1 after tick 2 = %d, want 200", got)
	}
	s.Tick()
	if got := s.AnalogRead(2); got != 300 {
		t.Errorf("channel 2 after tick 3 = %d, want 300", got)
	}

	// Channel 0's stored value refreshes once every 3 ticks.
	adc.values[0] = 111
	s.Tick() // collects channel 0 again
	if got := s.AnalogRead(0); got != 111 {
		t.Errorf("channel 0 after tick 4 = %d, want 111", got)
	}

	wantStarts := []uint8{0, 1, 2, 0, 1}
	if len(adc.starts) != len(wantStarts) {
		t.Fatalf("conversion starts = %v, want %v", adc.starts, wantStarts)
	}
	for i, ch := range wantStarts {
		if adc.starts[i] != ch {
			t.Fatalf("conversion starts = %v, want %v", adc.starts, wantStarts)
		}
	}
}

func TestAnalogReadOutOfRange(t *testing.T) {
	adc := newFakeADC()
	adc.values[0] = 500
	s := newTestScheduler(t, nil, adc, 2)
	tickN(s, 2)

	if got := s.AnalogRead(2); got != 0 {
		t.Errorf("AnalogRead(2) with 2 channels = %d, want 0", got)
	}
	if got := s.AnalogRead(200); got != 0 {
		t.Errorf("AnalogRead(200) = %d, want 0", got)
	}
}

func TestAnalogChannelCountClamped(t *testing.T) {
	s := newTestScheduler(t, nil, newFakeADC(), 50)
	if got := s.numAnalog.Load(); got != MaxAnalogChannels {
		t.Errorf("channel count = %d, want clamped to %d", got, MaxAnalogChannels)
	}
}

func TestNoADCReadsZero(t *testing.T) {
	s := newTestScheduler(t, nil, nil, 3)
	tickN(s, 10)
	for ch := uint8(0); ch < 3; ch++ {
		if got := s.AnalogRead(ch); got != 0 {
			t.Errorf("channel %d without hardware = %d, want 0", ch, got)
		}
	}
}

func TestTickBeforeInitIsInert(t *testing.T) {
	s := New(Options{})
	s.Tick()
	if got := s.Now(); got != 0 {
		t.Errorf("tick count advanced to %d before Init", got)
	}
}

func TestInitResetsTable(t *testing.T) {
	pins := newPinMap()
	s := newTestScheduler(t, pins, nil, 0)
	s.Schedule(3, true, 1)
	pins.set(3, true)
	tickN(s, 20)

	s.Init(0)
	if got := s.count.Load(); got != 0 {
		t.Errorf("table size after Init = %d, want 0", got)
	}
	if got := s.PinEventCount(3, true, false); got != 0 {
		t.Errorf("up count survived Init: %d", got)
	}
	if s.Check(3) {
		t.Error("Check found a slot after Init")
	}
}

// Scenario from the scheduler's contract: id 7 as a plain timer needs a
// digital-pin bound below it.
func TestTimerScenarioNarrowDigitalRange(t *testing.T) {
	s := New(Options{MaxDigitalPin: 5})
	s.Init(2)

	if !s.Schedule(7, true, 50) {
		t.Fatal("Schedule failed")
	}
	tickN(s, 49)
	if s.Check(7) {
		t.Error("fired at tick 49")
	}
	s.Tick()
	if !s.Check(7) {
		t.Error("did not fire at tick 50")
	}
	if got := s.lookup(7).fireAt.Load(); got != 100 {
		t.Errorf("next fire time = %d, want 100", got)
	}
}
