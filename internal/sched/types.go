// Package sched implements a millisecond-granularity preemptive event
// scheduler for digital and analog input pins. Foreground code registers
// one-shot or recurring timers keyed by small integer identifiers;
// identifiers in the digital-pin range are debounced automatically by a
// once-per-tick maintenance pass, and a configurable ring of analog
// channels is sampled in the background so foreground reads never block
// on conversion latency.
//
// This package has NO external dependencies. Hardware is consumed through
// the PinReader and Converter interfaces so the scheduler can be driven
// entirely by fakes in tests.
//
// Concurrency model: all foreground API calls must come from a single
// goroutine. Tick (and the optional built-in driver that calls it) may run
// on a second goroutine and can interleave with foreground calls at any
// point. Fields shared across that boundary are sync/atomic values,
// partitioned into tick-owned fields (the debounce accumulator, the
// transition counters, the analog ring values) and foreground-owned fields
// (registration parameters). The two transition counters additionally use
// the stable-read/reset-with-carry protocol in PinEventCount so no
// increment is ever lost to a concurrently landing tick. There are no
// locks anywhere in this package; the tick pass must finish well inside
// one tick interval and never blocks.
package sched

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// PinReader reads the raw, unfiltered level of a digital input pin.
// Implementations must be non-blocking.
type PinReader interface {
	ReadPin(id uint8) bool
}

// Converter drives a one-conversion-deep ADC pipeline. StartConversion
// begins sampling a channel; ReadResult returns the result of the
// previously started conversion. Both must return without waiting: the
// driver has a full tick to finish a conversion before its result is
// collected.
type Converter interface {
	StartConversion(channel uint8)
	ReadResult() uint16
}

const (
	// DefaultCapacity is the number of event slots when Options.Capacity
	// is zero. The table never grows past its capacity.
	DefaultCapacity = 10

	// DefaultMaxDigitalPin is the highest identifier treated as a
	// digital-input channel when Options.MaxDigitalPin is zero.
	DefaultMaxDigitalPin = 13

	// MaxAnalogChannels bounds the analog scan ring.
	MaxAnalogChannels = 6
)

// Debounce filter constants: an integer accumulator stepped once per tick
// feeding a simulated Schmitt trigger. Rising and falling trip points
// differ so the settled level cannot chatter near the midpoint.
const (
	debounceRise  = 15
	debounceFall  = 5
	debounceCeil  = 20
	debounceFloor = 0
)

// counterMax is the saturation ceiling for the transition counters.
const counterMax = math.MaxUint16

// Kind classifies an identifier.
type Kind int

const (
	// KindDigital identifiers are debounced digital-input channels,
	// evaluated automatically on every tick.
	KindDigital Kind = iota
	// KindTimer identifiers are plain timers, advanced only by Check.
	KindTimer
)

// Classify reports how an identifier is treated given the configured
// digital-pin bound. Identifiers in [0, maxDigitalPin] are digital-input
// channels; everything above is a plain timer.
func Classify(id, maxDigitalPin uint8) Kind {
	if id <= maxDigitalPin {
		return KindDigital
	}
	return KindTimer
}

// slot is one entry in the fixed-capacity event table. A slot is never
// removed once allocated: cancellation deactivates it in place and a later
// registration for the same identifier reuses it, preserving its counters
// and settled level in between.
//
// id is written before the slot is published through the table count and
// is never rewritten afterwards, so the tick pass may read it plainly.
// Everything else that crosses the tick boundary is atomic.
type slot struct {
	id uint8

	active    atomic.Bool
	recurring atomic.Bool
	fireAt    atomic.Uint32 // absolute tick of the next firing
	period    atomic.Uint32 // recurrence interval in ticks

	lastRaw atomic.Bool  // last raw sample observed
	acc     atomic.Int32 // debounce accumulator, debounceFloor..debounceCeil
	settled atomic.Bool  // filtered level
	changed atomic.Bool  // unconsumed-transition flag

	ups   atomic.Uint32 // settled LOW->HIGH transitions since last reset
	downs atomic.Uint32 // settled HIGH->LOW transitions since last reset
}

// Options configures a Scheduler. The zero value of every field has a
// usable default; a nil PinReader reads every pin as LOW and a nil
// Converter stores 0 for every analog channel.
type Options struct {
	Pins PinReader
	ADC  Converter

	// Capacity is the fixed event-table size (default DefaultCapacity).
	Capacity int

	// MaxDigitalPin is the highest digital-channel identifier
	// (default DefaultMaxDigitalPin).
	MaxDigitalPin uint8

	// TickInterval, when positive, arms a built-in driver goroutine on
	// the first Init call that invokes Tick at this interval. Leave zero
	// to drive Tick externally (tests, custom timer sources).
	TickInterval time.Duration
}

// Scheduler is the explicit scheduler context: the event table, the analog
// scan ring and the tick counter. Create one with New, reset it with Init.
type Scheduler struct {
	pins          PinReader
	adc           Converter
	maxDigitalPin uint8
	interval      time.Duration

	// ready gates the tick pass while Init rewrites state.
	ready atomic.Bool
	ticks atomic.Uint32 // millisecond counter; wraps after ~49.7 days
	count atomic.Int32  // published slots in the table
	slots []slot

	numAnalog atomic.Uint32
	analog    [MaxAnalogChannels]atomic.Uint32
	cursor    uint8 // analog ring cursor, tick-owned

	armOnce  sync.Once
	stopOnce sync.Once
	quit     chan struct{}
	stopped  chan struct{}
}

// noopPins reads every pin as LOW.
type noopPins struct{}

func (noopPins) ReadPin(uint8) bool { return false }

// noopADC models absent conversion hardware: every result is 0.
type noopADC struct{}

func (noopADC) StartConversion(uint8) {}
func (noopADC) ReadResult() uint16    { return 0 }
