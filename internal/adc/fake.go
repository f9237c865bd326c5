package adc

import "sync"

// FakeConverter is a test double with settable per-channel values and the
// same one-conversion-deep pipeline shape as the real hardware.
type FakeConverter struct {
	mu      sync.Mutex
	values  map[uint8]uint16
	pending uint8

	// Starts records every StartConversion call in order.
	Starts []uint8
}

// NewFakeConverter creates a FakeConverter with every channel at 0.
func NewFakeConverter() *FakeConverter {
	return &FakeConverter{values: make(map[uint8]uint16)}
}

// Set scripts the value a channel converts to.
func (f *FakeConverter) Set(channel uint8, value uint16) {
	f.mu.Lock()
	f.values[channel] = value
	f.mu.Unlock()
}

// StartConversion records the pending channel.
func (f *FakeConverter) StartConversion(channel uint8) {
	f.mu.Lock()
	f.pending = channel
	f.Starts = append(f.Starts, channel)
	f.mu.Unlock()
}

// ReadResult returns the scripted value for the pending channel.
func (f *FakeConverter) ReadResult() uint16 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values[f.pending]
}
