package gpio

import "sync"

// FakeReader is a test double with settable pin levels. It is safe to set
// levels from a test goroutine while a tick driver reads concurrently.
type FakeReader struct {
	mu     sync.Mutex
	levels map[uint8]bool

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeReader creates a FakeReader with every pin LOW.
func NewFakeReader() *FakeReader {
	return &FakeReader{levels: make(map[uint8]bool)}
}

// Set drives the raw level of a pin.
func (f *FakeReader) Set(id uint8, level bool) {
	f.mu.Lock()
	f.levels[id] = level
	f.mu.Unlock()
}

// ReadPin returns the scripted level; unset pins read LOW.
func (f *FakeReader) ReadPin(id uint8) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.levels[id]
}

// Close marks the reader as closed.
func (f *FakeReader) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}
