// Package gpio provides raw digital input reading with hardware
// abstraction. The real implementation uses the Linux GPIO character
// device; the fake implementation allows testing without hardware.
//
// Readers return the raw, unfiltered line level; all debouncing happens in
// the scheduler core.
package gpio

// Reader reads raw GPIO input levels. It satisfies the scheduler's
// PinReader port.
type Reader interface {
	// ReadPin returns the raw level of the line mapped to the given
	// scheduler identifier. Must be non-blocking; a read failure reports
	// LOW.
	ReadPin(id uint8) bool

	// Close releases GPIO resources.
	Close() error
}

// DefaultChip is the GPIO character device on a Raspberry Pi.
const DefaultChip = "gpiochip0"
