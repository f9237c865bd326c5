//go:build linux

package gpio

import (
	"fmt"
	"sync/atomic"

	"github.com/warthog618/go-gpiocdev"
)

// RealReader reads GPIO from actual hardware using the Linux GPIO
// character device. Lines are requested up front so ReadPin is a single
// ioctl with no allocation on the hot path.
type RealReader struct {
	chip  *gpiocdev.Chip
	lines map[uint8]*gpiocdev.Line

	readErrs atomic.Uint64
}

// NewRealReader opens the chip and requests the given BCM line offsets as
// inputs. The offsets double as the scheduler identifiers handed to
// ReadPin.
func NewRealReader(chipName string, pins []uint8) (*RealReader, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chipName, err)
	}

	r := &RealReader{chip: chip, lines: make(map[uint8]*gpiocdev.Line, len(pins))}
	for _, pin := range pins {
		if _, ok := r.lines[pin]; ok {
			continue
		}
		// Pull-down matches Pi boot defaults, so behavior is consistent
		// with externally wired optocoupler or switch modules.
		line, err := chip.RequestLine(int(pin), gpiocdev.AsInput, gpiocdev.WithPullDown)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("request pin %d: %w", pin, err)
		}
		r.lines[pin] = line
	}
	return r, nil
}

// ReadPin returns the raw level of the line. Unknown identifiers and read
// failures report LOW; failures are counted for the status page rather
// than surfaced, since the scheduler's tick pass cannot handle errors.
func (r *RealReader) ReadPin(id uint8) bool {
	line, ok := r.lines[id]
	if !ok {
		return false
	}
	v, err := line.Value()
	if err != nil {
		r.readErrs.Add(1)
		return false
	}
	return v != 0
}

// ReadErrors returns the number of failed line reads since startup.
func (r *RealReader) ReadErrors() uint64 {
	return r.readErrs.Load()
}

// Close releases all requested lines and the chip. Lines are reconfigured
// to input with pull-down first, matching Pi boot defaults, so externally
// wired hardware sees a clean state across restarts.
func (r *RealReader) Close() error {
	var errs []error
	for pin, line := range r.lines {
		if err := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure pin %d: %w", pin, err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pin %d: %w", pin, err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
