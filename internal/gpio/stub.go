//go:build !linux

package gpio

import "errors"

// RealReader is not available on non-Linux platforms.
type RealReader struct{}

// NewRealReader returns an error on non-Linux platforms.
func NewRealReader(chipName string, pins []uint8) (*RealReader, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// ReadPin is not implemented on non-Linux platforms.
func (r *RealReader) ReadPin(id uint8) bool { return false }

// ReadErrors is not implemented on non-Linux platforms.
func (r *RealReader) ReadErrors() uint64 { return 0 }

// Close is not implemented on non-Linux platforms.
func (r *RealReader) Close() error { return nil }
