package adc

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
)

// DefaultDevice is the sysfs directory of the first IIO device.
const DefaultDevice = "/sys/bus/iio/devices/iio:device0"

// IIOConverter reads raw samples from a Linux IIO device. StartConversion
// records the channel; ReadResult performs the sysfs read for it. A sysfs
// read completes in well under a millisecond, so from the scheduler's
// perspective both calls are non-blocking.
type IIOConverter struct {
	dir     string
	pending uint8

	readErrs atomic.Uint64
}

// NewIIOConverter checks that the device directory exists and returns a
// converter for it.
func NewIIOConverter(dir string) (*IIOConverter, error) {
	if dir == "" {
		dir = DefaultDevice
	}
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("iio device %s: %w", dir, err)
	}
	return &IIOConverter{dir: dir}, nil
}

// StartConversion records which channel the next ReadResult collects.
func (c *IIOConverter) StartConversion(channel uint8) {
	c.pending = channel
}

// ReadResult returns the raw sample for the pending channel. Failures
// read as 0 and are counted for the status page.
func (c *IIOConverter) ReadResult() uint16 {
	path := filepath.Join(c.dir, fmt.Sprintf("in_voltage%d_raw", c.pending))
	b, err := os.ReadFile(path)
	if err != nil {
		c.readErrs.Add(1)
		return 0
	}
	v, err := strconv.ParseUint(strings.TrimSpace(string(b)), 10, 16)
	if err != nil {
		c.readErrs.Add(1)
		return 0
	}
	return uint16(v)
}

// ReadErrors returns the number of failed sample reads since startup.
func (c *IIOConverter) ReadErrors() uint64 {
	return c.readErrs.Load()
}
