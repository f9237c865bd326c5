// Package adc provides analog-to-digital conversion with hardware
// abstraction. The real implementation reads Linux industrial-I/O (IIO)
// sysfs attributes, which is how SPI converters like the MCP3008 surface
// on a Raspberry Pi; the fake implementation allows testing without
// hardware.
//
// Converters implement the scheduler's one-conversion-deep pipeline:
// StartConversion begins sampling a channel, ReadResult collects the
// previously started conversion. The scheduler gives a full tick between
// the two calls.
package adc

// Converter drives the ADC pipeline. It satisfies the scheduler's
// Converter port.
type Converter interface {
	StartConversion(channel uint8)
	ReadResult() uint16
}
