//go:build linux

package cdev

import "golang.org/x/sys/unix"

// Counter is a 32-bit microsecond counter on CLOCK_MONOTONIC, the clock the
// kernel stamps line events with.
type Counter struct{}

// Now implements capture.Counter.
func (Counter) Now() uint32 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return 0
	}
	return uint32(ts.Nano() / 1000)
}

// Bits implements capture.Counter.
func (Counter) Bits() uint8 {
	return 32
}
