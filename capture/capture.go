// Package capture turns signal edges into elapsed-tick deltas per line.
//
// Edge runs in handler context: a pin interrupt on microcontrollers or the
// GPIO event goroutine on Linux. It never blocks or allocates.
package capture

// MaxLines bounds the number of lines a Capture tracks.
const MaxLines = 4

// Counter is the free-running hardware time base.
type Counter interface {
	// Now returns the current counter value.
	Now() uint32
	// Bits returns the counter width, 1 to 32.
	Bits() uint8
}

// Sink receives the delta between two successive edges on a line.
type Sink interface {
	Pulse(line int, ticks uint32)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(line int, ticks uint32)

// Pulse calls f(line, ticks).
func (f SinkFunc) Pulse(line int, ticks uint32) { f(line, ticks) }

// Delta returns now-prev modulo 2^bits, so a counter wrap between the two
// readings is transparent.
func Delta(prev, now uint32, bits uint8) uint32 {
	d := now - prev
	if bits >= 32 || bits == 0 {
		return d
	}
	return d & (1<<bits - 1)
}

// Since returns the ticks from prev to now. It reports false when the delta
// exceeds half the counter range, which is read as prev being later than now.
func Since(prev, now uint32, bits uint8) (uint32, bool) {
	d := Delta(prev, now, bits)
	half := uint32(1) << 31
	if bits > 0 && bits < 32 {
		half = 1 << (bits - 1)
	}
	return d, d < half
}

type lineState struct {
	last  uint32
	armed bool
}

// Capture tracks the previous edge of every line. Each line must only be
// fed from one handler context; different lines may interleave freely.
type Capture struct {
	bits  uint8
	sink  Sink
	lines [MaxLines]lineState
}

// New returns a Capture measuring with the width of counter and feeding sink.
func New(counter Counter, sink Sink) *Capture {
	return &Capture{bits: counter.Bits(), sink: sink}
}

// Edge records an edge seen on line at counter value now. The first edge of a
// line only primes it.
func (c *Capture) Edge(line int, now uint32) {
	if line < 0 || line >= MaxLines {
		return
	}
	ls := &c.lines[line]
	if !ls.armed {
		ls.last = now
		ls.armed = true
		return
	}
	d := Delta(ls.last, now, c.bits)
	ls.last = now
	c.sink.Pulse(line, d)
}

// Reset forgets the previous edge of line.
func (c *Capture) Reset(line int) {
	if line < 0 || line >= MaxLines {
		return
	}
	c.lines[line] = lineState{}
}
