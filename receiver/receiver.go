// Package receiver parses RC receiver serial streams into channel values.
// The firmware uses it as the throttle source.
package receiver

import (
	"fmt"

	"github.com/BryanSouza91/castlelink/internal/scale"
)

// MaxChannels is the number of channels a frame can carry.
const MaxChannels = 16

// Channels holds channel pulse widths in microseconds. Channels a protocol
// does not carry are zero.
type Channels [MaxChannels]uint16

// Protocol identifies a receiver serial protocol.
type Protocol int

// Supported receiver protocols.
const (
	IBus Protocol = iota
	CRSF
	ELRS // CRSF framing at the ExpressLRS baud rate
)

func (p Protocol) String() string {
	switch p {
	case IBus:
		return "ibus"
	case CRSF:
		return "crsf"
	case ELRS:
		return "elrs"
	}
	return fmt.Sprintf("Protocol(%d)", int(p))
}

// BaudRate returns the UART speed the protocol runs at.
func (p Protocol) BaudRate() uint32 {
	switch p {
	case IBus:
		return 115200
	case CRSF:
		return 416666
	case ELRS:
		return 420000
	}
	return 0
}

// Parser consumes a receiver stream one byte at a time.
type Parser interface {
	// Feed adds b to the frame under construction and returns the channels
	// of every frame it completes with a good checksum.
	Feed(b byte) (Channels, bool)
}

// NewParser returns the parser for p.
func NewParser(p Protocol) (Parser, error) {
	switch p {
	case IBus:
		return &IBusParser{}, nil
	case CRSF, ELRS:
		return &CRSFParser{}, nil
	}
	return nil, fmt.Errorf("receiver: unsupported protocol %v", p)
}

// Stick positions, in microseconds.
const (
	StickMin  = 1000
	StickMax  = 2000
	StickHigh = 1800 // a switch channel above this is on
)

// ThrottleLevel maps a channel pulse width within [min, max] to a throttle
// level from 0 to 100.
func ThrottleLevel(us, min, max uint16) int {
	if min >= max {
		return 0
	}
	v := scale.Constrain(int(us), int(min), int(max))
	return scale.Map(v, int(min), int(max), 0, 100)
}

// Switch reports whether a switch channel is in its high position.
func Switch(us uint16) bool {
	return us > StickHigh
}
