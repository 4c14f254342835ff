package castlelink

import (
	"github.com/BryanSouza91/castlelink/capture"
	"github.com/BryanSouza91/castlelink/throttle"
)

// Board is the hardware a Link runs on. The edge callbacks run in handler
// context: they must not block, and the board must deliver the edges of one
// line from a single context.
type Board interface {
	// Counter returns the free-running time base of the board, in
	// microsecond ticks.
	Counter() capture.Counter
	// ESCPin returns the pin of the telemetry line of ESC esc.
	ESCPin(esc int) int
	// LEDPin returns the indicator pin, or NoPin.
	LEDPin() int
	// WatchESC delivers the telemetry edges of ESC esc to fn.
	WatchESC(esc int, fn func(now uint32)) error
	// WatchThrottle delivers both edges of the external throttle signal on
	// pin to fn.
	WatchThrottle(pin int, fn func(high bool, now uint32)) error
	// ThrottleOutput returns the line feeding the throttle pulse to the ESCs.
	ThrottleOutput() (throttle.PulseOutput, error)
	// LED returns the indicator, or nil when the board has none.
	LED() (throttle.LED, error)
}
