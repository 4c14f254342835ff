//go:build tinygo

// Package mcu runs a castlelink.Link on a TinyGo microcontroller: pin change
// interrupts for the ESC lines and a hardware PWM channel for the throttle.
package mcu

import (
	"errors"
	"machine"
	"time"

	"tinygo.org/x/drivers/servo"

	"github.com/BryanSouza91/castlelink"
	"github.com/BryanSouza91/castlelink/capture"
	"github.com/BryanSouza91/castlelink/throttle"
)

// Config maps the Link lines to board pins.
type Config struct {
	ESCPins     []machine.Pin
	ThrottleOut machine.Pin
	ThrottlePWM servo.PWM // PWM peripheral driving ThrottleOut
	LED         machine.Pin
}

// Board implements castlelink.Board.
type Board struct {
	cfg     Config
	counter *Counter
	out     *pulseOutput
}

// New returns a board for cfg. Pins are configured as the Link asks for them.
func New(cfg Config) (*Board, error) {
	if len(cfg.ESCPins) == 0 || len(cfg.ESCPins) > castlelink.MaxESCs {
		return nil, errors.New("mcu: bad esc pin count")
	}
	if cfg.ThrottlePWM == nil {
		return nil, errors.New("mcu: no throttle pwm")
	}
	return &Board{cfg: cfg, counter: NewCounter()}, nil
}

// Counter implements castlelink.Board.
func (b *Board) Counter() capture.Counter {
	return b.counter
}

// ESCPin implements castlelink.Board.
func (b *Board) ESCPin(esc int) int {
	if esc < 0 || esc >= len(b.cfg.ESCPins) {
		return castlelink.NoPin
	}
	return int(b.cfg.ESCPins[esc])
}

// LEDPin implements castlelink.Board.
func (b *Board) LEDPin() int {
	if b.cfg.LED == machine.NoPin {
		return castlelink.NoPin
	}
	return int(b.cfg.LED)
}

// WatchESC implements castlelink.Board. The ESC pulls the line low for every
// frame, so the falling edge is timed.
func (b *Board) WatchESC(esc int, fn func(now uint32)) error {
	if esc < 0 || esc >= len(b.cfg.ESCPins) {
		return errors.New("mcu: no pin for esc")
	}
	pin := b.cfg.ESCPins[esc]
	pin.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	return pin.SetInterrupt(machine.PinFalling, func(machine.Pin) {
		fn(b.counter.Now())
	})
}

// WatchThrottle implements castlelink.Board.
func (b *Board) WatchThrottle(p int, fn func(high bool, now uint32)) error {
	pin := machine.Pin(p)
	pin.Configure(machine.PinConfig{Mode: machine.PinInput})
	return pin.SetInterrupt(machine.PinToggle, func(pin machine.Pin) {
		fn(pin.Get(), b.counter.Now())
	})
}

// ThrottleOutput implements castlelink.Board.
func (b *Board) ThrottleOutput() (throttle.PulseOutput, error) {
	if b.out != nil {
		return b.out, nil
	}
	s, err := servo.New(b.cfg.ThrottlePWM, b.cfg.ThrottleOut)
	if err != nil {
		return nil, err
	}
	b.out = &pulseOutput{servo: s}
	b.out.Stop()
	return b.out, nil
}

// LED implements castlelink.Board.
func (b *Board) LED() (throttle.LED, error) {
	if b.cfg.LED == machine.NoPin {
		return nil, nil
	}
	b.cfg.LED.Configure(machine.PinConfig{Mode: machine.PinOutput})
	return led(b.cfg.LED), nil
}

// pulseOutput drives the ESCs from a 50 Hz servo PWM channel. A zero duty
// cycle keeps the line low.
type pulseOutput struct {
	servo servo.Servo
}

func (o *pulseOutput) SetPulse(us uint16) {
	o.servo.SetMicroseconds(int16(us))
}

func (o *pulseOutput) Stop() {
	o.servo.SetMicroseconds(0)
}

type led machine.Pin

func (l led) Set(on bool) {
	machine.Pin(l).Set(on)
}

// Counter counts microseconds since it was created, wrapping at 32 bits.
type Counter struct {
	start time.Time
}

// NewCounter starts a counter at zero.
func NewCounter() *Counter {
	return &Counter{start: time.Now()}
}

// Now implements capture.Counter.
func (c *Counter) Now() uint32 {
	return uint32(time.Since(c.start) / time.Microsecond)
}

// Bits implements capture.Counter.
func (c *Counter) Bits() uint8 {
	return 32
}
