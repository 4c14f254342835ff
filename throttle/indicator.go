package throttle

import "github.com/BryanSouza91/castlelink/capture"

// LED is the status light.
type LED interface {
	Set(on bool)
}

// Indicator patterns.
const (
	LedOff = iota
	LedOn
	LedBlink     // armed, period follows the throttle level
	LedFastFlash // armed, throttle signal lost
)

// Blink timing in ticks.
const (
	blinkBase     = 50_000
	blinkPerLevel = 5_000
	fastFlashHalf = 50_000
)

// Indicator shows the engine state on an LED. While armed it blinks faster as
// the throttle rises and stays on at full throttle; with the throttle signal
// lost it flashes fast. Disarmed, it shows whatever SetLed last asked for.
type Indicator struct {
	led        LED
	state      int
	manual     bool
	isOn       bool
	lastToggle uint32
}

// NewIndicator returns an Indicator driving led, initially off.
func NewIndicator(led LED) *Indicator {
	led.Set(false)
	return &Indicator{led: led}
}

// State returns the current pattern.
func (ind *Indicator) State() int {
	return ind.state
}

// BlinkHalfPeriod returns the on (and off) time of the armed blink for level,
// in ticks. Zero means steady on.
func BlinkHalfPeriod(level int) uint32 {
	if level >= LevelMax {
		return 0
	}
	if level < LevelMin {
		level = LevelMin
	}
	return uint32(LevelMax-level)*blinkPerLevel + blinkBase
}

func (ind *Indicator) set(on bool) {
	if on != ind.isOn {
		ind.led.Set(on)
		ind.isOn = on
	}
}

func (ind *Indicator) setManual(on bool) {
	ind.manual = on
	ind.state = LedOff
	if on {
		ind.state = LedOn
	}
	ind.set(on)
}

func (ind *Indicator) restore() {
	ind.setManual(ind.manual)
}

func (ind *Indicator) toggle(now uint32, bits uint8, half uint32) {
	d, ok := capture.Since(ind.lastToggle, now, bits)
	if !ok {
		// lastToggle is ahead of now, or so old it wrapped: restart the phase.
		ind.lastToggle = now
		return
	}
	if d >= half {
		ind.set(!ind.isOn)
		ind.lastToggle = now
	}
}

// update advances the pattern. Called by Engine.Poll inside its critical section.
func (ind *Indicator) update(now uint32, bits uint8, armed, valid bool, level int) {
	if !armed {
		return
	}
	switch {
	case !valid:
		ind.state = LedFastFlash
		ind.toggle(now, bits, fastFlashHalf)
	case level >= LevelMax:
		ind.state = LedOn
		ind.set(true)
	default:
		ind.state = LedBlink
		ind.toggle(now, bits, BlinkHalfPeriod(level))
	}
}
