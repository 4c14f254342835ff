// Package throttle drives or passes through the ESC throttle signal, gated by
// arming and by a signal-presence watchdog.
package throttle

import (
	"errors"
	"fmt"
	"math"

	"github.com/BryanSouza91/castlelink/capture"
	"github.com/BryanSouza91/castlelink/internal/critical"
	"github.com/BryanSouza91/castlelink/internal/scale"
)

// Mode selects where the throttle pulse comes from.
type Mode int

const (
	// Generated: the engine produces the pulse from SetThrottle levels.
	Generated Mode = iota
	// External: the engine forwards a pulse read from an RC receiver.
	External
)

func (m Mode) String() string {
	switch m {
	case Generated:
		return "generated"
	case External:
		return "external"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Throttle levels accepted by SetThrottle.
const (
	LevelMin = 0
	LevelMax = 100
)

var (
	// ErrConfig reports an unusable Config.
	ErrConfig = errors.New("throttle: invalid configuration")
	// ErrWrongMode is returned by SetThrottle when the engine forwards an external signal.
	ErrWrongMode = errors.New("throttle: operation not available in this mode")
)

// PulseOutput is the line feeding the ESCs. Implementations keep repeating
// the last pulse width until told otherwise. Both calls may happen in
// handler context and must not block.
type PulseOutput interface {
	// SetPulse emits pulses of us microseconds.
	SetPulse(us uint16)
	// Stop emits no pulse at all, which ESC firmware treats as stop.
	Stop()
}

// PresenceHandler is told when the throttle signal becomes valid or is lost.
// It runs in handler context and must return quickly.
type PresenceHandler func(valid bool)

// Config describes an Engine. Times are in counter ticks (microseconds).
type Config struct {
	Mode Mode
	// Min and Max are the pulse widths of level 0 and level 100.
	Min, Max uint16
	// Timeout is the longest gap between valid updates before the
	// signal is declared lost.
	Timeout uint32
	// Tolerance widens [Min, Max] for external pulses.
	Tolerance uint16
}

// Status is a snapshot of the engine state.
type Status struct {
	Mode     Mode
	Armed    bool
	Valid    bool
	Emitting bool
	Level    int    // 0..100
	Pulse    uint16 // microseconds
}

// Engine is the throttle state machine. SetThrottle, Arm, Disarm, SetLed and
// AttachPresenceHandler are for the main loop; ExternalEdge and Poll run from
// handler context.
type Engine struct {
	cfg   Config
	out   PulseOutput
	clock capture.Counter
	bits  uint8

	cs       critical.Section
	armed    bool
	valid    bool
	emitting bool
	level    int
	pulse    uint16
	last     uint32
	rise     uint32
	risen    bool
	handler  PresenceHandler
	ind      *Indicator
}

// New validates cfg and returns a disarmed engine with no valid signal yet.
func New(cfg Config, out PulseOutput, clock capture.Counter) (*Engine, error) {
	if cfg.Mode != Generated && cfg.Mode != External {
		return nil, fmt.Errorf("%w: mode %v", ErrConfig, cfg.Mode)
	}
	if cfg.Min == 0 || cfg.Min >= cfg.Max {
		return nil, fmt.Errorf("%w: pulse range %d..%d us", ErrConfig, cfg.Min, cfg.Max)
	}
	bits := clock.Bits()
	if bits == 0 || cfg.Timeout == 0 || uint64(cfg.Timeout) >= uint64(1)<<(bits-1) {
		return nil, fmt.Errorf("%w: timeout %d ticks on a %d-bit counter", ErrConfig, cfg.Timeout, bits)
	}
	if cfg.Tolerance >= cfg.Min || uint32(cfg.Max)+uint32(cfg.Tolerance) > math.MaxUint16 {
		return nil, fmt.Errorf("%w: tolerance %d us", ErrConfig, cfg.Tolerance)
	}
	if out == nil {
		return nil, fmt.Errorf("%w: no pulse output", ErrConfig)
	}
	return &Engine{
		cfg:   cfg,
		out:   out,
		clock: clock,
		bits:  bits,
		pulse: cfg.Min,
	}, nil
}

// Pulse returns the pulse width for level, clamped to 0..100.
func (e *Engine) Pulse(level int) uint16 {
	level = scale.Constrain(level, LevelMin, LevelMax)
	return uint16(scale.Map(level, LevelMin, LevelMax, int(e.cfg.Min), int(e.cfg.Max)))
}

// levelOf converts a pulse width back to 0..100.
func (e *Engine) levelOf(us uint16) int {
	l := scale.Map(int(us), int(e.cfg.Min), int(e.cfg.Max), LevelMin, LevelMax)
	return scale.Constrain(l, LevelMin, LevelMax)
}

// Mode returns the configured mode.
func (e *Engine) Mode() Mode {
	return e.cfg.Mode
}

// AttachPresenceHandler registers h, replacing any previous handler.
func (e *Engine) AttachPresenceHandler(h PresenceHandler) {
	e.cs.Enter()
	e.handler = h
	e.cs.Exit()
}

// SetIndicator attaches the status indicator updated by Poll.
func (e *Engine) SetIndicator(ind *Indicator) {
	e.cs.Enter()
	e.ind = ind
	e.cs.Exit()
}

// SetThrottle sets the generated level, clamped to 0..100, and feeds the
// watchdog.
func (e *Engine) SetThrottle(level int) error {
	if e.cfg.Mode != Generated {
		return ErrWrongMode
	}
	level = scale.Constrain(level, LevelMin, LevelMax)
	pulse := e.Pulse(level)
	now := e.clock.Now()

	e.cs.Enter()
	e.level = level
	e.pulse = pulse
	h, notify := e.refresh(now)
	e.cs.Exit()

	if notify && h != nil {
		h(true)
	}
	return nil
}

// ExternalEdge feeds an edge of the external receiver line: high for a rising
// edge, low for a falling one. The high time is the throttle pulse.
func (e *Engine) ExternalEdge(high bool, now uint32) {
	if e.cfg.Mode != External {
		return
	}
	if high {
		e.cs.Enter()
		e.rise = now
		e.risen = true
		e.cs.Exit()
		return
	}

	e.cs.Enter()
	if !e.risen {
		e.cs.Exit()
		return
	}
	e.risen = false
	width := capture.Delta(e.rise, now, e.bits)
	h, notify := e.forward(width, now)
	e.cs.Exit()

	if notify && h != nil {
		h(true)
	}
}

// ExternalPulse feeds an already measured external pulse width.
func (e *Engine) ExternalPulse(width uint32) {
	if e.cfg.Mode != External {
		return
	}
	now := e.clock.Now()
	e.cs.Enter()
	h, notify := e.forward(width, now)
	e.cs.Exit()

	if notify && h != nil {
		h(true)
	}
}

// forward accepts a plausible external width. Called inside the critical section.
func (e *Engine) forward(width uint32, now uint32) (PresenceHandler, bool) {
	lo := uint32(e.cfg.Min - e.cfg.Tolerance)
	hi := uint32(e.cfg.Max) + uint32(e.cfg.Tolerance)
	if width < lo || width > hi {
		return nil, false
	}
	e.pulse = uint16(width)
	e.level = e.levelOf(e.pulse)
	return e.refresh(now)
}

// refresh records a valid update. Called inside the critical section; the
// caller invokes the returned handler after leaving it.
func (e *Engine) refresh(now uint32) (PresenceHandler, bool) {
	e.last = now
	becameValid := !e.valid
	e.valid = true
	e.apply()
	return e.handler, becameValid
}

// apply drives the output from the armed and valid flags. Called inside the
// critical section.
func (e *Engine) apply() {
	if e.armed && e.valid {
		e.out.SetPulse(e.pulse)
		e.emitting = true
		return
	}
	if e.emitting {
		e.out.Stop()
		e.emitting = false
	}
}

// Poll runs the watchdog and the indicator. Call it periodically from the
// time base, well inside Timeout. An update stamped after the clock reading
// of Poll counts as fresh.
func (e *Engine) Poll() {
	now := e.clock.Now()

	e.cs.Enter()
	lost := false
	if d, ok := capture.Since(e.last, now, e.bits); e.valid && ok && d > e.cfg.Timeout {
		e.valid = false
		e.apply()
		lost = true
	}
	if e.ind != nil {
		e.ind.update(now, e.bits, e.armed, e.valid, e.level)
	}
	h := e.handler
	e.cs.Exit()

	if lost && h != nil {
		h(false)
	}
}

// Arm lets pulses through to the ESCs.
func (e *Engine) Arm() {
	e.cs.Enter()
	e.armed = true
	e.apply()
	e.cs.Exit()
}

// Disarm withholds every pulse, whatever the signal state.
func (e *Engine) Disarm() {
	e.cs.Enter()
	e.armed = false
	e.apply()
	if e.ind != nil {
		e.ind.restore()
	}
	e.cs.Exit()
}

// SetLed drives the indicator directly. Ignored while armed.
func (e *Engine) SetLed(on bool) {
	e.cs.Enter()
	if !e.armed && e.ind != nil {
		e.ind.setManual(on)
	}
	e.cs.Exit()
}

// Status returns a consistent snapshot of the engine state.
func (e *Engine) Status() Status {
	e.cs.Enter()
	defer e.cs.Exit()
	return Status{
		Mode:     e.cfg.Mode,
		Armed:    e.armed,
		Valid:    e.valid,
		Emitting: e.emitting,
		Level:    e.level,
		Pulse:    e.pulse,
	}
}
