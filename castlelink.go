// Package castlelink reads Castle Link Live telemetry from up to two Castle
// Creations ESCs while driving, or passing through, their throttle signal.
//
// A program creates one Link, calls Init with its Board and Begin with its
// options, then runs the watchdog with Run:
//
//	var link castlelink.Link
//	if err := link.Init(board); err != nil { ... }
//	if err := link.Begin(castlelink.WithESCs(2)); err != nil { ... }
//	go link.Run(ctx)
//	link.ThrottleArm()
//	for {
//		link.SetThrottle(level)
//		if data, ok := link.GetData(0); ok { ... }
//	}
package castlelink

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/BryanSouza91/castlelink/capture"
	"github.com/BryanSouza91/castlelink/sequencer"
	"github.com/BryanSouza91/castlelink/telemetry"
	"github.com/BryanSouza91/castlelink/throttle"
)

// Link decodes ESC telemetry and runs the throttle engine on one Board.
// Its methods are for the main program; handlers it calls back run in
// handler context.
type Link struct {
	board   Board
	counter capture.Counter

	opts    options
	started bool
	capture *capture.Capture
	seq     *sequencer.Sequencer
	engine  *throttle.Engine
	ind     *throttle.Indicator

	presence throttle.PresenceHandler
	linkFn   sequencer.LinkHandler
}

// Init binds the Link to board and its time base. It must precede Begin.
func (l *Link) Init(board Board) error {
	if l.board != nil {
		return ErrAlreadyInitialized
	}
	if board == nil {
		return fmt.Errorf("castlelink: nil board")
	}
	counter := board.Counter()
	if counter == nil {
		return fmt.Errorf("castlelink: board has no counter")
	}
	l.board = board
	l.counter = counter
	return nil
}

// Begin configures the ESC count, the throttle mode and the pulse range, then
// starts capturing. Without options it decodes one ESC and generates the
// throttle signal. When a board registration fails, the Link stays
// stopped, the throttle output is told to stop, and edge handlers registered
// so far stay with the board: close or reset it before trying again.
func (l *Link) Begin(opts ...Option) (err error) {
	if l.board == nil {
		return ErrNotInitialized
	}
	if l.started {
		return ErrAlreadyStarted
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := l.checkPins(o); err != nil {
		return err
	}
	if o.pollInterval <= 0 || o.pollInterval >= o.watchdogTimeout {
		return fmt.Errorf("%w: poll interval %v with watchdog timeout %v", ErrConfig, o.pollInterval, o.watchdogTimeout)
	}
	timeout := o.watchdogTimeout / TickDuration
	if timeout <= 0 || timeout > math.MaxUint32 {
		return fmt.Errorf("%w: watchdog timeout %v", ErrConfig, o.watchdogTimeout)
	}

	seq, err := sequencer.New(sequencer.Config{
		ESCs:              o.escs,
		ResetThreshold:    o.resetThreshold,
		LinkLossThreshold: o.linkLossThreshold,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}

	mode := throttle.Generated
	if o.throttlePin != GenerateThrottle {
		mode = throttle.External
	}
	out, err := l.board.ThrottleOutput()
	if err != nil {
		return fmt.Errorf("castlelink: throttle output: %w", err)
	}
	defer func() {
		if err != nil {
			out.Stop()
		}
	}()
	engine, err := throttle.New(throttle.Config{
		Mode:      mode,
		Min:       o.throttleMin,
		Max:       o.throttleMax,
		Timeout:   uint32(timeout),
		Tolerance: o.tolerance,
	}, out, l.counter)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}

	led, err := l.board.LED()
	if err != nil {
		return fmt.Errorf("castlelink: indicator: %w", err)
	}
	var ind *throttle.Indicator
	if led != nil {
		ind = throttle.NewIndicator(led)
		engine.SetIndicator(ind)
	}

	seq.SetLinkHandler(l.linkFn)
	engine.AttachPresenceHandler(l.presence)
	capt := capture.New(l.counter, seq)

	for esc := 0; esc < o.escs; esc++ {
		if err := l.board.WatchESC(esc, func(now uint32) { capt.Edge(esc, now) }); err != nil {
			return fmt.Errorf("castlelink: esc %d: %w", esc, err)
		}
	}
	if mode == throttle.External {
		if err := l.board.WatchThrottle(o.throttlePin, engine.ExternalEdge); err != nil {
			return fmt.Errorf("castlelink: throttle pin %d: %w", o.throttlePin, err)
		}
	}

	l.opts = o
	l.seq = seq
	l.engine = engine
	l.ind = ind
	l.capture = capt
	l.started = true
	return nil
}

// checkPins rejects an ESC count out of range and an external throttle pin
// that is already in use.
func (l *Link) checkPins(o options) error {
	if o.escs < 1 || o.escs > MaxESCs {
		return fmt.Errorf("%w: esc count %d not in 1..%d", ErrConfig, o.escs, MaxESCs)
	}
	if o.throttlePin == GenerateThrottle {
		return nil
	}
	if o.throttlePin < 0 {
		return fmt.Errorf("%w: throttle pin %d", ErrConfig, o.throttlePin)
	}
	for esc := 0; esc < o.escs; esc++ {
		if l.board.ESCPin(esc) == o.throttlePin {
			return fmt.Errorf("%w: throttle pin %d is the esc %d line", ErrConfig, o.throttlePin, esc)
		}
	}
	if led := l.board.LEDPin(); led != NoPin && led == o.throttlePin {
		return fmt.Errorf("%w: throttle pin %d is the indicator", ErrConfig, o.throttlePin)
	}
	return nil
}

// Started reports whether Begin succeeded.
func (l *Link) Started() bool {
	return l.started
}

// ESCs returns the configured ESC count, zero before Begin.
func (l *Link) ESCs() int {
	if !l.started {
		return 0
	}
	return l.opts.escs
}

// SetThrottle sets the generated throttle level, 0 to 100. It must be called
// more often than the watchdog timeout or the throttle signal is withdrawn.
func (l *Link) SetThrottle(level int) error {
	if !l.started {
		return ErrNotStarted
	}
	return l.engine.SetThrottle(level)
}

// ThrottleArm lets the throttle signal reach the ESCs.
func (l *Link) ThrottleArm() {
	if l.started {
		l.engine.Arm()
	}
}

// ThrottleDisarm withholds the throttle signal from the ESCs.
func (l *Link) ThrottleDisarm() {
	if l.started {
		l.engine.Disarm()
	}
}

// ThrottleStatus returns the state of the throttle engine.
func (l *Link) ThrottleStatus() throttle.Status {
	if !l.started {
		return throttle.Status{}
	}
	return l.engine.Status()
}

// AttachThrottlePresenceHandler registers fn to be told when the throttle
// signal becomes valid or is lost. fn runs in handler context and must not
// block.
func (l *Link) AttachThrottlePresenceHandler(fn func(valid bool)) {
	l.presence = fn
	if l.started {
		l.engine.AttachPresenceHandler(fn)
	}
}

// AttachLinkHandler registers fn to be told when an ESC telemetry link is
// lost or recovered. fn runs in handler context and must not block.
func (l *Link) AttachLinkHandler(fn func(esc int, ok bool)) {
	l.linkFn = fn
	if l.started {
		l.seq.SetLinkHandler(fn)
	}
}

// GetRawData returns the last complete cycle of ESC i. It reports false
// before the first complete cycle and for an ESC that is not configured.
func (l *Link) GetRawData(i int) (telemetry.RawData, bool) {
	if !l.started {
		return telemetry.RawData{}, false
	}
	return l.seq.Snapshot(i)
}

// GetData returns the last complete cycle of ESC i in engineering units.
func (l *Link) GetData(i int) (telemetry.Data, bool) {
	raw, ok := l.GetRawData(i)
	if !ok {
		return telemetry.Data{}, false
	}
	data, err := telemetry.Decode(raw)
	if err != nil {
		return telemetry.Data{}, false
	}
	return data, true
}

// LinkOK reports whether ESC i is sending complete cycles.
func (l *Link) LinkOK(i int) bool {
	return l.started && l.seq.LinkOK(i)
}

// Stats returns the cycle counters of ESC i.
func (l *Link) Stats(i int) sequencer.Stats {
	if !l.started {
		return sequencer.Stats{}
	}
	return l.seq.Stats(i)
}

// SetLed switches the indicator while the throttle is disarmed. It does
// nothing on a board without an indicator.
func (l *Link) SetLed(on bool) {
	if l.started && l.ind != nil {
		l.engine.SetLed(on)
	}
}

// Poll runs the throttle watchdog and the indicator once. Run calls it
// periodically; programs with their own loop may call it instead.
func (l *Link) Poll() {
	if l.started {
		l.engine.Poll()
	}
}

// Run polls the watchdog until ctx is done.
func (l *Link) Run(ctx context.Context) error {
	if !l.started {
		return ErrNotStarted
	}
	ticker := time.NewTicker(l.opts.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			l.engine.Poll()
		}
	}
}
