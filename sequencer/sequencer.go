// Package sequencer assigns captured pulse durations to the frames of the
// Castle Link Live cycle and keeps the last completed cycle of every ESC.
package sequencer

import (
	"errors"
	"fmt"
	"math"

	"github.com/BryanSouza91/castlelink/internal/critical"
	"github.com/BryanSouza91/castlelink/telemetry"
)

// MaxESCs bounds the number of ESC lines a Sequencer decodes.
const MaxESCs = 2

// DefaultLinkLossThreshold is the number of consecutive desynchronised
// cycles after which an ESC link is reported lost.
const DefaultLinkLossThreshold = 3

// ErrConfig reports an unusable Config.
var ErrConfig = errors.New("sequencer: invalid configuration")

// Config describes what a Sequencer decodes.
type Config struct {
	// ESCs is the number of ESC lines, 1 to MaxESCs.
	ESCs int
	// ResetThreshold is the longest data pulse, in ticks. Anything longer is
	// a reset marker.
	ResetThreshold uint32
	// LinkLossThreshold is the number of consecutive desynchronised cycles
	// that mark a link lost. Zero selects DefaultLinkLossThreshold.
	LinkLossThreshold int
}

// LinkHandler is told when an ESC link is lost or recovered. It is called
// from handler context and must return quickly.
type LinkHandler func(esc int, ok bool)

// Stats counts what happened on one ESC line.
type Stats struct {
	Cycles  uint32 // completed cycles
	Aborted uint32 // cycles cut short by a reset marker
	Ignored uint32 // pulses seen while waiting for a reset marker
}

type escState struct {
	cursor    telemetry.Frame
	work      telemetry.RawData
	published telemetry.RawData
	complete  bool
	stray     bool
	linkOK    bool
	desyncs   int
	stats     Stats
}

// Sequencer runs one frame state machine per ESC. Pulse is the handler side;
// every other method is for the main loop.
type Sequencer struct {
	cfg     Config
	cs      critical.Section
	escs    [MaxESCs]escState
	handler LinkHandler
}

// New validates cfg and returns a Sequencer waiting for a reset marker on
// every line.
func New(cfg Config) (*Sequencer, error) {
	if cfg.ESCs < 1 || cfg.ESCs > MaxESCs {
		return nil, fmt.Errorf("%w: esc count %d not in 1..%d", ErrConfig, cfg.ESCs, MaxESCs)
	}
	if cfg.ResetThreshold == 0 || cfg.ResetThreshold > math.MaxUint16 {
		return nil, fmt.Errorf("%w: reset threshold %d", ErrConfig, cfg.ResetThreshold)
	}
	if cfg.LinkLossThreshold < 0 {
		return nil, fmt.Errorf("%w: link loss threshold %d", ErrConfig, cfg.LinkLossThreshold)
	}
	if cfg.LinkLossThreshold == 0 {
		cfg.LinkLossThreshold = DefaultLinkLossThreshold
	}
	s := &Sequencer{cfg: cfg}
	for i := range s.escs {
		s.escs[i].cursor = telemetry.FrameReset
	}
	return s, nil
}

// ESCs returns the number of decoded lines.
func (s *Sequencer) ESCs() int {
	return s.cfg.ESCs
}

// SetLinkHandler registers h, replacing any previous handler.
func (s *Sequencer) SetLinkHandler(h LinkHandler) {
	s.cs.Enter()
	s.handler = h
	s.cs.Exit()
}

// Pulse feeds the duration of one pulse seen on an ESC line.
func (s *Sequencer) Pulse(esc int, ticks uint32) {
	if esc < 0 || esc >= s.cfg.ESCs {
		return
	}

	s.cs.Enter()
	e := &s.escs[esc]
	var (
		notify bool
		ok     bool
	)

	switch {
	case ticks > s.cfg.ResetThreshold:
		// Resynchronise. A cycle in progress is dropped, never merged.
		if e.cursor != telemetry.FrameReset {
			e.stats.Aborted++
			notify = s.desync(e)
		}
		e.cursor = telemetry.FrameReference
		e.stray = false

	case e.cursor == telemetry.FrameReset:
		e.stats.Ignored++
		if !e.stray {
			e.stray = true
			notify = s.desync(e)
		}

	default:
		e.work.Ticks[e.cursor] = uint16(ticks)
		if e.cursor < telemetry.FrameTemperature2 {
			e.cursor++
			break
		}
		e.published = e.work
		e.complete = true
		e.cursor = telemetry.FrameReset
		e.stats.Cycles++
		e.desyncs = 0
		if !e.linkOK {
			e.linkOK = true
			notify = true
		}
	}
	ok = e.linkOK
	h := s.handler
	s.cs.Exit()

	if notify && h != nil {
		h(esc, ok)
	}
}

// desync counts a desynchronised cycle and reports whether the link just
// went down. Called inside the critical section.
func (s *Sequencer) desync(e *escState) bool {
	e.desyncs++
	if e.linkOK && e.desyncs >= s.cfg.LinkLossThreshold {
		e.linkOK = false
		return true
	}
	return false
}

// Snapshot copies the last completed cycle of esc. It returns false when no
// cycle has completed yet or esc is out of range.
func (s *Sequencer) Snapshot(esc int) (telemetry.RawData, bool) {
	if esc < 0 || esc >= s.cfg.ESCs {
		return telemetry.RawData{}, false
	}
	s.cs.Enter()
	raw, ok := s.escs[esc].published, s.escs[esc].complete
	s.cs.Exit()
	return raw, ok
}

// LinkOK reports whether esc has completed a cycle recently enough.
func (s *Sequencer) LinkOK(esc int) bool {
	if esc < 0 || esc >= s.cfg.ESCs {
		return false
	}
	s.cs.Enter()
	defer s.cs.Exit()
	return s.escs[esc].linkOK
}

// Stats returns the counters of esc.
func (s *Sequencer) Stats(esc int) Stats {
	if esc < 0 || esc >= s.cfg.ESCs {
		return Stats{}
	}
	s.cs.Enter()
	defer s.cs.Exit()
	return s.escs[esc].stats
}

// Cursor returns the frame esc is waiting for, FrameReset when it waits for
// a reset marker.
func (s *Sequencer) Cursor(esc int) telemetry.Frame {
	if esc < 0 || esc >= s.cfg.ESCs {
		return telemetry.FrameReset
	}
	s.cs.Enter()
	defer s.cs.Exit()
	return s.escs[esc].cursor
}
