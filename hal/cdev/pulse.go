//go:build linux

package cdev

import (
	"sync"
	"sync/atomic"
	"time"
)

// DefaultPeriod is the servo frame rate of the generated throttle signal.
const DefaultPeriod = 20 * time.Millisecond

// valueSetter is the part of a gpiocdev.Line the output drives.
type valueSetter interface {
	SetValue(value int) error
}

// PulseOutput bit-bangs a servo pulse train on an output line. A width of
// zero keeps the line low.
type PulseOutput struct {
	line   valueSetter
	period time.Duration
	width  atomic.Uint32 // microseconds

	running  atomic.Bool
	stopOnce sync.Once
	stopChan chan struct{}
	done     chan struct{}
}

// NewPulseOutput returns a stopped output on line.
func NewPulseOutput(line valueSetter, period time.Duration) *PulseOutput {
	return &PulseOutput{
		line:     line,
		period:   period,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// SetPulse implements throttle.PulseOutput.
func (p *PulseOutput) SetPulse(us uint16) {
	p.width.Store(uint32(us))
}

// Stop implements throttle.PulseOutput.
func (p *PulseOutput) Stop() {
	p.width.Store(0)
}

// Width returns the pulse width being emitted, zero when stopped.
func (p *PulseOutput) Width() time.Duration {
	return time.Duration(p.width.Load()) * time.Microsecond
}

// Start runs the pulse loop until Close.
func (p *PulseOutput) Start() {
	p.running.Store(true)
	defer close(p.done)
	ticker := time.NewTicker(p.period)
	defer ticker.Stop()
	for {
		select {
		case <-p.stopChan:
			p.line.SetValue(0)
			return
		case <-ticker.C:
			highTime := p.Width()
			if highTime == 0 || highTime >= p.period {
				continue
			}
			p.line.SetValue(1)
			time.Sleep(highTime)
			p.line.SetValue(0)
		}
	}
}

// Close stops the loop and leaves the line low.
func (p *PulseOutput) Close() {
	p.stopOnce.Do(func() { close(p.stopChan) })
	if p.running.Load() {
		<-p.done
		return
	}
	p.line.SetValue(0)
}
