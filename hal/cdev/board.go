//go:build linux

// Package cdev runs a castlelink.Link on a Linux single board computer
// through the GPIO character device.
package cdev

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/warthog618/go-gpiocdev"
	"golang.org/x/sys/unix"

	"github.com/BryanSouza91/castlelink"
	"github.com/BryanSouza91/castlelink/capture"
	"github.com/BryanSouza91/castlelink/throttle"
)

// Consumer labels the lines this package requests.
const Consumer = "castlelink"

// Config maps the Link lines to offsets on one GPIO chip.
type Config struct {
	Chip        string // e.g. "gpiochip0"
	ESCLines    []int  // telemetry line of each ESC
	ThrottleOut int    // line feeding the ESCs
	LED         int    // castlelink.NoPin for none
	Period      time.Duration
}

// Board implements castlelink.Board.
type Board struct {
	cfg     Config
	counter Counter

	mu    sync.Mutex
	lines []*gpiocdev.Line
	out   *PulseOutput
}

// Open checks cfg and returns a board. Lines are requested as the Link asks
// for them.
func Open(cfg Config) (*Board, error) {
	if cfg.Chip == "" {
		return nil, errors.New("cdev: no gpio chip")
	}
	if len(cfg.ESCLines) == 0 || len(cfg.ESCLines) > castlelink.MaxESCs {
		return nil, fmt.Errorf("cdev: %d esc lines", len(cfg.ESCLines))
	}
	if cfg.Period == 0 {
		cfg.Period = DefaultPeriod
	}
	return &Board{cfg: cfg}, nil
}

// Counter implements castlelink.Board.
func (b *Board) Counter() capture.Counter {
	return b.counter
}

// ESCPin implements castlelink.Board.
func (b *Board) ESCPin(esc int) int {
	if esc < 0 || esc >= len(b.cfg.ESCLines) {
		return castlelink.NoPin
	}
	return b.cfg.ESCLines[esc]
}

// LEDPin implements castlelink.Board.
func (b *Board) LEDPin() int {
	return b.cfg.LED
}

// eventTicks converts a kernel event timestamp, taken on the monotonic
// clock, to counter ticks.
func eventTicks(evt gpiocdev.LineEvent) uint32 {
	return uint32(evt.Timestamp / time.Microsecond)
}

func (b *Board) request(offset int, opts ...gpiocdev.LineReqOption) (*gpiocdev.Line, error) {
	opts = append(opts, gpiocdev.WithConsumer(Consumer))
	line, err := gpiocdev.RequestLine(b.cfg.Chip, offset, opts...)
	if err != nil {
		if errors.Is(err, unix.EINVAL) {
			return nil, fmt.Errorf("cdev: line %d: %w (bias needs Linux 5.5 or later)", offset, err)
		}
		return nil, fmt.Errorf("cdev: line %d: %w", offset, err)
	}
	b.mu.Lock()
	b.lines = append(b.lines, line)
	b.mu.Unlock()
	return line, nil
}

// WatchESC implements castlelink.Board. The ESC pulls its open-collector
// line low for every frame, so only falling edges count.
func (b *Board) WatchESC(esc int, fn func(now uint32)) error {
	offset := b.ESCPin(esc)
	if offset == castlelink.NoPin {
		return fmt.Errorf("cdev: no line for esc %d", esc)
	}
	_, err := b.request(offset,
		gpiocdev.WithPullUp,
		gpiocdev.WithFallingEdge,
		gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
			fn(eventTicks(evt))
		}))
	return err
}

// WatchThrottle implements castlelink.Board.
func (b *Board) WatchThrottle(pin int, fn func(high bool, now uint32)) error {
	_, err := b.request(pin,
		gpiocdev.WithPullDown,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
			fn(evt.Type == gpiocdev.LineEventRisingEdge, eventTicks(evt))
		}))
	return err
}

// ThrottleOutput implements castlelink.Board.
func (b *Board) ThrottleOutput() (throttle.PulseOutput, error) {
	b.mu.Lock()
	out := b.out
	b.mu.Unlock()
	if out != nil {
		return out, nil
	}

	line, err := b.request(b.cfg.ThrottleOut, gpiocdev.AsOutput(0))
	if err != nil {
		return nil, err
	}
	out = NewPulseOutput(line, b.cfg.Period)
	go out.Start()

	b.mu.Lock()
	b.out = out
	b.mu.Unlock()
	return out, nil
}

// LED implements castlelink.Board.
func (b *Board) LED() (throttle.LED, error) {
	if b.cfg.LED == castlelink.NoPin {
		return nil, nil
	}
	line, err := b.request(b.cfg.LED, gpiocdev.AsOutput(0))
	if err != nil {
		return nil, err
	}
	return &led{line: line}, nil
}

// Close stops the pulse output and releases every line.
func (b *Board) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.out != nil {
		b.out.Close()
		b.out = nil
	}
	var errs []error
	for _, l := range b.lines {
		errs = append(errs, l.Close())
	}
	b.lines = nil
	return errors.Join(errs...)
}

type led struct {
	line   valueSetter
	failed atomic.Bool
}

// Set drives the indicator line. It runs in handler context, so a failure is
// logged once and later ones are dropped.
func (l *led) Set(on bool) {
	v := 0
	if on {
		v = 1
	}
	if err := l.line.SetValue(v); err != nil && l.failed.CompareAndSwap(false, true) {
		log.Printf("cdev: indicator: %v", err)
	}
}
