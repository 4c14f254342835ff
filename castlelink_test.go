package castlelink

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BryanSouza91/castlelink/capture"
	"github.com/BryanSouza91/castlelink/telemetry"
	"github.com/BryanSouza91/castlelink/throttle"
)

type fakeCounter struct{ now uint32 }

func (c *fakeCounter) Now() uint32 { return c.now }
func (c *fakeCounter) Bits() uint8 { return 32 }

type fakeOutput struct {
	pulses []uint16
	stops  int
}

func (o *fakeOutput) SetPulse(us uint16) { o.pulses = append(o.pulses, us) }
func (o *fakeOutput) Stop()              { o.stops++ }

type fakeLED struct{ on bool }

func (l *fakeLED) Set(on bool) { l.on = on }

type fakeBoard struct {
	counter     fakeCounter
	escPins     [MaxESCs]int
	ledPin      int
	led         *fakeLED
	out         fakeOutput
	esc         [MaxESCs]func(now uint32)
	throttle    func(high bool, now uint32)
	watchErr    error
	throttleErr error
}

func newFakeBoard() *fakeBoard {
	return &fakeBoard{escPins: [MaxESCs]int{2, 3}, ledPin: 13, led: &fakeLED{}}
}

func (b *fakeBoard) Counter() capture.Counter { return &b.counter }
func (b *fakeBoard) ESCPin(esc int) int       { return b.escPins[esc] }
func (b *fakeBoard) LEDPin() int              { return b.ledPin }

func (b *fakeBoard) WatchESC(esc int, fn func(now uint32)) error {
	if b.watchErr != nil {
		return b.watchErr
	}
	b.esc[esc] = fn
	return nil
}

func (b *fakeBoard) WatchThrottle(pin int, fn func(high bool, now uint32)) error {
	if b.throttleErr != nil {
		return b.throttleErr
	}
	b.throttle = fn
	return nil
}

func (b *fakeBoard) ThrottleOutput() (throttle.PulseOutput, error) { return &b.out, nil }

func (b *fakeBoard) LED() (throttle.LED, error) {
	if b.led == nil {
		return nil, nil
	}
	return b.led, nil
}

var typicalCycle = telemetry.RawData{Ticks: [telemetry.DataFrameCount]uint16{
	1000, 555, 25, 200, 1500, 2000, 490, 1250, 250, 1000, 0,
}}

// sendCycle drives edges on an ESC line so that the measured gaps are a reset
// marker followed by the frames of raw.
func sendCycle(b *fakeBoard, esc int, now *uint32, raw telemetry.RawData) {
	*now += DefaultResetThreshold + 1
	b.esc[esc](*now)
	for _, t := range raw.Ticks {
		*now += uint32(t)
		b.esc[esc](*now)
	}
}

func startedLink(t *testing.T, b *fakeBoard, opts ...Option) *Link {
	t.Helper()
	var l Link
	require.NoError(t, l.Init(b))
	require.NoError(t, l.Begin(opts...))
	return &l
}

func TestInitAndBeginOrder(t *testing.T) {
	var l Link
	assert.ErrorIs(t, l.Begin(), ErrNotInitialized)
	assert.ErrorIs(t, l.SetThrottle(10), ErrNotStarted)
	assert.ErrorIs(t, l.Run(context.Background()), ErrNotStarted)

	b := newFakeBoard()
	require.NoError(t, l.Init(b))
	assert.ErrorIs(t, l.Init(b), ErrAlreadyInitialized)

	require.NoError(t, l.Begin())
	assert.True(t, l.Started())
	assert.Equal(t, 1, l.ESCs())
	assert.ErrorIs(t, l.Begin(), ErrAlreadyStarted)
}

func TestBeginRejectsBadConfig(t *testing.T) {
	for name, opts := range map[string][]Option{
		"no escs":       {WithESCs(0)},
		"too many escs": {WithESCs(MaxESCs + 1)},
		"esc pin":       {WithESCs(2), WithThrottlePin(3)},
		"led pin":       {WithThrottlePin(13)},
		"negative pin":  {WithThrottlePin(-7)},
		"range":         {WithThrottleRange(2000, 1000)},
		"reset":         {WithResetThreshold(0)},
		"link loss":     {WithLinkLossThreshold(-1)},
		"watchdog":      {WithWatchdogTimeout(0)},
		"poll interval": {WithPollInterval(2 * time.Second)},
		"huge watchdog": {WithWatchdogTimeout(24 * time.Hour)},
	} {
		var l Link
		require.NoError(t, l.Init(newFakeBoard()))
		assert.ErrorIs(t, l.Begin(opts...), ErrConfig, name)
		assert.False(t, l.Started(), name)
	}

	// The second ESC line is free when only one ESC is configured.
	l := startedLink(t, newFakeBoard(), WithESCs(1), WithThrottlePin(3))
	assert.Equal(t, throttle.External, l.ThrottleStatus().Mode)
}

func TestBeginReportsBoardErrors(t *testing.T) {
	b := newFakeBoard()
	b.watchErr = errors.New("line busy")

	var l Link
	require.NoError(t, l.Init(b))
	err := l.Begin()
	assert.ErrorIs(t, err, b.watchErr)
	assert.False(t, l.Started())
}

func TestGetDataAfterCompleteCycle(t *testing.T) {
	b := newFakeBoard()

	var links []bool
	var l Link
	l.AttachLinkHandler(func(esc int, ok bool) {
		assert.Equal(t, 1, esc)
		links = append(links, ok)
	})
	require.NoError(t, l.Init(b))
	require.NoError(t, l.Begin(WithESCs(2)))

	_, ok := l.GetData(1)
	assert.False(t, ok, "no data before the first cycle")

	now := uint32(100)
	b.esc[1](now) // first edge primes the line
	sendCycle(b, 1, &now, typicalCycle)

	raw, ok := l.GetRawData(1)
	require.True(t, ok)
	assert.Equal(t, typicalCycle, raw)

	data, ok := l.GetData(1)
	require.True(t, ok)
	assert.InDelta(t, 11.1, data.Voltage, 1e-4)
	assert.InDelta(t, 10, data.Current, 1e-4)
	assert.True(t, l.LinkOK(1))
	assert.Equal(t, uint32(1), l.Stats(1).Cycles)
	assert.Equal(t, []bool{true}, links)

	_, ok = l.GetData(0)
	assert.False(t, ok)
	_, ok = l.GetData(2)
	assert.False(t, ok)
}

func TestGeneratedThrottle(t *testing.T) {
	b := newFakeBoard()
	l := startedLink(t, b, WithThrottleRange(1100, 1900))

	var presence []bool
	l.AttachThrottlePresenceHandler(func(valid bool) { presence = append(presence, valid) })

	require.NoError(t, l.SetThrottle(50))
	assert.Empty(t, b.out.pulses, "disarmed")

	l.ThrottleArm()
	require.NoError(t, l.SetThrottle(100))
	assert.Equal(t, []uint16{1500, 1900}, b.out.pulses)

	b.counter.now += uint32(DefaultWatchdogTimeout/TickDuration) + 1
	l.Poll()
	assert.Equal(t, 1, b.out.stops)
	assert.Equal(t, []bool{true, false}, presence)
	assert.True(t, b.led.on, "fast flash starts on")

	l.ThrottleDisarm()
	require.NoError(t, l.SetThrottle(20))
	assert.Equal(t, []bool{true, false, true}, presence)
	assert.Len(t, b.out.pulses, 2)
}

func TestExternalThrottle(t *testing.T) {
	b := newFakeBoard()
	l := startedLink(t, b, WithThrottlePin(7))

	assert.ErrorIs(t, l.SetThrottle(10), throttle.ErrWrongMode)
	require.NotNil(t, b.throttle)

	l.ThrottleArm()
	b.throttle(true, 10_000)
	b.throttle(false, 11_250)
	assert.Equal(t, []uint16{1250}, b.out.pulses)
	assert.Equal(t, 25, l.ThrottleStatus().Level)
}

func TestSetLed(t *testing.T) {
	b := newFakeBoard()
	l := startedLink(t, b)

	l.SetLed(true)
	assert.True(t, b.led.on)
	l.SetLed(false)
	assert.False(t, b.led.on)

	l.ThrottleArm()
	l.SetLed(true)
	assert.False(t, b.led.on, "ignored while armed")

	// A board without an indicator accepts the call.
	nb := newFakeBoard()
	nb.led = nil
	nl := startedLink(t, nb)
	nl.SetLed(true)
}

func TestRunStopsWithContext(t *testing.T) {
	l := startedLink(t, newFakeBoard(), WithPollInterval(time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestFailedBeginStopsThrottleOutput(t *testing.T) {
	b := newFakeBoard()
	b.throttleErr = errors.New("line busy")
	var l Link
	require.NoError(t, l.Init(b))

	err := l.Begin(WithThrottlePin(7))
	assert.ErrorIs(t, err, b.throttleErr)
	assert.False(t, l.Started())
	assert.Zero(t, l.ESCs())
	assert.Equal(t, 1, b.out.stops)
	assert.Empty(t, b.out.pulses)

	// The ESC handler left with the board feeds nothing the Link reads.
	now := uint32(0)
	sendCycle(b, 0, &now, typicalCycle)
	_, ok := l.GetRawData(0)
	assert.False(t, ok)

	b.throttleErr = nil
	require.NoError(t, l.Begin(WithThrottlePin(7)))
	assert.True(t, l.Started())
}
