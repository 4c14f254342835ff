package castlelink

import "time"

type options struct {
	escs              int
	throttlePin       int
	throttleMin       uint16
	throttleMax       uint16
	tolerance         uint16
	resetThreshold    uint32
	watchdogTimeout   time.Duration
	linkLossThreshold int
	pollInterval      time.Duration
}

func defaultOptions() options {
	return options{
		escs:            DefaultESCs,
		throttlePin:     GenerateThrottle,
		throttleMin:     DefaultThrottleMin,
		throttleMax:     DefaultThrottleMax,
		tolerance:       DefaultThrottleTolerance,
		resetThreshold:  DefaultResetThreshold,
		watchdogTimeout: DefaultWatchdogTimeout,
		pollInterval:    DefaultPollInterval,
	}
}

// Option configures Begin.
type Option func(*options)

// WithESCs sets the number of ESCs, 1 to MaxESCs.
func WithESCs(n int) Option {
	return func(o *options) { o.escs = n }
}

// WithThrottlePin reads the throttle signal from an RC receiver on pin.
// GenerateThrottle, the default, generates it from SetThrottle.
func WithThrottlePin(pin int) Option {
	return func(o *options) { o.throttlePin = pin }
}

// WithThrottleRange sets the pulse widths of idle and full throttle, in
// microseconds.
func WithThrottleRange(min, max uint16) Option {
	return func(o *options) {
		o.throttleMin = min
		o.throttleMax = max
	}
}

// WithThrottleTolerance widens the accepted external pulse range.
func WithThrottleTolerance(us uint16) Option {
	return func(o *options) { o.tolerance = us }
}

// WithResetThreshold sets the gap, in ticks, above which a pulse is a reset
// marker.
func WithResetThreshold(ticks uint32) Option {
	return func(o *options) { o.resetThreshold = ticks }
}

// WithWatchdogTimeout sets how long the throttle signal may go without a
// valid update.
func WithWatchdogTimeout(d time.Duration) Option {
	return func(o *options) { o.watchdogTimeout = d }
}

// WithLinkLossThreshold sets how many desynchronised cycles in a row report
// an ESC link lost.
func WithLinkLossThreshold(n int) Option {
	return func(o *options) { o.linkLossThreshold = n }
}

// WithPollInterval sets how often Run checks the watchdog.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) { o.pollInterval = d }
}
