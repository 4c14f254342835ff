package castlelink

import "time"

// castlelink configuration
// Defaults for every Begin option and the limits they are checked against

// --- ESC Telemetry ---
const (
	MaxESCs               = 2    // ESC telemetry lines decoded at most
	DefaultESCs           = 1    // ESC count when WithESCs is not given
	DefaultResetThreshold = 5000 // ticks; longer gaps are reset markers
)

// --- Throttle Signal ---
const (
	// GenerateThrottle as the throttle pin makes the Link generate the
	// throttle pulse from SetThrottle instead of reading it from a receiver.
	GenerateThrottle = -1

	DefaultThrottleMin       = 1000 // us, level 0
	DefaultThrottleMax       = 2000 // us, level 100
	DefaultThrottleTolerance = 100  // us accepted outside the range on an external signal
	DefaultWatchdogTimeout   = time.Second
)

// --- Time Base ---
const (
	// TickDuration is the length of one counter tick.
	TickDuration = time.Microsecond
	// DefaultPollInterval is how often Run checks the watchdog.
	DefaultPollInterval = 20 * time.Millisecond
)

// NoPin marks a board without the corresponding line.
const NoPin = -1
