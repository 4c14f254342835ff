//go:build tinygo

package main

import (
	"machine"
	"time"

	"github.com/BryanSouza91/castlelink/receiver"
)

// castlelink firmware configuration
// All user-configurable parameters and hardware mappings

// --- Protocol Selection ---
const (
	activeProtocol = receiver.IBus // receiver.IBus, receiver.CRSF or receiver.ELRS
)

// --- ESC Configuration ---
const (
	NumESCs     = 1    // ESCs wired to telemetry lines (1 or 2)
	ThrottleMin = 1000 // us at idle
	ThrottleMax = 2000 // us at full throttle
	MotorPoles  = 14   // magnetic poles, for shaft RPM on the console
)

// --- Timing ---
const (
	LoopInterval      = 10 * time.Millisecond
	TelemetryInterval = 100 * time.Millisecond
	FailsafeTimeout   = 500 * time.Millisecond // receiver silence before throttle updates stop
	WatchdogMillis    = 500
)

// --- Hardware Mappings ---
const (
	ESC1_PIN     = machine.D2 // ESC 1 telemetry line
	ESC2_PIN     = machine.D3 // ESC 2 telemetry line
	THROTTLE_PIN = machine.D9 // Throttle out to the ESCs
	LED_PIN      = machine.LED
)

// --- Channel Mapping ---
const (
	throttleCh = 2 // Rx channel 3
	armCh      = 4 // Rx channel 5
)

// --- Hardware Interfaces ---
var (
	throttlePWM = machine.PWM4 // PWM peripheral of THROTTLE_PIN
	uart        = machine.DefaultUART
)
