//go:build tinygo

package main

import (
	"machine"
	"sync/atomic"
	"time"

	"github.com/BryanSouza91/castlelink"
	"github.com/BryanSouza91/castlelink/hal/mcu"
	"github.com/BryanSouza91/castlelink/receiver"
	"github.com/BryanSouza91/castlelink/telemetry"
)

const Version = "0.1.0"

// State machine states
const (
	INITIALIZATION linkState = iota
	WAITING
	ARMED
	FAILSAFE
)

type linkState int

var (
	link     castlelink.Link
	watchdog = machine.Watchdog

	// Set from handler context, read by the main loop.
	throttlePresent atomic.Bool
	escLinkUp       [castlelink.MaxESCs]atomic.Bool

	lineBuf [96]byte
)

// Main program loop
func main() {
	time.Sleep(2 * time.Second)
	// Print startup message
	println("castlelink firmware - Version", Version)
	println("Castle Link Live telemetry with receiver throttle")

	ticker := time.NewTicker(LoopInterval)
	defer ticker.Stop()

	var lastTelemetry time.Time
	lastState := INITIALIZATION
	state := INITIALIZATION
	println("Entering INITIALIZATION state...")
	for {
		<-ticker.C

		if state != INITIALIZATION {
			HandleReceiverInput()
		}
		throttleUs := Channels[throttleCh]
		armed := receiver.Switch(Channels[armCh])

		// Stop feeding the throttle engine once the receiver goes quiet;
		// its watchdog then withdraws the signal.
		if state == ARMED && !receiverFresh() {
			link.ThrottleDisarm()
			println("Receiver lost. Entering FAILSAFE state...")
			lastState, state = state, FAILSAFE
		}

		switch state {
		case INITIALIZATION:
			if err := setup(); err != nil {
				for {
					println("setup failed:", err.Error())
					time.Sleep(time.Second)
				}
			}
			watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: WatchdogMillis})
			watchdog.Start()
			println("Initialization complete. Entering WAITING state...")
			lastState, state = state, WAITING

		case WAITING:
			if receiverFresh() {
				link.SetThrottle(receiver.ThrottleLevel(throttleUs, ThrottleMin, ThrottleMax))
			}
			// After a failsafe the arm switch has to be cycled.
			if lastState == FAILSAFE && armed {
				break
			}
			lastState = WAITING
			// Arming needs the throttle stick at idle.
			if armed && receiverFresh() && receiver.ThrottleLevel(throttleUs, ThrottleMin, ThrottleMax) == 0 {
				link.ThrottleArm()
				println("Armed.")
				lastState, state = state, ARMED
			}

		case ARMED:
			if !armed {
				link.ThrottleDisarm()
				println("Disarmed. Entering WAITING state...")
				lastState, state = state, WAITING
				break
			}
			link.SetThrottle(receiver.ThrottleLevel(throttleUs, ThrottleMin, ThrottleMax))

		case FAILSAFE:
			if receiverFresh() {
				println("Receiver back. Entering WAITING state...")
				lastState, state = state, WAITING
			}

		default:
			state = WAITING // Fallback to a safe state
		}

		link.Poll()
		if state != INITIALIZATION && time.Since(lastTelemetry) >= TelemetryInterval {
			lastTelemetry = time.Now()
			reportTelemetry()
		}

		// Keep the watchdog happy
		watchdog.Update()
	}
}

func setup() error {
	escPins := []machine.Pin{ESC1_PIN, ESC2_PIN}
	board, err := mcu.New(mcu.Config{
		ESCPins:     escPins[:NumESCs],
		ThrottleOut: THROTTLE_PIN,
		ThrottlePWM: throttlePWM,
		LED:         LED_PIN,
	})
	if err != nil {
		return err
	}
	if err := link.Init(board); err != nil {
		return err
	}
	link.AttachThrottlePresenceHandler(func(valid bool) {
		throttlePresent.Store(valid)
	})
	link.AttachLinkHandler(func(esc int, ok bool) {
		escLinkUp[esc].Store(ok)
	})
	if err := link.Begin(
		castlelink.WithESCs(NumESCs),
		castlelink.WithThrottleRange(ThrottleMin, ThrottleMax),
	); err != nil {
		return err
	}
	println("Castle link started for", NumESCs, "ESC(s).")

	if err := setupReceiver(); err != nil {
		return err
	}
	println("UART configured for receiver input:", activeProtocol.String())
	return nil
}

// reportTelemetry writes one raw line per ESC to the USB console, for the
// host daemon, and a short human readable summary.
func reportTelemetry() {
	for esc := 0; esc < NumESCs; esc++ {
		raw, ok := link.GetRawData(esc)
		if !ok || !escLinkUp[esc].Load() {
			continue
		}
		line := telemetry.AppendLine(lineBuf[:0], esc, raw)
		line = append(line, '\r', '\n')
		machine.Serial.Write(line)

		if data, err := telemetry.Decode(raw); err == nil {
			println("ESC", esc, "mV:", int(data.Voltage*1000), "mA:", int(data.Current*1000),
				"RPM:", int(data.ShaftRPM(MotorPoles)), "T:", int(data.Temperature()),
				"throttle ok:", throttlePresent.Load())
		}
	}
}
