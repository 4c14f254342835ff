//go:build tinygo

package main

import (
	"machine"
	"time"

	"github.com/BryanSouza91/castlelink/receiver"
)

var (
	// Channels holds the last RC channel values in microseconds.
	Channels receiver.Channels

	// lastPacketTime is the time of the last valid receiver frame.
	lastPacketTime time.Time

	rxParser receiver.Parser
)

func setupReceiver() error {
	var err error
	rxParser, err = receiver.NewParser(activeProtocol)
	if err != nil {
		return err
	}
	return uart.Configure(machine.UARTConfig{
		BaudRate: activeProtocol.BaudRate(),
		TX:       machine.NoPin,
		RX:       machine.UART_RX_PIN, // iBus/CRSF/ELRS in
	})
}

// HandleReceiverInput drains the UART into the parser. It reports whether a
// complete frame updated Channels.
func HandleReceiverInput() bool {
	updated := false
	for uart.Buffered() > 0 {
		b, err := uart.ReadByte()
		if err != nil {
			break
		}
		if ch, ok := rxParser.Feed(b); ok {
			Channels = ch
			lastPacketTime = time.Now()
			updated = true
		}
	}
	return updated
}

// receiverFresh reports whether a frame arrived within FailsafeTimeout.
func receiverFresh() bool {
	return !lastPacketTime.IsZero() && time.Since(lastPacketTime) <= FailsafeTimeout
}
