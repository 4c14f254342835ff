// Package source produces telemetry samples, either from a Link running on
// this machine or from raw cycle lines printed by the firmware.
package source

import (
	"bufio"
	"context"
	"errors"
	"io"
	"time"

	"go.bug.st/serial"

	"github.com/BryanSouza91/castlelink/sequencer"
	"github.com/BryanSouza91/castlelink/telemetry"
)

// Sample is one decoded cycle of one ESC.
type Sample struct {
	Time   time.Time         `json:"time"`
	ESC    int               `json:"esc"`
	LinkOK bool              `json:"link_ok"`
	Raw    telemetry.RawData `json:"raw"`
	Data   telemetry.Data    `json:"data"`
}

// NewSample decodes raw into a Sample.
func NewSample(now time.Time, esc int, linkOK bool, raw telemetry.RawData) (Sample, error) {
	data, err := telemetry.Decode(raw)
	if err != nil {
		return Sample{}, err
	}
	return Sample{Time: now, ESC: esc, LinkOK: linkOK, Raw: raw, Data: data}, nil
}

// Snapshotter is the part of castlelink.Link the poller reads.
type Snapshotter interface {
	ESCs() int
	GetRawData(i int) (telemetry.RawData, bool)
	LinkOK(i int) bool
}

// Poll samples link every interval and sends each new cycle to out until ctx
// is done. A cycle identical to the previous one of the same ESC is skipped.
func Poll(ctx context.Context, link Snapshotter, interval time.Duration, out chan<- Sample) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last [sequencer.MaxESCs]telemetry.RawData
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			for esc := 0; esc < link.ESCs() && esc < len(last); esc++ {
				raw, ok := link.GetRawData(esc)
				if !ok || raw == last[esc] {
					continue
				}
				last[esc] = raw
				s, err := NewSample(now, esc, link.LinkOK(esc), raw)
				if err != nil {
					continue
				}
				select {
				case out <- s:
				case <-ctx.Done():
					return nil
				}
			}
		}
	}
}

// Stats counts what Scan read.
type Stats struct {
	Lines   int
	Samples int
	Skipped int
}

// Scan reads firmware console lines from r and sends every raw cycle line as
// a Sample to out. Other console output is skipped. It returns at EOF, on a
// read error or when ctx is done.
func Scan(ctx context.Context, r io.Reader, out chan<- Sample, stats *Stats) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if stats != nil {
			stats.Lines++
		}
		esc, raw, err := telemetry.ParseLine(scanner.Text())
		if err == nil {
			var s Sample
			s, err = NewSample(time.Now(), esc, true, raw)
			if err == nil {
				select {
				case out <- s:
				case <-ctx.Done():
					return nil
				}
				if stats != nil {
					stats.Samples++
				}
				continue
			}
		}
		if stats != nil {
			stats.Skipped++
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// OpenSerial opens the firmware console at baud, 8N1.
func OpenSerial(device string, baud int) (serial.Port, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		StopBits: serial.OneStopBit,
		Parity:   serial.NoParity,
	}
	return serial.Open(device, mode)
}
