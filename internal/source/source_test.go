package source

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BryanSouza91/castlelink/sequencer"
	"github.com/BryanSouza91/castlelink/telemetry"
)

var cycle = telemetry.RawData{Ticks: [telemetry.DataFrameCount]uint16{
	1000, 555, 25, 200, 1500, 2000, 490, 1250, 250, 1000, 0,
}}

func TestScan(t *testing.T) {
	console := strings.Join([]string{
		"castlelink firmware - Version 0.1.0",
		telemetry.FormatLine(0, cycle),
		"ESC 0 mV: 11100 mA: 10000",
		telemetry.FormatLine(1, cycle) + "\r",
		"CLL,0,0,1,2,3,4,5,6,7,8,9,10", // no reference
	}, "\n")

	out := make(chan Sample, 8)
	var stats Stats
	require.NoError(t, Scan(context.Background(), strings.NewReader(console), out, &stats))
	close(out)

	var got []Sample
	for s := range out {
		got = append(got, s)
	}
	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].ESC)
	assert.Equal(t, 1, got[1].ESC)
	assert.Equal(t, cycle, got[1].Raw)
	assert.InDelta(t, 11.1, got[0].Data.Voltage, 1e-4)
	assert.Equal(t, Stats{Lines: 5, Samples: 2, Skipped: 3}, stats)
}

func TestScanStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := make(chan Sample) // nobody reads
	err := Scan(ctx, strings.NewReader(telemetry.FormatLine(0, cycle)+"\n"), out, nil)
	assert.NoError(t, err)
}

type fakeLink struct {
	mu  sync.Mutex
	raw [sequencer.MaxESCs]telemetry.RawData
	ok  [sequencer.MaxESCs]bool
}

func (l *fakeLink) ESCs() int { return sequencer.MaxESCs }

func (l *fakeLink) GetRawData(i int) (telemetry.RawData, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.raw[i], l.ok[i]
}

func (l *fakeLink) LinkOK(i int) bool { return true }

func (l *fakeLink) set(i int, raw telemetry.RawData) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.raw[i] = raw
	l.ok[i] = true
}

func TestPollSendsNewCycles(t *testing.T) {
	link := &fakeLink{}
	lastESC := sequencer.MaxESCs - 1
	link.set(lastESC, cycle)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := make(chan Sample, 16)
	done := make(chan error, 1)
	go func() { done <- Poll(ctx, link, time.Millisecond, out) }()

	s := <-out
	assert.Equal(t, lastESC, s.ESC)
	assert.True(t, s.LinkOK)

	next := cycle
	next.Ticks[telemetry.FrameVoltage] = 600
	link.set(lastESC, next)
	s = <-out
	assert.InDelta(t, 12, s.Data.Voltage, 1e-4)

	time.Sleep(10 * time.Millisecond)
	assert.Empty(t, out, "unchanged cycles are not resent")

	cancel()
	assert.NoError(t, <-done)
}
