package main

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BryanSouza91/castlelink/internal/source"
	"github.com/BryanSouza91/castlelink/internal/store"
	"github.com/BryanSouza91/castlelink/telemetry"
)

func TestStoreSummary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cll.db")
	rec, err := store.Open(path)
	require.NoError(t, err)
	defer rec.Close()

	raw := telemetry.RawData{Ticks: [telemetry.DataFrameCount]uint16{
		1000, 555, 25, 200, 1500, 2000, 490, 1250, 250, 1000, 0,
	}}
	s, err := source.NewSample(time.Now(), 1, true, raw)
	require.NoError(t, err)
	require.NoError(t, rec.Record(s))

	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	storeSummary(rec, path)
	assert.Contains(t, buf.String(), "store: 1 rows in "+path)
	assert.Contains(t, buf.String(), "store: esc 1 last at")
	assert.Contains(t, buf.String(), "11.10 V 10.00 A")
	assert.NotContains(t, buf.String(), "esc 0 last")
}
