package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeZeroReference(t *testing.T) {
	var raw RawData
	raw.Ticks[FrameVoltage] = 1200

	_, err := Decode(raw)
	assert.ErrorIs(t, err, ErrNoData)

	_, err = Scaled(raw, FrameVoltage)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestScaledUnitRatioGivesScaleConstant(t *testing.T) {
	for _, ref := range []uint16{1, 3, 997, 1000, 2000, 65535} {
		var raw RawData
		for i := range raw.Ticks {
			raw.Ticks[i] = ref
		}
		for f := FrameReference; f < DataFrameCount; f++ {
			v, err := Scaled(raw, f)
			require.NoError(t, err)
			assert.Equal(t, Scale[f], v, "frame %s ref %d", f, ref)
		}

		d, err := Decode(raw)
		require.NoError(t, err)
		assert.Equal(t, float32(Scale[FrameVoltage]), d.Voltage)
		assert.Equal(t, float32(Scale[FrameRippleVoltage]), d.RippleVoltage)
		assert.Equal(t, float32(Scale[FrameCurrent]), d.Current)
		assert.Equal(t, float32(Scale[FrameThrottle]), d.Throttle)
		assert.Equal(t, float32(Scale[FrameOutputPower]), d.OutputPower)
		assert.Equal(t, float32(Scale[FrameRPM]), d.RPM)
		assert.Equal(t, float32(Scale[FrameBECVoltage]), d.BECVoltage)
		assert.Equal(t, float32(Scale[FrameBECCurrent]), d.BECCurrent)
		assert.Equal(t, float32(Scale[FrameTemperature1]), d.Temperature1)
	}
}

func TestDecodeTypicalCycle(t *testing.T) {
	raw := RawData{Ticks: [DataFrameCount]uint16{
		1000, // reference
		555,  // 11.1 V
		25,   // 0.1 V ripple
		200,  // 10 A
		1500, // 1.5 ms
		2000, // 0.5004
		490,  // ~10004 eRPM
		1250, // 5 V
		250,  // 1 A
		1000, // 30 C
		0,    // NTC channel unused
	}}

	d, err := Decode(raw)
	require.NoError(t, err)
	assert.InDelta(t, 11.1, d.Voltage, 1e-4)
	assert.InDelta(t, 0.1, d.RippleVoltage, 1e-4)
	assert.InDelta(t, 10, d.Current, 1e-4)
	assert.InDelta(t, 1.5, d.Throttle, 1e-4)
	assert.InDelta(t, 0.5004, d.OutputPower, 1e-4)
	assert.InDelta(t, 10004.183, d.RPM, 1e-2)
	assert.InDelta(t, 5, d.BECVoltage, 1e-4)
	assert.InDelta(t, 1, d.BECCurrent, 1e-4)
	assert.InDelta(t, 30, d.Temperature1, 1e-4)
	assert.Zero(t, d.Temperature2)
	assert.Equal(t, d.Temperature1, d.Temperature())
	assert.InDelta(t, 1429.17, d.ShaftRPM(14), 0.01)
	assert.Zero(t, d.ShaftRPM(0))
}

func TestDecodeNTCTemperature(t *testing.T) {
	var raw RawData
	raw.Ticks[FrameReference] = 1000

	// x = 63.8125 * ratio; the divider is balanced at x*10200/(255-x) = 10000.
	// That is x ~ 126.24, i.e. 25 C at the nominal point.
	raw.Ticks[FrameTemperature2] = 1978
	d, err := Decode(raw)
	require.NoError(t, err)
	assert.InDelta(t, 25, d.Temperature2, 0.5)
	assert.Zero(t, d.Temperature1)
	assert.Equal(t, d.Temperature2, d.Temperature())

	// Out of range readings carry no temperature.
	raw.Ticks[FrameTemperature2] = 4000
	d, err = Decode(raw)
	require.NoError(t, err)
	assert.Zero(t, d.Temperature2)
}

func TestFrameString(t *testing.T) {
	assert.Equal(t, "reset", FrameReset.String())
	assert.Equal(t, "reference", FrameReference.String())
	assert.Equal(t, "temperature2", FrameTemperature2.String())
	assert.Equal(t, "unknown", Frame(11).String())
	assert.False(t, Frame(11).Valid())
	assert.False(t, FrameReset.Valid())
}
