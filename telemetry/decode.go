package telemetry

import (
	"errors"
	"math"
)

// ErrNoData is returned when a sample has no usable reference frame.
var ErrNoData = errors.New("telemetry: no data")

// Scale holds the protocol calibration constant for every frame: the value a
// frame carries when its duration equals the reference duration.
var Scale = [DataFrameCount]float64{
	FrameReference:     1,
	FrameVoltage:       20,
	FrameRippleVoltage: 4,
	FrameCurrent:       50,
	FrameThrottle:      1, // milliseconds
	FrameOutputPower:   0.2502,
	FrameRPM:           20416.7,
	FrameBECVoltage:    4,
	FrameBECCurrent:    4,
	FrameTemperature1:  30,
	FrameTemperature2:  63.8125,
}

// NTC thermistor constants used by the temperature 2 frame.
const (
	ntcBeta       = 3455
	ntcSeries     = 10200
	ntcNominal    = 10000
	ntcNominalK   = 298
	ntcFullScale  = 255
	kelvinOffsetC = 273
)

// RawData is one completed cycle of frame durations, in counter ticks.
type RawData struct {
	Ticks [DataFrameCount]uint16 `json:"ticks"`
}

// Reference returns the calibration duration of the cycle.
func (r RawData) Reference() uint16 {
	return r.Ticks[FrameReference]
}

// Data is a decoded telemetry sample.
type Data struct {
	Voltage       float32 `json:"voltage"`
	RippleVoltage float32 `json:"ripple_voltage"`
	Current       float32 `json:"current"`
	Throttle      float32 `json:"throttle"`     // pulse duration seen by the ESC, ms
	OutputPower   float32 `json:"output_power"` // 0.0 idle to 1.0 full power
	RPM           float32 `json:"rpm"`          // electrical RPM
	BECVoltage    float32 `json:"bec_voltage"`
	BECCurrent    float32 `json:"bec_current"`
	Temperature1  float32 `json:"temperature1"`
	Temperature2  float32 `json:"temperature2"`
}

// Temperature returns the populated temperature reading. ESCs report either
// the linear or the NTC channel; the linear one wins when both are set.
func (d Data) Temperature() float32 {
	if d.Temperature1 != 0 {
		return d.Temperature1
	}
	return d.Temperature2
}

// ShaftRPM converts electrical RPM into shaft RPM for a motor with the given
// number of magnetic poles.
func (d Data) ShaftRPM(poles int) float32 {
	if poles <= 0 {
		return 0
	}
	return d.RPM / float32(poles) * 2
}

// Scaled returns ticks[f] / ticks[reference] * Scale[f]. A frame as long as the
// reference yields exactly its scale constant.
func Scaled(raw RawData, f Frame) (float64, error) {
	ref := raw.Reference()
	if ref == 0 {
		return 0, ErrNoData
	}
	if !f.Valid() {
		return 0, errors.New("telemetry: invalid frame " + f.String())
	}
	return float64(raw.Ticks[f]) / float64(ref) * Scale[f], nil
}

// Decode converts a raw cycle into engineering units.
func Decode(raw RawData) (Data, error) {
	if raw.Reference() == 0 {
		return Data{}, ErrNoData
	}

	var v [DataFrameCount]float64
	for f := FrameVoltage; f < DataFrameCount; f++ {
		v[f], _ = Scaled(raw, f)
	}

	return Data{
		Voltage:       float32(v[FrameVoltage]),
		RippleVoltage: float32(v[FrameRippleVoltage]),
		Current:       float32(v[FrameCurrent]),
		Throttle:      float32(v[FrameThrottle]),
		OutputPower:   float32(v[FrameOutputPower]),
		RPM:           float32(v[FrameRPM]),
		BECVoltage:    float32(v[FrameBECVoltage]),
		BECCurrent:    float32(v[FrameBECCurrent]),
		Temperature1:  float32(v[FrameTemperature1]),
		Temperature2:  float32(ntcCelsius(v[FrameTemperature2])),
	}, nil
}

// ntcCelsius converts the scaled NTC reading into degrees Celsius. Readings
// outside the divider range carry no temperature.
func ntcCelsius(x float64) float64 {
	if x <= 0 || x >= ntcFullScale {
		return 0
	}
	r := x * ntcSeries / (ntcFullScale - x) / ntcNominal
	return 1/(math.Log(r)/ntcBeta+1.0/ntcNominalK) - kelvinOffsetC
}
