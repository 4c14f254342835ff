// Package telemetry holds the Castle Link Live frame model and the
// conversion from raw frame durations to engineering units.
package telemetry

// Frame identifies a position in the telemetry cycle.
type Frame int

// Castle Link Live frames, in the order the ESC sends them after a reset.
const (
	FrameReset         Frame = -1 // no data, marks the start of a cycle
	FrameReference     Frame = 0  // 1-unit calibration time
	FrameVoltage       Frame = 1
	FrameRippleVoltage Frame = 2
	FrameCurrent       Frame = 3
	FrameThrottle      Frame = 4
	FrameOutputPower   Frame = 5
	FrameRPM           Frame = 6
	FrameBECVoltage    Frame = 7
	FrameBECCurrent    Frame = 8
	FrameTemperature1  Frame = 9
	FrameTemperature2  Frame = 10
)

// DataFrameCount is the number of frames in a cycle, not counting the reset.
const DataFrameCount = 11

var frameNames = [DataFrameCount]string{
	"reference",
	"voltage",
	"ripple_voltage",
	"current",
	"throttle",
	"output_power",
	"rpm",
	"bec_voltage",
	"bec_current",
	"temperature1",
	"temperature2",
}

// String returns the frame name used in logs and records.
func (f Frame) String() string {
	if f == FrameReset {
		return "reset"
	}
	if !f.Valid() {
		return "unknown"
	}
	return frameNames[f]
}

// Valid reports whether f indexes a data-carrying slot of a cycle.
func (f Frame) Valid() bool {
	return f >= FrameReference && f < DataFrameCount
}
