// Package scale holds the small numeric helpers shared by the throttle
// engine and the receiver parsers.
package scale

import "golang.org/x/exp/constraints"

// Constrain clamps value within min and max bounds.
func Constrain[T constraints.Ordered](value, min, max T) T {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// Map maps a value from one range to another. The multiplication happens
// before the division so integer ranges keep their precision; value is not
// clamped.
func Map[T constraints.Integer | constraints.Float](value, fromMin, fromMax, toMin, toMax T) T {
	if fromMax == fromMin {
		return toMin
	}
	return (value-fromMin)*(toMax-toMin)/(fromMax-fromMin) + toMin
}
