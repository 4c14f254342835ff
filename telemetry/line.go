package telemetry

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// LinePrefix starts every raw cycle line the firmware prints on its console.
const LinePrefix = "CLL"

// ErrBadLine is returned by ParseLine for anything that is not a raw cycle line.
var ErrBadLine = errors.New("telemetry: malformed line")

// AppendLine appends "CLL,<esc>,<t0>,...,<t10>" to dst, without a line ending.
// It does not allocate when dst has room, so it can run in the firmware loop.
func AppendLine(dst []byte, esc int, raw RawData) []byte {
	dst = append(dst, LinePrefix...)
	dst = append(dst, ',')
	dst = strconv.AppendInt(dst, int64(esc), 10)
	for _, t := range raw.Ticks {
		dst = append(dst, ',')
		dst = strconv.AppendUint(dst, uint64(t), 10)
	}
	return dst
}

// FormatLine is AppendLine into a fresh string.
func FormatLine(esc int, raw RawData) string {
	return string(AppendLine(make([]byte, 0, 80), esc, raw))
}

// ParseLine decodes a line produced by AppendLine. Surrounding whitespace is ignored.
func ParseLine(line string) (int, RawData, error) {
	var raw RawData
	parts := strings.Split(strings.TrimSpace(line), ",")
	if len(parts) != DataFrameCount+2 || parts[0] != LinePrefix {
		return 0, raw, ErrBadLine
	}
	esc, err := strconv.Atoi(parts[1])
	if err != nil || esc < 0 {
		return 0, raw, fmt.Errorf("%w: esc index %q", ErrBadLine, parts[1])
	}
	for i, p := range parts[2:] {
		v, err := strconv.ParseUint(p, 10, 16)
		if err != nil {
			return 0, raw, fmt.Errorf("%w: frame %s: %v", ErrBadLine, Frame(i), err)
		}
		raw.Ticks[i] = uint16(v)
	}
	return esc, raw, nil
}
