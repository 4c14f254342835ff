package receiver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// All sixteen channels centred.
var crsfCentred = []byte{
	0xc8, 0x18, 0x16, 0xe0, 0x03, 0x1f, 0xf8, 0xc0, 0x07, 0x3e, 0xf0, 0x81, 0x0f, 0x7c,
	0xe0, 0x03, 0x1f, 0xf8, 0xc0, 0x07, 0x3e, 0xf0, 0x81, 0x0f, 0x7c, 0xad,
}

// Channel 3 at minimum, channel 5 at maximum, the rest centred.
var crsfThrottleLow = []byte{
	0xc8, 0x18, 0x16, 0xe0, 0x03, 0x1f, 0x2b, 0xc0, 0x37, 0x71, 0xf0, 0x81, 0x0f, 0x7c,
	0xe0, 0x03, 0x1f, 0xf8, 0xc0, 0x07, 0x3e, 0xf0, 0x81, 0x0f, 0x7c, 0x01,
}

func feedAll(p Parser, data []byte) (frames []Channels) {
	for _, b := range data {
		if ch, ok := p.Feed(b); ok {
			frames = append(frames, ch)
		}
	}
	return frames
}

func TestCRSFProtocol(t *testing.T) {
	p := &CRSFParser{}

	frames := feedAll(p, crsfCentred)
	require.Len(t, frames, 1)
	for i, v := range frames[0] {
		assert.Equal(t, uint16(1500), v, "CH%d", i+1)
	}

	frames = feedAll(p, crsfThrottleLow)
	require.Len(t, frames, 1)
	assert.Equal(t, uint16(988), frames[0][2])
	assert.Equal(t, uint16(2011), frames[0][4])
	assert.Equal(t, uint16(1500), frames[0][0])
	assert.Zero(t, p.Dropped)
}

func TestCRSFResynchronises(t *testing.T) {
	p := &CRSFParser{}

	var stream []byte
	stream = append(stream, 0x00, 0xc8, 0x0c, 0x14) // link statistics header, skipped
	stream = append(stream, 0xc8, 0x18, 0x29)       // wrong frame type
	stream = append(stream, crsfCentred...)

	bad := append([]byte(nil), crsfThrottleLow...)
	bad[10] ^= 0x01
	stream = append(stream, bad...)
	stream = append(stream, crsfThrottleLow...)

	frames := feedAll(p, stream)
	require.Len(t, frames, 2)
	assert.Equal(t, uint16(1500), frames[0][2])
	assert.Equal(t, uint16(988), frames[1][2])
	assert.Equal(t, uint32(1), p.Dropped)
}

func TestCRSFToMicros(t *testing.T) {
	assert.Equal(t, uint16(988), CRSFToMicros(172))
	assert.Equal(t, uint16(1500), CRSFToMicros(992))
	assert.Equal(t, uint16(2011), CRSFToMicros(1811))
}

func TestCRC8(t *testing.T) {
	assert.Equal(t, byte(0xad), crc8(crsfCentred[2:25]))
	assert.Zero(t, crc8(nil))
}
