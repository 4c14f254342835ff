package receiver

// CRSF (Crossfire) framing, shared by TBS Crossfire and ExpressLRS.
const (
	crsfSync           = 0xC8
	crsfTypeRCChannels = 0x16
	crsfRCLength       = 24 // type + 22 payload bytes + CRC
	crsfPacketSize     = 26 // sync + length + crsfRCLength
	crsfChannelMid     = 992
	crsfChannelBits    = 11
	crsfChannelMask    = 1<<crsfChannelBits - 1
	crsfPayloadStart   = 3
	crsfChecksumStart  = 2
)

type crsfState int

const (
	crsfWaitSync crsfState = iota
	crsfLength
	crsfType
	crsfPayload
	crsfChecksum
)

// CRSFParser decodes CRSF RC channel frames. Other frame types are skipped.
type CRSFParser struct {
	state  crsfState
	packet [crsfPacketSize]byte
	index  int
	// Dropped counts frames discarded for a bad CRC.
	Dropped uint32
}

func (p *CRSFParser) reset() {
	p.state = crsfWaitSync
	p.index = 0
}

// Feed implements Parser.
func (p *CRSFParser) Feed(b byte) (Channels, bool) {
	switch p.state {
	case crsfWaitSync:
		if b == crsfSync {
			p.packet[0] = b
			p.index = 1
			p.state = crsfLength
		}
	case crsfLength:
		if b != crsfRCLength {
			p.reset()
			break
		}
		p.packet[p.index] = b
		p.index++
		p.state = crsfType
	case crsfType:
		if b != crsfTypeRCChannels {
			p.reset()
			break
		}
		p.packet[p.index] = b
		p.index++
		p.state = crsfPayload
	case crsfPayload:
		p.packet[p.index] = b
		p.index++
		if p.index == crsfPacketSize-1 {
			p.state = crsfChecksum
		}
	case crsfChecksum:
		p.packet[p.index] = b
		ok := crc8(p.packet[crsfChecksumStart:p.index]) == b
		p.reset()
		if !ok {
			p.Dropped++
			return Channels{}, false
		}
		return unpackChannels(p.packet[crsfPayloadStart : crsfPacketSize-1]), true
	}
	return Channels{}, false
}

// CRSFToMicros converts an 11-bit CRSF channel value to microseconds.
func CRSFToMicros(v uint16) uint16 {
	return uint16((int(v)-crsfChannelMid)*5/8 + 1500)
}

// unpackChannels reads 16 little-endian 11-bit values from the payload.
func unpackChannels(bitstream []byte) Channels {
	var ch Channels
	var bitsMerged uint
	var readValue uint32
	var readByteIndex int

	for n := 0; n < MaxChannels; n++ {
		for bitsMerged < crsfChannelBits {
			if readByteIndex >= len(bitstream) {
				return ch
			}
			readValue |= uint32(bitstream[readByteIndex]) << bitsMerged
			readByteIndex++
			bitsMerged += 8
		}
		ch[n] = CRSFToMicros(uint16(readValue & crsfChannelMask))
		readValue >>= crsfChannelBits
		bitsMerged -= crsfChannelBits
	}
	return ch
}

// crc8 is CRC-8/DVB-S2, polynomial 0xD5.
func crc8(data []byte) byte {
	crc := byte(0)
	for _, b := range data {
		crc ^= b
		for i := 0; i < 8; i++ {
			if crc&0x80 != 0 {
				crc = crc<<1 ^ 0xD5
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
