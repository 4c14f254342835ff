package receiver

// iBus framing: two header bytes, 14 little-endian channels and a
// little-endian checksum of 0xFFFF minus the sum of all previous bytes.
const (
	ibusHeader1    = 0x20
	ibusHeader2    = 0x40
	ibusChannels   = 14
	ibusPacketSize = 2 + ibusChannels*2 + 2
)

type ibusState int

const (
	ibusWaitHeader1 ibusState = iota
	ibusWaitHeader2
	ibusPayload
)

// IBusParser decodes FlySky iBus servo frames.
type IBusParser struct {
	state ibusState
	buf   [ibusPacketSize]byte
	n     int
	// Dropped counts frames discarded for a bad checksum.
	Dropped uint32
}

// Feed implements Parser.
func (p *IBusParser) Feed(b byte) (Channels, bool) {
	switch p.state {
	case ibusWaitHeader1:
		if b == ibusHeader1 {
			p.buf[0] = b
			p.state = ibusWaitHeader2
		}
	case ibusWaitHeader2:
		if b == ibusHeader2 {
			p.buf[1] = b
			p.n = 2
			p.state = ibusPayload
		} else if b != ibusHeader1 {
			p.state = ibusWaitHeader1
		}
	case ibusPayload:
		p.buf[p.n] = b
		p.n++
		if p.n == ibusPacketSize {
			p.state = ibusWaitHeader1
			return p.decode()
		}
	}
	return Channels{}, false
}

func (p *IBusParser) decode() (Channels, bool) {
	var ch Channels
	sum := uint16(0xFFFF)
	for _, b := range p.buf[:ibusPacketSize-2] {
		sum -= uint16(b)
	}
	got := uint16(p.buf[ibusPacketSize-2]) | uint16(p.buf[ibusPacketSize-1])<<8
	if sum != got {
		p.Dropped++
		return ch, false
	}
	for i := 0; i < ibusChannels; i++ {
		ch[i] = uint16(p.buf[2+2*i]) | uint16(p.buf[3+2*i])<<8
	}
	return ch, true
}
