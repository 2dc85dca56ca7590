package codec

// A Packet is one compressed unit produced by an encoder. Timestamps are in the
// time base of whoever currently owns the packet: the encoder's until the
// pipeline rescales it to its stream's.
type Packet struct {
	StreamIndex int
	PTS         int64
	DTS         int64
	Duration    int64
	Keyframe    bool
	Data        []byte
}

// RescaleTS converts every timestamp of the packet from one time base to
// another.
func (p *Packet) RescaleTS(from, to Rational) {
	p.PTS = from.Rescale(p.PTS, to)
	p.DTS = from.Rescale(p.DTS, to)
	if p.Duration > 0 {
		p.Duration = from.Rescale(p.Duration, to)
	}
}

// Timestamp returns the DTS if defined and the PTS otherwise.
func (p *Packet) Timestamp() int64 {
	if p.DTS != NoPTS {
		return p.DTS
	}
	return p.PTS
}
