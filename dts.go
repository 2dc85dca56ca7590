package goencode

import "github.com/edaniels/goencode/codec"

// dtsTracker keeps video decode timestamps strictly increasing. Containers
// reject packets whose DTS does not advance, which reordering encoders can
// produce around reconfiguration.
type dtsTracker struct {
	last int64
	set  bool
}

// repair adjusts pkt in place and reports whether its DTS had to be moved.
// The PTS is raised when needed so that it never precedes the DTS.
func (t *dtsTracker) repair(pkt *codec.Packet) bool {
	if pkt.DTS == codec.NoPTS {
		return false
	}
	var repaired bool
	if t.set && pkt.DTS <= t.last {
		pkt.DTS = t.last + 1
		repaired = true
	}
	if pkt.PTS != codec.NoPTS && pkt.PTS < pkt.DTS {
		pkt.PTS = pkt.DTS
	}
	t.last = pkt.DTS
	t.set = true
	return repaired
}
