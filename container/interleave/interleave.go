// Package interleave orders packets from several streams by decode time before
// they are written to a container.
package interleave

import (
	"math/big"
	"time"

	"github.com/pkg/errors"

	"github.com/edaniels/goencode/codec"
)

// DefaultMaxDelta bounds how far apart buffered streams may drift before the
// interleaver stops waiting for the lagging one.
const DefaultMaxDelta = 10 * time.Second

// An Interleaver buffers packets per stream and releases them in ascending
// decode time. A packet is released once every stream has something buffered,
// or once the buffered span exceeds the maximum delta. It is not safe for
// concurrent use.
type Interleaver struct {
	timeBases []codec.Rational
	queues    [][]*codec.Packet
	maxDelta  *big.Rat
}

// New returns an interleaver with no streams. A non-positive maxDelta selects
// DefaultMaxDelta.
func New(maxDelta time.Duration) *Interleaver {
	if maxDelta <= 0 {
		maxDelta = DefaultMaxDelta
	}
	return &Interleaver{maxDelta: big.NewRat(maxDelta.Nanoseconds(), int64(time.Second))}
}

// AddStream registers a stream whose packets are stamped in tb and returns its
// index.
func (il *Interleaver) AddStream(tb codec.Rational) int {
	il.timeBases = append(il.timeBases, tb)
	il.queues = append(il.queues, nil)
	return len(il.timeBases) - 1
}

// Buffered returns the number of packets held back.
func (il *Interleaver) Buffered() int {
	var n int
	for _, q := range il.queues {
		n += len(q)
	}
	return n
}

// Push buffers pkt and returns the packets now ready to be written, in order.
func (il *Interleaver) Push(pkt *codec.Packet) ([]*codec.Packet, error) {
	if pkt.StreamIndex < 0 || pkt.StreamIndex >= len(il.queues) {
		return nil, errors.Errorf("packet for unknown stream %d", pkt.StreamIndex)
	}
	il.queues[pkt.StreamIndex] = append(il.queues[pkt.StreamIndex], pkt)

	var ready []*codec.Packet
	for {
		idx := il.oldest()
		if idx < 0 {
			return ready, nil
		}
		if !il.allBuffered() && !il.exceedsDelta(idx) {
			return ready, nil
		}
		ready = append(ready, il.pop(idx))
	}
}

// Drain returns every buffered packet in order.
func (il *Interleaver) Drain() []*codec.Packet {
	var out []*codec.Packet
	for {
		idx := il.oldest()
		if idx < 0 {
			return out
		}
		out = append(out, il.pop(idx))
	}
}

func (il *Interleaver) pop(idx int) *codec.Packet {
	pkt := il.queues[idx][0]
	il.queues[idx][0] = nil
	il.queues[idx] = il.queues[idx][1:]
	return pkt
}

func (il *Interleaver) allBuffered() bool {
	for _, q := range il.queues {
		if len(q) == 0 {
			return false
		}
	}
	return true
}

// oldest returns the stream whose head packet decodes first, or -1.
func (il *Interleaver) oldest() int {
	best := -1
	for idx, q := range il.queues {
		if len(q) == 0 {
			continue
		}
		if best < 0 || codec.Compare(
			q[0].Timestamp(), il.timeBases[idx],
			il.queues[best][0].Timestamp(), il.timeBases[best],
		) < 0 {
			best = idx
		}
	}
	return best
}

func (il *Interleaver) exceedsDelta(oldest int) bool {
	start := il.seconds(oldest, il.queues[oldest][0])
	limit := new(big.Rat).Add(start, il.maxDelta)
	for idx, q := range il.queues {
		if len(q) == 0 {
			continue
		}
		if il.seconds(idx, q[len(q)-1]).Cmp(limit) > 0 {
			return true
		}
	}
	return false
}

func (il *Interleaver) seconds(idx int, pkt *codec.Packet) *big.Rat {
	tb := il.timeBases[idx]
	num := new(big.Int).Mul(big.NewInt(pkt.Timestamp()), big.NewInt(int64(tb.Num)))
	return new(big.Rat).SetFrac(num, big.NewInt(int64(tb.Den)))
}
