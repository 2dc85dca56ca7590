package passthrough

import (
	"sync"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"github.com/edaniels/goencode/codec"
	"github.com/edaniels/goencode/container/interleave"
)

// StreamInfo describes a recorded stream.
type StreamInfo struct {
	Index     int
	CodecName string
	TimeBase  codec.Rational
	Audio     bool
	Channels  int
	Format    codec.SampleFormat
}

// A Recording is an in-memory container. Packets are kept in the order they
// would have been written to a file.
type Recording struct {
	filename string
	opts     options
	logger   golog.Logger

	mu             sync.Mutex
	streams        []StreamInfo
	packets        []*codec.Packet
	interleaver    *interleave.Interleaver
	writes         int
	headerWritten  bool
	trailerWritten bool
	closed         bool
}

func newRecording(filename string, opts options, logger golog.Logger) *Recording {
	return &Recording{
		filename:    filename,
		opts:        opts,
		logger:      logger,
		interleaver: interleave.New(interleave.DefaultMaxDelta),
	}
}

type stream struct {
	index    int
	timeBase codec.Rational
}

func (s stream) Index() int               { return s.index }
func (s stream) TimeBase() codec.Rational { return s.timeBase }

// GlobalHeader implements codec.Container.
func (r *Recording) GlobalHeader() bool {
	return false
}

// AddStream implements codec.Container.
func (r *Recording) AddStream(enc codec.Encoder) (codec.Stream, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.headerWritten {
		return nil, errors.New("cannot add a stream after the header")
	}
	info := StreamInfo{
		Index:     len(r.streams),
		CodecName: enc.CodecName(),
		TimeBase:  r.opts.streamTimeBase,
	}
	if audio, ok := enc.(codec.AudioEncoder); ok {
		info.Audio = true
		info.Channels = audio.Channels()
		info.Format = audio.SampleFormat()
	}
	r.streams = append(r.streams, info)
	r.interleaver.AddStream(info.TimeBase)
	return stream{index: info.Index, timeBase: info.TimeBase}, nil
}

// WriteHeader implements codec.Container.
func (r *Recording) WriteHeader() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.streams) == 0 {
		return errors.New("no streams to write")
	}
	if r.headerWritten {
		return errors.New("header already written")
	}
	r.headerWritten = true
	r.logger.Debugw("recording started", "filename", r.filename, "streams", len(r.streams))
	return nil
}

// WriteInterleaved implements codec.Container.
func (r *Recording) WriteInterleaved(pkt *codec.Packet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.headerWritten || r.trailerWritten || r.closed {
		return errors.New("container is not accepting packets")
	}
	r.writes++
	if r.opts.failAfter >= 0 && r.writes > r.opts.failAfter {
		return r.opts.failErr
	}
	ready, err := r.interleaver.Push(pkt)
	if err != nil {
		return err
	}
	r.packets = append(r.packets, ready...)
	return nil
}

// WriteTrailer implements codec.Container.
func (r *Recording) WriteTrailer() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.headerWritten {
		return errors.New("trailer written before header")
	}
	if r.trailerWritten {
		return errors.New("trailer already written")
	}
	r.packets = append(r.packets, r.interleaver.Drain()...)
	r.trailerWritten = true
	return nil
}

// Close implements codec.Container.
func (r *Recording) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return errors.New("recording already closed")
	}
	r.closed = true
	return nil
}

// Streams returns the recorded streams.
func (r *Recording) Streams() []StreamInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]StreamInfo(nil), r.streams...)
}

// Packets returns every written packet in file order.
func (r *Recording) Packets() []*codec.Packet {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*codec.Packet(nil), r.packets...)
}

// StreamPackets returns the written packets of one stream in file order.
func (r *Recording) StreamPackets(index int) []*codec.Packet {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*codec.Packet
	for _, pkt := range r.packets {
		if pkt.StreamIndex == index {
			out = append(out, pkt)
		}
	}
	return out
}

// SampleCount decodes the number of samples per channel carried by an audio
// stream.
func (r *Recording) SampleCount(index int) (int, error) {
	streams := r.Streams()
	if index < 0 || index >= len(streams) || !streams[index].Audio {
		return 0, errors.Errorf("stream %d is not an audio stream", index)
	}
	info := streams[index]
	var total int
	for _, pkt := range r.StreamPackets(index) {
		total += len(pkt.Data)
	}
	return total / (info.Channels * info.Format.BytesPerSample()), nil
}

// HeaderWritten reports whether the header was written.
func (r *Recording) HeaderWritten() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.headerWritten
}

// TrailerWritten reports whether the container was finalized.
func (r *Recording) TrailerWritten() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.trailerWritten
}

// Closed reports whether the container was released.
func (r *Recording) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}
