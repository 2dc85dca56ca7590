// Package mpegts writes h264 and opus streams into an MPEG transport stream
// file.
package mpegts

import (
	"bufio"
	"os"

	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"
	"github.com/bluenviron/mediacommon/v2/pkg/formats/mpegts"
	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/edaniels/goencode/codec"
	"github.com/edaniels/goencode/container/interleave"
)

// TimeBase is the 90kHz clock every transport stream timestamp uses.
var TimeBase = codec.NewRational(1, 90000)

const firstPID = 0x0100

// Extensions are the filename suffixes NewContainer is meant for.
var Extensions = []string{".ts", ".m2ts", ".mts"}

type stream struct {
	index int
	track *mpegts.Track
}

func (s *stream) Index() int               { return s.index }
func (s *stream) TimeBase() codec.Rational { return TimeBase }

// Container multiplexes packets into a transport stream. Tracks are fixed once
// the header is written.
type Container struct {
	filename string
	logger   golog.Logger

	file        *os.File
	buf         *bufio.Writer
	writer      *mpegts.Writer
	streams     []*stream
	interleaver *interleave.Interleaver

	headerWritten  bool
	trailerWritten bool
	closed         bool
}

// NewContainer prepares a transport stream for filename. The file is only
// created by WriteHeader.
func NewContainer(filename string, logger golog.Logger) (*Container, error) {
	if filename == "" {
		return nil, errors.New("filename required")
	}
	return &Container{
		filename:    filename,
		logger:      logger,
		interleaver: interleave.New(interleave.DefaultMaxDelta),
	}, nil
}

// GlobalHeader implements codec.Container. Parameter sets travel in band.
func (c *Container) GlobalHeader() bool {
	return false
}

// AddStream implements codec.Container.
func (c *Container) AddStream(enc codec.Encoder) (codec.Stream, error) {
	if c.headerWritten {
		return nil, errors.New("cannot add a stream after the header")
	}
	var trackCodec mpegts.Codec
	switch enc.CodecName() {
	case "h264":
		trackCodec = &mpegts.CodecH264{}
	case "opus":
		audio, ok := enc.(codec.AudioEncoder)
		if !ok {
			return nil, errors.Errorf("opus stream needs an audio encoder, got %T", enc)
		}
		if audio.SampleRate() != 48000 {
			return nil, errors.Errorf("opus in transport streams must be 48000 Hz, got %d", audio.SampleRate())
		}
		trackCodec = &mpegts.CodecOpus{ChannelCount: audio.Channels()}
	default:
		return nil, errors.Wrapf(codec.ErrUnknownCodec, "%q cannot be carried in a transport stream", enc.CodecName())
	}
	s := &stream{
		index: len(c.streams),
		track: &mpegts.Track{PID: uint16(firstPID + len(c.streams)), Codec: trackCodec},
	}
	c.streams = append(c.streams, s)
	c.interleaver.AddStream(TimeBase)
	return s, nil
}

// WriteHeader implements codec.Container.
func (c *Container) WriteHeader() error {
	if c.closed {
		return errors.New("container closed")
	}
	if c.headerWritten {
		return errors.New("header already written")
	}
	if len(c.streams) == 0 {
		return errors.New("no streams to write")
	}
	//nolint:gosec
	f, err := os.Create(c.filename)
	if err != nil {
		return errors.Wrapf(err, "cannot create %q", c.filename)
	}
	c.file = f
	c.buf = bufio.NewWriter(f)
	tracks := make([]*mpegts.Track, 0, len(c.streams))
	for _, s := range c.streams {
		tracks = append(tracks, s.track)
	}
	c.writer = &mpegts.Writer{W: c.buf, Tracks: tracks}
	if err := c.writer.Initialize(); err != nil {
		err = multierr.Combine(err, f.Close(), os.Remove(c.filename))
		c.file, c.buf, c.writer = nil, nil, nil
		return errors.Wrap(err, "cannot initialize transport stream writer")
	}
	c.headerWritten = true
	c.logger.Debugw("transport stream opened", "filename", c.filename, "tracks", len(tracks))
	return nil
}

// WriteInterleaved implements codec.Container.
func (c *Container) WriteInterleaved(pkt *codec.Packet) error {
	if !c.headerWritten || c.trailerWritten || c.closed {
		return errors.New("container is not accepting packets")
	}
	if pkt.PTS == codec.NoPTS {
		return errors.Errorf("packet of stream %d has no presentation time", pkt.StreamIndex)
	}
	ready, err := c.interleaver.Push(pkt)
	if err != nil {
		return err
	}
	return c.write(ready)
}

func (c *Container) write(pkts []*codec.Packet) error {
	for _, pkt := range pkts {
		if err := c.writePacket(pkt); err != nil {
			return err
		}
	}
	return nil
}

func (c *Container) writePacket(pkt *codec.Packet) error {
	s := c.streams[pkt.StreamIndex]
	switch s.track.Codec.(type) {
	case *mpegts.CodecH264:
		var au h264.AnnexB
		if err := au.Unmarshal(pkt.Data); err != nil {
			return errors.Wrap(err, "cannot split access unit")
		}
		dts := pkt.DTS
		if dts == codec.NoPTS {
			dts = pkt.PTS
		}
		return c.writer.WriteH264(s.track, pkt.PTS, dts, au)
	case *mpegts.CodecOpus:
		return c.writer.WriteOpus(s.track, pkt.PTS, [][]byte{pkt.Data})
	default:
		return errors.Errorf("unsupported track codec %T", s.track.Codec)
	}
}

// WriteTrailer implements codec.Container. Transport streams have no trailer;
// the remaining packets are written and the file is flushed.
func (c *Container) WriteTrailer() error {
	if !c.headerWritten {
		return errors.New("trailer written before header")
	}
	if c.trailerWritten {
		return errors.New("trailer already written")
	}
	c.trailerWritten = true
	if err := c.write(c.interleaver.Drain()); err != nil {
		return err
	}
	return c.buf.Flush()
}

// Close implements codec.Container. A container closed before its header
// leaves no file behind.
func (c *Container) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if c.file == nil {
		return nil
	}
	var err error
	if c.headerWritten && !c.trailerWritten {
		c.logger.Debugw("closing unfinished transport stream", "filename", c.filename)
		err = c.buf.Flush()
	}
	err = multierr.Combine(err, c.file.Close())
	c.file = nil
	return err
}
