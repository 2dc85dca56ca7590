package ffmpeg

import (
	"github.com/asticode/go-astiav"
	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/edaniels/goencode/codec"
)

// codecContexter is implemented by the encoders of this package.
type codecContexter interface {
	codecContext() *astiav.CodecContext
}

type stream struct {
	st *astiav.Stream
}

func (s stream) Index() int {
	return s.st.Index()
}

// TimeBase may change when the header is written, so it is read every time.
func (s stream) TimeBase() codec.Rational {
	return fromRational(s.st.TimeBase())
}

type container struct {
	filename string
	logger   golog.Logger

	fc  *astiav.FormatContext
	pb  *astiav.IOContext
	pkt *astiav.Packet

	headerWritten  bool
	trailerWritten bool
}

func newContainer(filename string, logger golog.Logger) (*container, error) {
	fc, err := astiav.AllocOutputFormatContext(nil, "", filename)
	if err != nil {
		return nil, errors.Wrapf(codec.ErrUnknownFormat, "%q: %v", filename, err)
	}
	if fc == nil {
		return nil, errors.Wrapf(codec.ErrUnknownFormat, "%q", filename)
	}
	return &container{
		filename: filename,
		logger:   logger,
		fc:       fc,
		pkt:      astiav.AllocPacket(),
	}, nil
}

func (c *container) GlobalHeader() bool {
	return c.fc.OutputFormat().Flags().Has(astiav.IOFormatFlagGlobalheader)
}

func (c *container) AddStream(enc codec.Encoder) (codec.Stream, error) {
	if c.headerWritten {
		return nil, errors.New("cannot add a stream after the header")
	}
	owner, ok := enc.(codecContexter)
	if !ok {
		return nil, errors.Errorf("encoder %T was not created by the %s backend", enc, Name)
	}
	cc := owner.codecContext()
	st := c.fc.NewStream(nil)
	if st == nil {
		return nil, errors.New("cannot allocate stream")
	}
	if err := cc.ToCodecParameters(st.CodecParameters()); err != nil {
		return nil, errors.Wrap(err, "cannot copy codec parameters")
	}
	st.SetTimeBase(cc.TimeBase())
	return stream{st: st}, nil
}

func (c *container) WriteHeader() error {
	if c.headerWritten {
		return errors.New("header already written")
	}
	if !c.fc.OutputFormat().Flags().Has(astiav.IOFormatFlagNofile) {
		pb, err := astiav.OpenIOContext(c.filename, astiav.NewIOContextFlags(astiav.IOContextFlagWrite), nil, nil)
		if err != nil {
			return errors.Wrapf(err, "cannot open %q", c.filename)
		}
		c.pb = pb
		c.fc.SetPb(pb)
	}
	if err := c.fc.WriteHeader(nil); err != nil {
		return err
	}
	c.headerWritten = true
	c.logger.Debugw("container opened", "filename", c.filename, "format", c.fc.OutputFormat().Name(), "streams", c.fc.NbStreams())
	return nil
}

func (c *container) WriteInterleaved(pkt *codec.Packet) error {
	if !c.headerWritten || c.trailerWritten {
		return errors.New("container is not accepting packets")
	}
	c.pkt.Unref()
	if err := c.pkt.FromData(pkt.Data); err != nil {
		return errors.Wrap(err, "cannot copy packet data")
	}
	c.pkt.SetStreamIndex(pkt.StreamIndex)
	c.pkt.SetPts(pkt.PTS)
	c.pkt.SetDts(pkt.DTS)
	c.pkt.SetDuration(pkt.Duration)
	if pkt.Keyframe {
		c.pkt.SetFlags(c.pkt.Flags().Add(astiav.PacketFlagKey))
	}
	// the muxer takes ownership of the packet's data
	return c.fc.WriteInterleavedFrame(c.pkt)
}

func (c *container) WriteTrailer() error {
	if !c.headerWritten {
		return errors.New("trailer written before header")
	}
	if c.trailerWritten {
		return errors.New("trailer already written")
	}
	c.trailerWritten = true
	return c.fc.WriteTrailer()
}

func (c *container) Close() error {
	if c.fc == nil {
		return nil
	}
	var err error
	if c.pb != nil {
		err = multierr.Append(err, c.pb.Close())
		c.pb.Free()
		c.pb = nil
	}
	c.pkt.Free()
	c.fc.Free()
	c.fc = nil
	return err
}
