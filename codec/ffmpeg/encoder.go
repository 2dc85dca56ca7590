package ffmpeg

import (
	"image"

	"github.com/asticode/go-astiav"
	"github.com/edaniels/golog"
	"github.com/pion/mediadevices/pkg/wave"
	"github.com/pkg/errors"

	"github.com/edaniels/goencode/codec"
)

// encoder holds what audio and video encoders share: an opened codec context
// and the frame handed to it.
type encoder struct {
	name   string
	cc     *astiav.CodecContext
	frame  *astiav.Frame
	pkt    *astiav.Packet
	logger golog.Logger
}

func allocEncoder(codecName string, logger golog.Logger) (*encoder, *astiav.Codec, error) {
	c := astiav.FindEncoderByName(codecName)
	if c == nil {
		return nil, nil, errors.Wrapf(codec.ErrUnknownCodec, "%q", codecName)
	}
	cc := astiav.AllocCodecContext(c)
	if cc == nil {
		return nil, nil, errors.Errorf("cannot allocate codec context for %q", codecName)
	}
	return &encoder{
		name:   c.Name(),
		cc:     cc,
		frame:  astiav.AllocFrame(),
		pkt:    astiav.AllocPacket(),
		logger: logger,
	}, c, nil
}

func (e *encoder) open(c *astiav.Codec, globalHeader bool, options map[string]string) error {
	if globalHeader {
		e.cc.SetFlags(e.cc.Flags().Add(astiav.CodecContextFlagGlobalHeader))
	}
	var dict *astiav.Dictionary
	if len(options) > 0 {
		dict = astiav.NewDictionary()
		defer dict.Free()
		for k, v := range options {
			if err := dict.Set(k, v, 0); err != nil {
				return errors.Wrapf(err, "cannot set option %s=%s", k, v)
			}
		}
	}
	if err := e.cc.Open(c, dict); err != nil {
		return errors.Wrapf(err, "cannot open encoder %q", e.name)
	}
	return nil
}

func (e *encoder) codecContext() *astiav.CodecContext {
	return e.cc
}

func (e *encoder) CodecName() string {
	return e.cc.CodecID().Name()
}

func (e *encoder) TimeBase() codec.Rational {
	return fromRational(e.cc.TimeBase())
}

// send submits frame, nil meaning end of stream, and collects every packet
// the encoder is ready to emit.
func (e *encoder) send(frame *astiav.Frame) ([]*codec.Packet, error) {
	if err := sendFrameError(e.cc.SendFrame(frame)); err != nil {
		return nil, err
	}
	var out []*codec.Packet
	for {
		if err := e.cc.ReceivePacket(e.pkt); err != nil {
			if errors.Is(err, astiav.ErrEagain) || errors.Is(err, astiav.ErrEof) {
				return out, nil
			}
			return out, err
		}
		out = append(out, fromPacket(e.pkt))
		e.pkt.Unref()
	}
}

// sendFrameError rejects every failure to submit a frame. Since packets are
// drained after each frame, EAGAIN means the frame was not taken.
func sendFrameError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, astiav.ErrEagain) {
		return errors.Wrap(err, "encoder refused a frame while drained")
	}
	return errors.Wrap(err, "cannot send frame to encoder")
}

func (e *encoder) Flush() ([]*codec.Packet, error) {
	return e.send(nil)
}

func (e *encoder) Close() error {
	if e.cc == nil {
		return nil
	}
	e.pkt.Free()
	e.frame.Free()
	e.cc.Free()
	e.cc = nil
	return nil
}

type videoEncoder struct {
	*encoder
	params codec.VideoParams
}

func newVideoEncoder(codecName string, params codec.VideoParams, logger golog.Logger) (*videoEncoder, error) {
	e, c, err := allocEncoder(codecName, logger)
	if err != nil {
		return nil, err
	}
	if c.ID().MediaType() != astiav.MediaTypeVideo {
		e.Close()
		return nil, errors.Wrapf(codec.ErrUnknownCodec, "%q is not a video encoder", codecName)
	}
	e.cc.SetWidth(params.Width)
	e.cc.SetHeight(params.Height)
	e.cc.SetPixelFormat(astiav.PixelFormatYuv420P)
	e.cc.SetTimeBase(astiav.NewRational(1, params.FrameRate))
	e.cc.SetFramerate(astiav.NewRational(params.FrameRate, 1))
	e.cc.SetBitRate(int64(params.BitRate))
	if err := e.open(c, params.GlobalHeader, params.OptionsFor(c.ID().Name())); err != nil {
		e.Close()
		return nil, err
	}

	e.frame.SetWidth(params.Width)
	e.frame.SetHeight(params.Height)
	e.frame.SetPixelFormat(astiav.PixelFormatYuv420P)
	if err := e.frame.AllocBuffer(0); err != nil {
		e.Close()
		return nil, errors.Wrap(err, "cannot allocate picture")
	}
	return &videoEncoder{encoder: e, params: params}, nil
}

func (v *videoEncoder) PixelFormat() codec.PixelFormat {
	return codec.PixelFormatYUV420P
}

func (v *videoEncoder) Encode(img image.Image, pts int64) ([]*codec.Packet, error) {
	if b := img.Bounds(); b.Dx() != v.params.Width || b.Dy() != v.params.Height {
		return nil, errors.Errorf("expected %dx%d picture but got %dx%d",
			v.params.Width, v.params.Height, b.Dx(), b.Dy())
	}
	// the encoder may still reference the previous picture
	if err := v.frame.MakeWritable(); err != nil {
		return nil, err
	}
	if err := v.frame.Data().FromImage(img); err != nil {
		return nil, errors.Wrap(err, "cannot fill picture")
	}
	v.frame.SetPts(pts)
	return v.send(v.frame)
}

type audioEncoder struct {
	*encoder
	params    codec.AudioParams
	format    codec.SampleFormat
	layout    astiav.ChannelLayout
	frameSize int
}

func newAudioEncoder(codecName string, params codec.AudioParams, logger golog.Logger) (*audioEncoder, error) {
	e, c, err := allocEncoder(codecName, logger)
	if err != nil {
		return nil, err
	}
	if c.ID().MediaType() != astiav.MediaTypeAudio {
		e.Close()
		return nil, errors.Wrapf(codec.ErrUnknownCodec, "%q is not an audio encoder", codecName)
	}
	layout, err := channelLayout(params.Channels)
	if err != nil {
		e.Close()
		return nil, err
	}
	format, avFormat, err := pickSampleFormat(c)
	if err != nil {
		e.Close()
		return nil, err
	}
	e.cc.SetSampleRate(params.SampleRate)
	e.cc.SetChannelLayout(layout)
	e.cc.SetSampleFormat(avFormat)
	e.cc.SetTimeBase(astiav.NewRational(1, params.SampleRate))
	e.cc.SetBitRate(int64(params.BitRate))
	if err := e.open(c, params.GlobalHeader, nil); err != nil {
		e.Close()
		return nil, err
	}

	// zero for encoders taking any number of samples per frame
	return &audioEncoder{
		encoder:   e,
		params:    params,
		format:    format,
		layout:    layout,
		frameSize: e.cc.FrameSize(),
	}, nil
}

// pickSampleFormat returns the first sample format the encoder supports that
// resamplers can produce.
func pickSampleFormat(c *astiav.Codec) (codec.SampleFormat, astiav.SampleFormat, error) {
	supported := c.SampleFormats()
	for _, f := range supported {
		if format, ok := fromSampleFormat(f); ok {
			return format, f, nil
		}
	}
	return 0, astiav.SampleFormatNone, errors.Errorf("encoder %q supports none of the sample formats %v", c.Name(), supported)
}

func (a *audioEncoder) FrameSize() int {
	return a.frameSize
}

func (a *audioEncoder) SampleFormat() codec.SampleFormat {
	return a.format
}

func (a *audioEncoder) SampleRate() int {
	return a.params.SampleRate
}

func (a *audioEncoder) Channels() int {
	return a.params.Channels
}

func (a *audioEncoder) Encode(chunk wave.Audio, pts int64) ([]*codec.Packet, error) {
	format, err := codec.SampleFormatOf(chunk)
	if err != nil {
		return nil, err
	}
	if format != a.format {
		return nil, errors.Errorf("expected %s audio but got %s", a.format, format)
	}
	info := chunk.ChunkInfo()
	if a.frameSize > 0 && info.Len > a.frameSize {
		return nil, errors.Errorf("chunk of %d samples exceeds frame size %d", info.Len, a.frameSize)
	}
	data, err := codec.AudioBytes(chunk)
	if err != nil {
		return nil, err
	}
	avFormat, err := toSampleFormat(format)
	if err != nil {
		return nil, err
	}

	// a fresh buffer per chunk since the last one may be shorter
	a.frame.Unref()
	a.frame.SetSampleFormat(avFormat)
	a.frame.SetChannelLayout(a.layout)
	a.frame.SetSampleRate(a.params.SampleRate)
	a.frame.SetNbSamples(info.Len)
	if err := a.frame.AllocBuffer(0); err != nil {
		return nil, errors.Wrap(err, "cannot allocate audio frame")
	}
	if err := a.frame.Data().SetBytes(data, 1); err != nil {
		return nil, errors.Wrap(err, "cannot fill audio frame")
	}
	a.frame.SetPts(pts)
	return a.send(a.frame)
}
