package passthrough

import (
	"image"

	"github.com/edaniels/golog"
	"github.com/pion/mediadevices/pkg/wave"
	"github.com/pkg/errors"

	"github.com/edaniels/goencode/codec"
)

type videoEncoder struct {
	params   codec.VideoParams
	opts     options
	logger   golog.Logger
	pending  []*codec.Packet
	received int
	emitted  int
}

func newVideoEncoder(params codec.VideoParams, opts options, logger golog.Logger) (*videoEncoder, error) {
	if params.Width <= 0 || params.Height <= 0 || params.FrameRate <= 0 {
		return nil, errors.Errorf("invalid video parameters %dx%d@%d", params.Width, params.Height, params.FrameRate)
	}
	return &videoEncoder{params: params, opts: opts, logger: logger}, nil
}

func (e *videoEncoder) CodecName() string {
	return VideoCodecName
}

func (e *videoEncoder) TimeBase() codec.Rational {
	return codec.NewRational(1, e.params.FrameRate)
}

func (e *videoEncoder) PixelFormat() codec.PixelFormat {
	return codec.PixelFormatYUV420P
}

func (e *videoEncoder) Encode(img image.Image, pts int64) ([]*codec.Packet, error) {
	yuv, ok := img.(*image.YCbCr)
	if !ok {
		return nil, errors.Errorf("expected a YCbCr picture but got %T", img)
	}
	if b := yuv.Bounds(); b.Dx() != e.params.Width || b.Dy() != e.params.Height {
		return nil, errors.Errorf("expected %dx%d picture but got %dx%d",
			e.params.Width, e.params.Height, b.Dx(), b.Dy())
	}
	data := make([]byte, 0, len(yuv.Y)+len(yuv.Cb)+len(yuv.Cr))
	data = append(data, yuv.Y...)
	data = append(data, yuv.Cb...)
	data = append(data, yuv.Cr...)

	e.pending = append(e.pending, &codec.Packet{
		PTS:      pts,
		Duration: 1,
		Keyframe: e.opts.gopSize <= 1 || e.received%e.opts.gopSize == 0,
		Data:     data,
	})
	e.received++
	if len(e.pending) <= e.opts.reorderDepth {
		return nil, nil
	}
	return e.emit(len(e.pending) - e.opts.reorderDepth), nil
}

func (e *videoEncoder) emit(n int) []*codec.Packet {
	out := make([]*codec.Packet, 0, n)
	for _, pkt := range e.pending[:n] {
		pkt.DTS = pkt.PTS - int64(e.opts.reorderDepth)
		if e.opts.dtsOverride != nil {
			pkt.DTS = e.opts.dtsOverride(e.emitted, pkt.DTS)
		}
		e.emitted++
		out = append(out, pkt)
	}
	e.pending = append(e.pending[:0], e.pending[n:]...)
	return out
}

func (e *videoEncoder) Flush() ([]*codec.Packet, error) {
	if len(e.pending) == 0 {
		return nil, nil
	}
	e.logger.Debugw("flushing held back pictures", "count", len(e.pending))
	return e.emit(len(e.pending)), nil
}

func (e *videoEncoder) Close() error {
	e.pending = nil
	return nil
}

type audioEncoder struct {
	params codec.AudioParams
	opts   options
}

func newAudioEncoder(params codec.AudioParams, opts options) (*audioEncoder, error) {
	if params.SampleRate <= 0 || params.Channels <= 0 {
		return nil, errors.Errorf("invalid audio parameters %d channels at %d Hz", params.Channels, params.SampleRate)
	}
	return &audioEncoder{params: params, opts: opts}, nil
}

func (e *audioEncoder) CodecName() string {
	return AudioCodecName
}

func (e *audioEncoder) TimeBase() codec.Rational {
	return codec.NewRational(1, e.params.SampleRate)
}

func (e *audioEncoder) FrameSize() int {
	return e.opts.frameSize
}

func (e *audioEncoder) SampleFormat() codec.SampleFormat {
	return e.opts.sampleFormat
}

func (e *audioEncoder) SampleRate() int {
	return e.params.SampleRate
}

func (e *audioEncoder) Channels() int {
	return e.params.Channels
}

func (e *audioEncoder) Encode(chunk wave.Audio, pts int64) ([]*codec.Packet, error) {
	format, err := codec.SampleFormatOf(chunk)
	if err != nil {
		return nil, err
	}
	if format != e.opts.sampleFormat {
		return nil, errors.Errorf("expected %s audio but got %s", e.opts.sampleFormat, format)
	}
	info := chunk.ChunkInfo()
	if e.opts.frameSize > 0 && info.Len > e.opts.frameSize {
		return nil, errors.Errorf("chunk of %d samples exceeds frame size %d", info.Len, e.opts.frameSize)
	}
	if info.Channels != e.params.Channels {
		return nil, errors.Errorf("expected %d channels but got %d", e.params.Channels, info.Channels)
	}
	data, err := codec.AudioBytes(chunk)
	if err != nil {
		return nil, err
	}
	return []*codec.Packet{{
		PTS:      pts,
		DTS:      pts,
		Duration: int64(info.Len),
		Keyframe: true,
		Data:     data,
	}}, nil
}

func (e *audioEncoder) Flush() ([]*codec.Packet, error) {
	return nil, nil
}

func (e *audioEncoder) Close() error {
	return nil
}
