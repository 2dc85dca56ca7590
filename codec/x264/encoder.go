// Package x264 encodes h264 video with libx264 through mediadevices.
package x264

import (
	"image"

	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"
	"github.com/edaniels/golog"
	mdcodec "github.com/pion/mediadevices/pkg/codec"
	"github.com/pion/mediadevices/pkg/codec/x264"
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/pkg/errors"

	"github.com/edaniels/goencode/codec"
)

type encoder struct {
	codec  mdcodec.ReadCloser
	params codec.VideoParams
	img    image.Image
	logger golog.Logger
}

// NewEncoder returns an h264 encoder for pictures of the given size. libx264
// runs without lookahead so every picture yields one access unit and decode
// order matches presentation order.
func NewEncoder(params codec.VideoParams, logger golog.Logger) (codec.VideoEncoder, error) {
	if params.Width <= 0 || params.Height <= 0 || params.FrameRate <= 0 {
		return nil, errors.Errorf("invalid video parameters %dx%d@%d", params.Width, params.Height, params.FrameRate)
	}
	enc := &encoder{params: params, logger: logger}

	var builder mdcodec.VideoEncoderBuilder
	x264Params, err := x264.NewParams()
	if err != nil {
		return nil, err
	}
	builder = &x264Params
	x264Params.BitRate = params.BitRate
	options := params.OptionsFor(CodecName)
	x264Params.KeyFrameInterval = keyFrameInterval(params.FrameRate, options)
	if err := applyOptions(&x264Params, options, logger); err != nil {
		return nil, err
	}

	videoCodec, err := builder.BuildVideoEncoder(enc, prop.Media{
		Video: prop.Video{
			Width:     params.Width,
			Height:    params.Height,
			FrameRate: float32(params.FrameRate),
		},
	})
	if err != nil {
		return nil, err
	}
	enc.codec = videoCodec

	return enc, nil
}

func (v *encoder) Read() (img image.Image, release func(), err error) {
	return v.img, func() {}, nil
}

func (v *encoder) CodecName() string {
	return CodecName
}

func (v *encoder) TimeBase() codec.Rational {
	return codec.NewRational(1, v.params.FrameRate)
}

func (v *encoder) PixelFormat() codec.PixelFormat {
	return codec.PixelFormatYUV420P
}

func (v *encoder) Encode(img image.Image, pts int64) ([]*codec.Packet, error) {
	if b := img.Bounds(); b.Dx() != v.params.Width || b.Dy() != v.params.Height {
		return nil, errors.Errorf("expected %dx%d picture but got %dx%d",
			v.params.Width, v.params.Height, b.Dx(), b.Dy())
	}
	v.img = img
	data, release, err := v.codec.Read()
	if err != nil {
		return nil, err
	}
	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)
	release()
	if len(dataCopy) == 0 {
		return nil, nil
	}

	var au h264.AnnexB
	if err := au.Unmarshal(dataCopy); err != nil {
		return nil, errors.Wrap(err, "encoder produced a malformed access unit")
	}
	return []*codec.Packet{{
		PTS:      pts,
		DTS:      pts,
		Duration: 1,
		Keyframe: h264.IsRandomAccess(au),
		Data:     dataCopy,
	}}, nil
}

// Flush has nothing to drain since no pictures are held back.
func (v *encoder) Flush() ([]*codec.Packet, error) {
	return nil, nil
}

func (v *encoder) Close() error {
	return v.codec.Close()
}
