package ffmpeg

import (
	"image"

	"github.com/asticode/go-astiav"
	"github.com/pion/mediadevices/pkg/wave"
	"github.com/pkg/errors"

	"github.com/edaniels/goencode/codec"
)

// colorConverter converts RGBA pictures with libswscale.
type colorConverter struct {
	width, height int
	ssc           *astiav.SoftwareScaleContext
	src, dst      *astiav.Frame
	img           image.Image
}

func newColorConverter(width, height int, dst codec.PixelFormat) (*colorConverter, error) {
	dstFormat, err := toPixelFormat(dst)
	if err != nil {
		return nil, err
	}
	ssc, err := astiav.CreateSoftwareScaleContext(
		width, height, astiav.PixelFormatRgba,
		width, height, dstFormat,
		astiav.NewSoftwareScaleContextFlags(astiav.SoftwareScaleContextFlagBilinear),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot convert %dx%d rgba to %v", width, height, dst)
	}
	c := &colorConverter{
		width:  width,
		height: height,
		ssc:    ssc,
		src:    astiav.AllocFrame(),
		dst:    astiav.AllocFrame(),
	}
	for _, f := range []struct {
		frame  *astiav.Frame
		format astiav.PixelFormat
	}{{c.src, astiav.PixelFormatRgba}, {c.dst, dstFormat}} {
		f.frame.SetWidth(width)
		f.frame.SetHeight(height)
		f.frame.SetPixelFormat(f.format)
		if err := f.frame.AllocBuffer(1); err != nil {
			c.Close()
			return nil, errors.Wrap(err, "cannot allocate picture")
		}
	}
	if c.img, err = c.dst.Data().GuessImageFormat(); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// Convert returns a picture that is only valid until the next call.
func (c *colorConverter) Convert(img *image.RGBA) (image.Image, error) {
	if b := img.Bounds(); b.Dx() != c.width || b.Dy() != c.height {
		return nil, errors.Errorf("expected %dx%d picture but got %dx%d", c.width, c.height, b.Dx(), b.Dy())
	}
	if err := c.src.Data().FromImage(img); err != nil {
		return nil, err
	}
	if err := c.ssc.ScaleFrame(c.src, c.dst); err != nil {
		return nil, err
	}
	if err := c.dst.Data().ToImage(c.img); err != nil {
		return nil, err
	}
	return c.img, nil
}

func (c *colorConverter) Close() error {
	if c.ssc == nil {
		return nil
	}
	c.src.Free()
	c.dst.Free()
	c.ssc.Free()
	c.ssc = nil
	return nil
}

// resampler converts interleaved float audio with libswresample. Rate and
// channel layout are kept.
type resampler struct {
	params   codec.AudioParams
	layout   astiav.ChannelLayout
	format   codec.SampleFormat
	avFormat astiav.SampleFormat
	swr      *astiav.SoftwareResampleContext
	src, dst *astiav.Frame
}

func newResampler(params codec.AudioParams, dst codec.SampleFormat) (*resampler, error) {
	layout, err := channelLayout(params.Channels)
	if err != nil {
		return nil, err
	}
	avFormat, err := toSampleFormat(dst)
	if err != nil {
		return nil, err
	}
	swr := astiav.AllocSoftwareResampleContext()
	if swr == nil {
		return nil, errors.New("cannot allocate resampler")
	}
	return &resampler{
		params:   params,
		layout:   layout,
		format:   dst,
		avFormat: avFormat,
		swr:      swr,
		src:      astiav.AllocFrame(),
		dst:      astiav.AllocFrame(),
	}, nil
}

func (r *resampler) Resample(chunk *wave.Float32Interleaved) (wave.Audio, error) {
	info := chunk.ChunkInfo()
	if info.Channels != r.params.Channels || info.SamplingRate != r.params.SampleRate {
		return nil, errors.Errorf("resampler configured for %d channels at %d Hz but got %d channels at %d Hz",
			r.params.Channels, r.params.SampleRate, info.Channels, info.SamplingRate)
	}
	data, err := codec.AudioBytes(chunk)
	if err != nil {
		return nil, err
	}

	r.src.Unref()
	r.src.SetSampleFormat(astiav.SampleFormatFlt)
	r.src.SetChannelLayout(r.layout)
	r.src.SetSampleRate(r.params.SampleRate)
	r.src.SetNbSamples(info.Len)
	if err := r.src.AllocBuffer(0); err != nil {
		return nil, err
	}
	if err := r.src.Data().SetBytes(data, 1); err != nil {
		return nil, err
	}

	r.dst.Unref()
	r.dst.SetSampleFormat(r.avFormat)
	r.dst.SetChannelLayout(r.layout)
	r.dst.SetSampleRate(r.params.SampleRate)
	r.dst.SetNbSamples(info.Len)
	if err := r.dst.AllocBuffer(0); err != nil {
		return nil, err
	}
	if err := r.swr.ConvertFrame(r.src, r.dst); err != nil {
		return nil, errors.Wrap(err, "cannot convert audio")
	}
	out, err := r.dst.Data().Bytes(1)
	if err != nil {
		return nil, err
	}
	info.Len = r.dst.NbSamples()
	return codec.AudioFromBytes(r.format, info, out)
}

func (r *resampler) Close() error {
	if r.swr == nil {
		return nil
	}
	r.src.Free()
	r.dst.Free()
	r.swr.Free()
	r.swr = nil
	return nil
}
