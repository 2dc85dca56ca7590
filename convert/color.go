// Package convert implements color conversion and audio sample format
// conversion in Go, for backends that do not bring their own.
package convert

import (
	"image"

	"github.com/pion/mediadevices/pkg/io/video"
	"github.com/pkg/errors"

	"github.com/edaniels/goencode/codec"
)

type colorConverter struct {
	width   int
	height  int
	current image.Image
	reader  video.Reader
}

// NewColorConverter returns a converter from RGBA pictures of the given size to
// dst. The picture returned by Convert is only valid until the next call.
func NewColorConverter(width, height int, dst codec.PixelFormat) (codec.ColorConverter, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("invalid converter size %dx%d", width, height)
	}
	c := &colorConverter{width: width, height: height}
	source := video.ReaderFunc(func() (image.Image, func(), error) {
		return c.current, func() {}, nil
	})
	switch dst {
	case codec.PixelFormatYUV420P:
		c.reader = video.ToI420(source)
	case codec.PixelFormatRGBA:
		c.reader = source
	default:
		return nil, errors.Errorf("cannot convert to pixel format %s", dst)
	}
	return c, nil
}

func (c *colorConverter) Convert(img *image.RGBA) (image.Image, error) {
	if b := img.Bounds(); b.Dx() != c.width || b.Dy() != c.height {
		return nil, errors.Errorf("converter expects %dx%d pictures but got %dx%d",
			c.width, c.height, b.Dx(), b.Dy())
	}
	c.current = img
	out, release, err := c.reader.Read()
	c.current = nil
	if release != nil {
		release()
	}
	if err != nil {
		return nil, errors.Wrap(err, "color conversion failed")
	}
	return out, nil
}

func (c *colorConverter) Close() error {
	return nil
}
