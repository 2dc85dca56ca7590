package goencode

import (
	"github.com/pkg/errors"

	"github.com/edaniels/goencode/media"
)

// Composite blends layers bottom to top onto a transparent black canvas, each
// layer weighted by its own alpha, and returns an opaque frame stamped with
// the bottom layer's PTS. Every layer must have the canvas size. With no
// layers the result is an all zero frame at PTS 0.
func Composite(width, height int, layers []*media.VideoFrame) (*media.VideoFrame, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Wrapf(ErrInvalidConfig, "invalid canvas size %dx%d", width, height)
	}
	out := media.NewBlankVideoFrame(width, height, 0)
	if len(layers) == 0 {
		return out, nil
	}
	for i, layer := range layers {
		if err := layer.Validate(); err != nil {
			return nil, errors.Wrapf(err, "layer %d", i)
		}
		if layer.Width != width || layer.Height != height {
			return nil, errors.Wrapf(ErrSizeMismatch, "layer %d is %dx%d but the canvas is %dx%d",
				i, layer.Width, layer.Height, width, height)
		}
	}
	out.PTS = layers[0].PTS

	dst := out.Data
	for _, layer := range layers {
		src := layer.Data
		for i := 0; i < len(dst); i += 4 {
			a := float32(src[i+3]) / 255
			if a == 0 {
				continue
			}
			for c := 0; c < 3; c++ {
				dst[i+c] = uint8(float32(src[i+c])*a + float32(dst[i+c])*(1-a))
			}
		}
	}
	for i := 3; i < len(dst); i += 4 {
		dst[i] = 255
	}
	return out, nil
}
