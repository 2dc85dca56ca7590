package media

import (
	"image"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// ErrBufferSize is returned when pixel or sample data does not match the
// declared dimensions.
var ErrBufferSize = errors.New("media buffer size does not match its dimensions")

// A VideoFrame is a decoded, non-premultiplied RGBA picture. PTS is in
// milliseconds relative to the start of the stream. Frames are not modified
// once handed to a pipeline.
type VideoFrame struct {
	Width  int
	Height int
	PTS    int64
	// Data holds Width*Height*4 bytes, row major, no padding.
	Data []byte
}

// NewVideoFrame wraps data as a frame after checking its length.
func NewVideoFrame(width, height int, pts int64, data []byte) (*VideoFrame, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("invalid frame dimensions %dx%d", width, height)
	}
	if len(data) != width*height*4 {
		return nil, errors.Wrapf(ErrBufferSize, "expected %d bytes for %dx%d but got %d",
			width*height*4, width, height, len(data))
	}
	return &VideoFrame{Width: width, Height: height, PTS: pts, Data: data}, nil
}

// NewBlankVideoFrame returns a fully transparent black frame.
func NewBlankVideoFrame(width, height int, pts int64) *VideoFrame {
	return &VideoFrame{Width: width, Height: height, PTS: pts, Data: make([]byte, width*height*4)}
}

// VideoFrameFromImage copies any image into a frame.
func VideoFrameFromImage(img image.Image, pts int64) *VideoFrame {
	nrgba := imaging.Clone(img)
	bounds := nrgba.Bounds()
	return &VideoFrame{
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		PTS:    pts,
		Data:   nrgba.Pix,
	}
}

// Image views the frame's pixels as an image without copying.
func (f *VideoFrame) Image() *image.NRGBA {
	return &image.NRGBA{
		Pix:    f.Data,
		Stride: f.Width * 4,
		Rect:   image.Rect(0, 0, f.Width, f.Height),
	}
}

// RGBA views the frame's pixels as straight RGBA without copying. The alpha
// channel is carried as is, which is what encoders expect as they ignore it.
func (f *VideoFrame) RGBA() *image.RGBA {
	return &image.RGBA{
		Pix:    f.Data,
		Stride: f.Width * 4,
		Rect:   image.Rect(0, 0, f.Width, f.Height),
	}
}

// Validate checks that the frame's buffer matches its dimensions.
func (f *VideoFrame) Validate() error {
	if f == nil {
		return errors.New("nil video frame")
	}
	if len(f.Data) != f.Width*f.Height*4 {
		return errors.Wrapf(ErrBufferSize, "frame %dx%d has %d bytes", f.Width, f.Height, len(f.Data))
	}
	return nil
}
