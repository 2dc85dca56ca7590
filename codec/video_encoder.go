// Package codec defines the encoder, converter and container interfaces a
// pipeline drives, along with the packet and time base types they share.
package codec

import (
	"image"
)

// VideoParams configures a video encoder.
type VideoParams struct {
	Width     int
	Height    int
	FrameRate int
	BitRate   int
	// Options are encoder specific tunables, applied when the encoder knows
	// them.
	Options map[string]string
	// H264Options are applied before Options, and only by encoders producing
	// H.264.
	H264Options map[string]string
	// GlobalHeader asks the encoder to emit codec configuration out of band.
	GlobalHeader bool
}

// An Encoder is the part common to audio and video encoders.
type Encoder interface {
	// CodecName identifies the bitstream produced, e.g. "h264" or "opus".
	CodecName() string

	// TimeBase is the unit of the timestamps taken and returned by the encoder.
	TimeBase() Rational

	// Flush signals end of stream and returns every packet still buffered.
	Flush() ([]*Packet, error)

	Close() error
}

// A VideoEncoder turns pictures into packets. It may hold pictures back to
// reorder them, in which case Encode returns fewer packets than it was given
// pictures until Flush.
type VideoEncoder interface {
	Encoder

	// PixelFormat is the layout pictures passed to Encode must have.
	PixelFormat() PixelFormat

	Encode(img image.Image, pts int64) ([]*Packet, error)
}

// A ColorConverter converts RGBA pictures of a fixed size into an encoder's
// pixel format.
type ColorConverter interface {
	Convert(img *image.RGBA) (image.Image, error)
	Close() error
}

// OptionsFor returns the options an encoder producing codecName applies.
func (p VideoParams) OptionsFor(codecName string) map[string]string {
	out := map[string]string{}
	if codecName == "h264" {
		for k, v := range p.H264Options {
			out[k] = v
		}
	}
	for k, v := range p.Options {
		out[k] = v
	}
	return out
}
