package codec

import (
	"github.com/pion/mediadevices/pkg/wave"
)

// AudioParams configures an audio encoder or resampler.
type AudioParams struct {
	SampleRate int
	Channels   int
	BitRate    int
	// GlobalHeader asks the encoder to emit codec configuration out of band,
	// for containers that store it in their header.
	GlobalHeader bool
}

// An AudioEncoder turns fixed size chunks of audio into packets. Timestamps are
// expressed in TimeBase, which is 1/SampleRate for every encoder of this kind.
type AudioEncoder interface {
	Encoder

	// FrameSize returns the number of samples per channel the encoder wants per
	// call, or 0 if it accepts any size.
	FrameSize() int

	// SampleFormat is the layout chunks passed to Encode must have.
	SampleFormat() SampleFormat

	SampleRate() int
	Channels() int

	// Encode submits one chunk starting at pts and returns whatever packets the
	// encoder is ready to emit.
	Encode(chunk wave.Audio, pts int64) ([]*Packet, error)
}

// A Resampler converts the pipeline's interleaved float audio into the layout
// an audio encoder consumes.
type Resampler interface {
	Resample(chunk *wave.Float32Interleaved) (wave.Audio, error)
	Close() error
}
