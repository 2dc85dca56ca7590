package goencode

import (
	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"github.com/edaniels/goencode/codec"
	"github.com/edaniels/goencode/queue"
)

// Defaults used by DefaultPipelineConfig and for zero valued fields.
const (
	DefaultSampleRate   = 48000
	DefaultChannels     = 2
	DefaultVideoCodec   = "libx264"
	DefaultAudioCodec   = "aac"
	DefaultVideoBitRate = 4_000_000
	DefaultAudioBitRate = 128_000
)

// DefaultH264Options tune H.264 encoders for fast constant quality output.
// Encoders of other codecs never see them.
var DefaultH264Options = map[string]string{
	"preset": "veryfast",
	"crf":    "23",
}

// DefaultPipelineConfig holds every default. It is invalid as is; it requires
// a Filename, a canvas size and a FrameRate.
var DefaultPipelineConfig = PipelineConfig{
	SampleRate:    DefaultSampleRate,
	Channels:      DefaultChannels,
	VideoCodec:    DefaultVideoCodec,
	AudioCodec:    DefaultAudioCodec,
	QueueCapacity: queue.DefaultCapacity,
	VideoBitRate:  DefaultVideoBitRate,
	AudioBitRate:  DefaultAudioBitRate,
	H264Options:   DefaultH264Options,
}

// A PipelineConfig describes the output a Pipeline produces.
type PipelineConfig struct {
	// Filename is the output path. Backends infer the container from it.
	Filename string

	Width     int
	Height    int
	FrameRate int

	SampleRate int
	Channels   int

	VideoCodec string
	// AudioCodec selects the audio encoder. Leaving it empty produces a video
	// only output and turns SubmitAudio into a no-op.
	AudioCodec string

	// QueueCapacity bounds how many units may wait for the encode worker
	// before submissions block.
	QueueCapacity int

	VideoBitRate int
	AudioBitRate int
	// VideoOptions are passed to the video encoder whatever its codec.
	VideoOptions map[string]string
	// H264Options are passed to the video encoder only when it produces H.264.
	// VideoOptions take precedence over them.
	H264Options map[string]string

	// Backend provides codecs and containers. When nil, the backend registered
	// as BackendName is used.
	Backend     codec.Backend
	BackendName string

	Logger golog.Logger
}

// AudioEnabled reports whether the output carries an audio stream.
func (config PipelineConfig) AudioEnabled() bool {
	return config.AudioCodec != ""
}

func (config PipelineConfig) withDefaults() PipelineConfig {
	if config.SampleRate == 0 {
		config.SampleRate = DefaultSampleRate
	}
	if config.Channels == 0 {
		config.Channels = DefaultChannels
	}
	if config.QueueCapacity == 0 {
		config.QueueCapacity = queue.DefaultCapacity
	}
	if config.VideoBitRate == 0 {
		config.VideoBitRate = DefaultVideoBitRate
	}
	if config.AudioBitRate == 0 {
		config.AudioBitRate = DefaultAudioBitRate
	}
	if config.Logger == nil {
		config.Logger = Logger
	}
	return config
}

// Validate checks the config without consulting any backend.
func (config PipelineConfig) Validate() error {
	if config.Filename == "" {
		return errors.Wrap(ErrInvalidConfig, "filename required")
	}
	if config.Width <= 0 || config.Height <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "invalid canvas size %dx%d", config.Width, config.Height)
	}
	if config.FrameRate <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "invalid frame rate %d", config.FrameRate)
	}
	if config.VideoCodec == "" {
		return errors.Wrap(ErrInvalidConfig, "video codec required")
	}
	if config.QueueCapacity < 0 {
		return errors.Wrapf(ErrInvalidConfig, "invalid queue capacity %d", config.QueueCapacity)
	}
	if config.AudioEnabled() {
		if config.SampleRate <= 0 {
			return errors.Wrapf(ErrInvalidConfig, "invalid sample rate %d", config.SampleRate)
		}
		if config.Channels <= 0 {
			return errors.Wrapf(ErrInvalidConfig, "invalid channel count %d", config.Channels)
		}
	}
	return nil
}

func (config PipelineConfig) backend() (codec.Backend, error) {
	if config.Backend != nil {
		return config.Backend, nil
	}
	return codec.Lookup(config.BackendName)
}
