package media

import (
	"github.com/pion/mediadevices/pkg/wave"
	"github.com/pkg/errors"
)

// AudioSamples is a block of interleaved 32-bit float samples starting at PTS
// milliseconds.
type AudioSamples struct {
	PTS  int64
	Data []float32
}

// NewAudioSamples wraps data after checking it holds whole sample frames for
// the given channel count.
func NewAudioSamples(pts int64, channels int, data []float32) (*AudioSamples, error) {
	s := &AudioSamples{PTS: pts, Data: data}
	if err := s.Validate(channels); err != nil {
		return nil, err
	}
	return s, nil
}

// Len returns the number of samples per channel.
func (s *AudioSamples) Len(channels int) int {
	if channels <= 0 {
		return 0
	}
	return len(s.Data) / channels
}

// Validate checks that the block divides evenly into channels.
func (s *AudioSamples) Validate(channels int) error {
	if s == nil {
		return errors.New("nil audio samples")
	}
	if channels <= 0 {
		return errors.Errorf("invalid channel count %d", channels)
	}
	if len(s.Data)%channels != 0 {
		return errors.Wrapf(ErrBufferSize, "%d samples do not divide into %d channels", len(s.Data), channels)
	}
	return nil
}

// Wave returns the samples in [start, end) (per channel indices) as a wave
// chunk sharing the underlying storage.
func (s *AudioSamples) Wave(channels, sampleRate, start, end int) *wave.Float32Interleaved {
	return &wave.Float32Interleaved{
		Data: s.Data[start*channels : end*channels],
		Size: wave.ChunkInfo{
			Len:          end - start,
			Channels:     channels,
			SamplingRate: sampleRate,
		},
	}
}
