package convert

import (
	"math"

	"github.com/pion/mediadevices/pkg/wave"
	"github.com/pkg/errors"

	"github.com/edaniels/goencode/codec"
)

type resampler struct {
	params codec.AudioParams
	dst    codec.SampleFormat
}

// NewResampler returns a resampler producing dst from interleaved float chunks
// with the rate and channel count of params. Only the sample layout changes.
func NewResampler(params codec.AudioParams, dst codec.SampleFormat) (codec.Resampler, error) {
	if params.Channels <= 0 || params.SampleRate <= 0 {
		return nil, errors.Errorf("invalid resampler input %d channels at %d Hz", params.Channels, params.SampleRate)
	}
	if _, err := codec.NewAudioChunk(dst, wave.ChunkInfo{}); err != nil {
		return nil, err
	}
	return &resampler{params: params, dst: dst}, nil
}

func (r *resampler) Resample(chunk *wave.Float32Interleaved) (wave.Audio, error) {
	info := chunk.Size
	if info.Channels != r.params.Channels || info.SamplingRate != r.params.SampleRate {
		return nil, errors.Errorf("resampler configured for %d channels at %d Hz but got %d channels at %d Hz",
			r.params.Channels, r.params.SampleRate, info.Channels, info.SamplingRate)
	}
	out, err := codec.NewAudioChunk(r.dst, info)
	if err != nil {
		return nil, err
	}
	channels := info.Channels
	switch o := out.(type) {
	case *wave.Float32Interleaved:
		copy(o.Data, chunk.Data)
	case *wave.Float32NonInterleaved:
		for i := 0; i < info.Len; i++ {
			for ch := 0; ch < channels; ch++ {
				o.Data[ch][i] = chunk.Data[i*channels+ch]
			}
		}
	case *wave.Int16Interleaved:
		for i, s := range chunk.Data {
			o.Data[i] = toInt16(s)
		}
	case *wave.Int16NonInterleaved:
		for i := 0; i < info.Len; i++ {
			for ch := 0; ch < channels; ch++ {
				o.Data[ch][i] = toInt16(chunk.Data[i*channels+ch])
			}
		}
	}
	return out, nil
}

func (r *resampler) Close() error {
	return nil
}

func toInt16(s float32) int16 {
	v := math.Round(float64(s) * math.MaxInt16)
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}
