// Package opus contains the opus audio codec.
package opus

import (
	"github.com/edaniels/golog"
	"github.com/pion/mediadevices/pkg/wave"
	"github.com/pkg/errors"
	"gopkg.in/hraban/opus.v2"

	"github.com/edaniels/goencode/codec"
)

// maxPacketSize is the largest packet libopus is asked to produce.
const maxPacketSize = 4000

type encoder struct {
	enc       *opus.Encoder
	params    codec.AudioParams
	frameSize int
	pcm       []float32
	buf       []byte
	logger    golog.Logger
}

// NewAudioEncoder returns an opus encoder consuming 20ms chunks of interleaved
// float samples. Shorter chunks are padded with silence.
func NewAudioEncoder(params codec.AudioParams, logger golog.Logger) (codec.AudioEncoder, error) {
	if !validSampleRate(params.SampleRate) {
		return nil, errors.Errorf("opus does not support a sample rate of %d Hz", params.SampleRate)
	}
	if params.Channels != 1 && params.Channels != 2 {
		return nil, errors.Errorf("opus does not support %d channels", params.Channels)
	}
	enc, err := opus.NewEncoder(params.SampleRate, params.Channels, opus.AppAudio)
	if err != nil {
		return nil, err
	}
	if params.BitRate > 0 {
		if err := enc.SetBitrate(params.BitRate); err != nil {
			return nil, err
		}
	}
	frameSize := params.SampleRate / framesPerSecond
	return &encoder{
		enc:       enc,
		params:    params,
		frameSize: frameSize,
		pcm:       make([]float32, frameSize*params.Channels),
		buf:       make([]byte, maxPacketSize),
		logger:    logger,
	}, nil
}

func (a *encoder) CodecName() string {
	return CodecName
}

func (a *encoder) TimeBase() codec.Rational {
	return codec.NewRational(1, a.params.SampleRate)
}

func (a *encoder) FrameSize() int {
	return a.frameSize
}

func (a *encoder) SampleFormat() codec.SampleFormat {
	return codec.SampleFormatFloat32
}

func (a *encoder) SampleRate() int {
	return a.params.SampleRate
}

func (a *encoder) Channels() int {
	return a.params.Channels
}

// Encode asks libopus to process the given audio chunk.
func (a *encoder) Encode(chunk wave.Audio, pts int64) ([]*codec.Packet, error) {
	samples, ok := chunk.(*wave.Float32Interleaved)
	if !ok {
		return nil, errors.Errorf("expected interleaved float audio but got %T", chunk)
	}
	info := samples.ChunkInfo()
	if info.Channels != a.params.Channels {
		return nil, errors.Errorf("expected %d channels but got %d", a.params.Channels, info.Channels)
	}
	if info.Len > a.frameSize {
		return nil, errors.Errorf("chunk of %d samples exceeds frame size %d", info.Len, a.frameSize)
	}
	n := copy(a.pcm, samples.Data[:info.Len*info.Channels])
	for i := n; i < len(a.pcm); i++ {
		a.pcm[i] = 0
	}
	if info.Len < a.frameSize {
		a.logger.Debugw("padding short opus frame", "samples", info.Len, "frame_size", a.frameSize)
	}

	size, err := a.enc.EncodeFloat32(a.pcm, a.buf)
	if err != nil {
		return nil, err
	}
	data := make([]byte, size)
	copy(data, a.buf[:size])
	return []*codec.Packet{{
		PTS:      pts,
		DTS:      pts,
		Duration: int64(a.frameSize),
		Keyframe: true,
		Data:     data,
	}}, nil
}

// Flush has nothing to drain since every chunk is encoded immediately.
func (a *encoder) Flush() ([]*codec.Packet, error) {
	return nil, nil
}

func (a *encoder) Close() error {
	a.enc = nil
	return nil
}
