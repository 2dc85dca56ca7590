package codec

import (
	"encoding/binary"
	"math"

	"github.com/pion/mediadevices/pkg/wave"
	"github.com/pkg/errors"
)

// PixelFormat is the memory layout of a video frame.
type PixelFormat int

// Known pixel formats.
const (
	PixelFormatRGBA PixelFormat = iota
	// PixelFormatYUV420P is planar YCbCr with 2x2 chroma subsampling.
	PixelFormatYUV420P
)

func (f PixelFormat) String() string {
	switch f {
	case PixelFormatRGBA:
		return "rgba"
	case PixelFormatYUV420P:
		return "yuv420p"
	default:
		return "unknown"
	}
}

// SampleFormat is the memory layout of an audio chunk.
type SampleFormat int

// Known sample formats. Each maps onto one mediadevices wave type.
const (
	SampleFormatFloat32 SampleFormat = iota
	SampleFormatFloat32Planar
	SampleFormatS16
	SampleFormatS16Planar
)

func (f SampleFormat) String() string {
	switch f {
	case SampleFormatFloat32:
		return "flt"
	case SampleFormatFloat32Planar:
		return "fltp"
	case SampleFormatS16:
		return "s16"
	case SampleFormatS16Planar:
		return "s16p"
	default:
		return "unknown"
	}
}

// BytesPerSample returns the size of a single sample of one channel.
func (f SampleFormat) BytesPerSample() int {
	switch f {
	case SampleFormatS16, SampleFormatS16Planar:
		return 2
	default:
		return 4
	}
}

// Planar reports whether each channel is stored in its own plane.
func (f SampleFormat) Planar() bool {
	return f == SampleFormatFloat32Planar || f == SampleFormatS16Planar
}

// SampleFormatOf returns the format of a wave chunk.
func SampleFormatOf(chunk wave.Audio) (SampleFormat, error) {
	switch chunk.(type) {
	case *wave.Float32Interleaved:
		return SampleFormatFloat32, nil
	case *wave.Float32NonInterleaved:
		return SampleFormatFloat32Planar, nil
	case *wave.Int16Interleaved:
		return SampleFormatS16, nil
	case *wave.Int16NonInterleaved:
		return SampleFormatS16Planar, nil
	default:
		return 0, errors.Errorf("unsupported audio chunk type %T", chunk)
	}
}

// NewAudioChunk allocates an empty chunk of the given format.
func NewAudioChunk(format SampleFormat, info wave.ChunkInfo) (wave.Audio, error) {
	switch format {
	case SampleFormatFloat32:
		return wave.NewFloat32Interleaved(info), nil
	case SampleFormatFloat32Planar:
		return wave.NewFloat32NonInterleaved(info), nil
	case SampleFormatS16:
		return wave.NewInt16Interleaved(info), nil
	case SampleFormatS16Planar:
		return wave.NewInt16NonInterleaved(info), nil
	default:
		return nil, errors.Errorf("unsupported sample format %d", format)
	}
}

// AudioBytes serializes a chunk as little endian samples. Planar chunks are
// laid out plane after plane.
func AudioBytes(chunk wave.Audio) ([]byte, error) {
	switch c := chunk.(type) {
	case *wave.Float32Interleaved:
		out := make([]byte, 0, len(c.Data)*4)
		return appendFloat32s(out, c.Data), nil
	case *wave.Float32NonInterleaved:
		out := make([]byte, 0, c.Size.Len*c.Size.Channels*4)
		for _, plane := range c.Data {
			out = appendFloat32s(out, plane)
		}
		return out, nil
	case *wave.Int16Interleaved:
		out := make([]byte, 0, len(c.Data)*2)
		return appendInt16s(out, c.Data), nil
	case *wave.Int16NonInterleaved:
		out := make([]byte, 0, c.Size.Len*c.Size.Channels*2)
		for _, plane := range c.Data {
			out = appendInt16s(out, plane)
		}
		return out, nil
	default:
		return nil, errors.Errorf("unsupported audio chunk type %T", chunk)
	}
}

// AudioFromBytes is the inverse of AudioBytes.
func AudioFromBytes(format SampleFormat, info wave.ChunkInfo, b []byte) (wave.Audio, error) {
	if want := info.Len * info.Channels * format.BytesPerSample(); len(b) != want {
		return nil, errors.Errorf("expected %d bytes of %s audio but got %d", want, format, len(b))
	}
	chunk, err := NewAudioChunk(format, info)
	if err != nil {
		return nil, err
	}
	switch c := chunk.(type) {
	case *wave.Float32Interleaved:
		readFloat32s(c.Data, b)
	case *wave.Float32NonInterleaved:
		for ch, plane := range c.Data {
			readFloat32s(plane, b[ch*info.Len*4:])
		}
	case *wave.Int16Interleaved:
		readInt16s(c.Data, b)
	case *wave.Int16NonInterleaved:
		for ch, plane := range c.Data {
			readInt16s(plane, b[ch*info.Len*2:])
		}
	}
	return chunk, nil
}

func appendFloat32s(out []byte, samples []float32) []byte {
	for _, s := range samples {
		out = binary.LittleEndian.AppendUint32(out, math.Float32bits(s))
	}
	return out
}

func appendInt16s(out []byte, samples []int16) []byte {
	for _, s := range samples {
		out = binary.LittleEndian.AppendUint16(out, uint16(s))
	}
	return out
}

func readFloat32s(dst []float32, b []byte) {
	for i := range dst {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
}

func readInt16s(dst []int16, b []byte) {
	for i := range dst {
		dst[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
}
