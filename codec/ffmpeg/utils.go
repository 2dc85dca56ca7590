package ffmpeg

import (
	"github.com/asticode/go-astiav"
	"github.com/pkg/errors"

	"github.com/edaniels/goencode/codec"
)

func toRational(r codec.Rational) astiav.Rational {
	return astiav.NewRational(r.Num, r.Den)
}

func fromRational(r astiav.Rational) codec.Rational {
	return codec.NewRational(r.Num(), r.Den())
}

func toPixelFormat(f codec.PixelFormat) (astiav.PixelFormat, error) {
	switch f {
	case codec.PixelFormatRGBA:
		return astiav.PixelFormatRgba, nil
	case codec.PixelFormatYUV420P:
		return astiav.PixelFormatYuv420P, nil
	default:
		return astiav.PixelFormatNone, errors.Errorf("unsupported pixel format %v", f)
	}
}

func toSampleFormat(f codec.SampleFormat) (astiav.SampleFormat, error) {
	switch f {
	case codec.SampleFormatFloat32:
		return astiav.SampleFormatFlt, nil
	case codec.SampleFormatFloat32Planar:
		return astiav.SampleFormatFltp, nil
	case codec.SampleFormatS16:
		return astiav.SampleFormatS16, nil
	case codec.SampleFormatS16Planar:
		return astiav.SampleFormatS16P, nil
	default:
		return astiav.SampleFormatNone, errors.Errorf("unsupported sample format %v", f)
	}
}

func fromSampleFormat(f astiav.SampleFormat) (codec.SampleFormat, bool) {
	switch f {
	case astiav.SampleFormatFlt:
		return codec.SampleFormatFloat32, true
	case astiav.SampleFormatFltp:
		return codec.SampleFormatFloat32Planar, true
	case astiav.SampleFormatS16:
		return codec.SampleFormatS16, true
	case astiav.SampleFormatS16P:
		return codec.SampleFormatS16Planar, true
	default:
		return 0, false
	}
}

func channelLayout(channels int) (astiav.ChannelLayout, error) {
	switch channels {
	case 1:
		return astiav.ChannelLayoutMono, nil
	case 2:
		return astiav.ChannelLayoutStereo, nil
	default:
		return astiav.ChannelLayout{}, errors.Errorf("unsupported channel count %d", channels)
	}
}

// fromPacket copies an encoded packet out of libav memory.
func fromPacket(pkt *astiav.Packet) *codec.Packet {
	data := make([]byte, len(pkt.Data()))
	copy(data, pkt.Data())
	return &codec.Packet{
		PTS:      pkt.Pts(),
		DTS:      pkt.Dts(),
		Duration: pkt.Duration(),
		Keyframe: pkt.Flags().Has(astiav.PacketFlagKey),
		Data:     data,
	}
}
