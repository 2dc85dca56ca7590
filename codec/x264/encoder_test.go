package x264

import (
	"image"
	"image/color"
	"testing"

	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"
	"github.com/disintegration/imaging"
	"github.com/edaniels/golog"
	"github.com/pion/mediadevices/pkg/codec/x264"
	"go.viam.com/test"

	"github.com/edaniels/goencode/codec"
	"github.com/edaniels/goencode/convert"
)

const (
	width  = 320
	height = 240
)

func picture(t *testing.T, c color.Color) image.Image {
	t.Helper()
	conv, err := convert.NewColorConverter(width, height, codec.PixelFormatYUV420P)
	test.That(t, err, test.ShouldBeNil)
	rgba := image.NewRGBA(image.Rect(0, 0, width, height))
	copy(rgba.Pix, imaging.New(width, height, c).Pix)
	img, err := conv.Convert(rgba)
	test.That(t, err, test.ShouldBeNil)
	return img
}

func TestEncode(t *testing.T) {
	logger := golog.NewTestLogger(t)
	enc, err := NewEncoder(codec.VideoParams{
		Width:     width,
		Height:    height,
		FrameRate: 30,
		BitRate:   1_000_000,
		Options:   map[string]string{"preset": "veryfast", "crf": "23", "g": "10"},
	}, logger)
	test.That(t, err, test.ShouldBeNil)
	defer func() {
		test.That(t, enc.Close(), test.ShouldBeNil)
	}()
	test.That(t, enc.CodecName(), test.ShouldEqual, CodecName)
	test.That(t, enc.TimeBase(), test.ShouldResemble, codec.NewRational(1, 30))
	test.That(t, enc.PixelFormat(), test.ShouldEqual, codec.PixelFormatYUV420P)

	cyan := picture(t, color.NRGBA{0, 255, 255, 255})
	fuchsia := picture(t, color.NRGBA{255, 0, 255, 255})
	var pkts []*codec.Packet
	for i := 0; i < 20; i++ {
		img := cyan
		if i%2 == 1 {
			img = fuchsia
		}
		out, err := enc.Encode(img, int64(i))
		test.That(t, err, test.ShouldBeNil)
		pkts = append(pkts, out...)
	}
	flushed, err := enc.Flush()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, flushed, test.ShouldBeEmpty)

	test.That(t, pkts, test.ShouldHaveLength, 20)
	test.That(t, pkts[0].Keyframe, test.ShouldBeTrue)
	for i, pkt := range pkts {
		test.That(t, pkt.PTS, test.ShouldEqual, int64(i))
		test.That(t, pkt.DTS, test.ShouldEqual, pkt.PTS)
		var au h264.AnnexB
		test.That(t, au.Unmarshal(pkt.Data), test.ShouldBeNil)
		test.That(t, au, test.ShouldNotBeEmpty)
	}

	_, err = enc.Encode(image.NewYCbCr(image.Rect(0, 0, 16, 16), image.YCbCrSubsampleRatio420), 20)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestOptions(t *testing.T) {
	logger := golog.NewTestLogger(t)
	params, err := x264.NewParams()
	test.That(t, err, test.ShouldBeNil)

	test.That(t, applyOptions(&params, map[string]string{"preset": "SLOW", "tune": "film"}, logger), test.ShouldBeNil)
	test.That(t, params.Preset, test.ShouldEqual, x264.PresetSlow)
	test.That(t, applyOptions(&params, map[string]string{"preset": "warp"}, logger), test.ShouldNotBeNil)

	test.That(t, keyFrameInterval(25, nil), test.ShouldEqual, 50)
	test.That(t, keyFrameInterval(25, map[string]string{"g": "12"}), test.ShouldEqual, 12)
	test.That(t, keyFrameInterval(25, map[string]string{"g": "x"}), test.ShouldEqual, 50)
	h264Params := codec.VideoParams{FrameRate: 25, H264Options: map[string]string{"g": "7"}}
	test.That(t, keyFrameInterval(25, h264Params.OptionsFor(CodecName)), test.ShouldEqual, 7)

	_, err = NewEncoder(codec.VideoParams{Width: 0, Height: 10, FrameRate: 30}, logger)
	test.That(t, err, test.ShouldNotBeNil)
}
