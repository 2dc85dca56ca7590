package native_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/bluenviron/mediacommon/v2/pkg/formats/mpegts"
	"github.com/edaniels/golog"
	"go.viam.com/test"

	"github.com/edaniels/goencode"
	"github.com/edaniels/goencode/codec"
	"github.com/edaniels/goencode/codec/native"
	"github.com/edaniels/goencode/media"
)

func TestBackendLookup(t *testing.T) {
	b, err := codec.Lookup(native.Name)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, b.Name(), test.ShouldEqual, native.Name)

	logger := golog.NewTestLogger(t)
	_, err = b.NewContainer(filepath.Join(t.TempDir(), "out.mp4"), logger)
	test.That(t, errors.Is(err, codec.ErrUnknownFormat), test.ShouldBeTrue)
	_, err = b.NewVideoEncoder("libvpx", codec.VideoParams{Width: 2, Height: 2, FrameRate: 1}, logger)
	test.That(t, errors.Is(err, codec.ErrUnknownCodec), test.ShouldBeTrue)
	_, err = b.NewAudioEncoder("aac", codec.AudioParams{SampleRate: 48000, Channels: 2}, logger)
	test.That(t, errors.Is(err, codec.ErrUnknownCodec), test.ShouldBeTrue)
}

func TestPipeline(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "out.ts")
	config := goencode.DefaultPipelineConfig
	config.Filename = filename
	config.Width = 160
	config.Height = 120
	config.FrameRate = 30
	config.VideoCodec = "libx264"
	config.AudioCodec = "libopus"
	config.AudioBitRate = 64000
	config.BackendName = native.Name
	config.Logger = golog.NewTestLogger(t)

	p, err := goencode.NewPipeline(config)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, p.Start(), test.ShouldBeNil)
	for i := 0; i < 30; i++ {
		frame := media.NewBlankVideoFrame(160, 120, int64(i*1000/30))
		for j := 0; j < len(frame.Data); j += 4 {
			frame.Data[j] = byte(i * 8)
			frame.Data[j+3] = 255
		}
		test.That(t, p.SubmitVideo(frame), test.ShouldBeNil)
	}
	samples, err := media.NewAudioSamples(0, 2, make([]float32, 48000*2))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, p.SubmitAudio(samples), test.ShouldBeNil)
	test.That(t, p.Finish(), test.ShouldBeNil)

	stats := p.Stats()
	test.That(t, stats.VideoPacketsWritten, test.ShouldEqual, int64(30))
	test.That(t, stats.AudioChunksEncoded, test.ShouldEqual, int64(50))

	//nolint:gosec
	f, err := os.Open(filename)
	test.That(t, err, test.ShouldBeNil)
	defer f.Close()
	info, err := f.Stat()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, info.Size(), test.ShouldBeGreaterThan, 0)
	test.That(t, info.Size()%188, test.ShouldEqual, 0)

	r := &mpegts.Reader{R: f}
	test.That(t, r.Initialize(), test.ShouldBeNil)
	tracks := r.Tracks()
	test.That(t, tracks, test.ShouldHaveLength, 2)

	var videoTracks, audioTracks int
	var videoDTS []int64
	var opusPackets int
	for _, track := range tracks {
		switch tc := track.Codec.(type) {
		case *mpegts.CodecH264:
			videoTracks++
			r.OnDataH264(track, func(pts, dts int64, au [][]byte) error {
				test.That(t, pts, test.ShouldBeGreaterThanOrEqualTo, dts)
				test.That(t, au, test.ShouldNotBeEmpty)
				videoDTS = append(videoDTS, dts)
				return nil
			})
		case *mpegts.CodecOpus:
			audioTracks++
			test.That(t, tc.ChannelCount, test.ShouldEqual, 2)
			r.OnDataOpus(track, func(pts int64, packets [][]byte) error {
				opusPackets += len(packets)
				return nil
			})
		default:
			t.Fatalf("unexpected track codec %T", tc)
		}
	}
	// reads until the end of the file
	for r.Read() == nil {
	}

	test.That(t, videoTracks, test.ShouldEqual, 1)
	test.That(t, audioTracks, test.ShouldEqual, 1)
	test.That(t, videoDTS, test.ShouldHaveLength, 30)
	for i := 1; i < len(videoDTS); i++ {
		test.That(t, videoDTS[i], test.ShouldBeGreaterThan, videoDTS[i-1])
	}
	// one second of 20ms opus frames
	test.That(t, opusPackets, test.ShouldEqual, 50)
}

func TestPipelineFailureLeavesNoFile(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "out.ts")
	config := goencode.DefaultPipelineConfig
	config.Filename = filename
	config.Width = 160
	config.Height = 120
	config.FrameRate = 30
	config.VideoCodec = "libx264"
	config.AudioCodec = "aac"
	config.BackendName = native.Name
	config.Logger = golog.NewTestLogger(t)

	_, err := goencode.NewPipeline(config)
	test.That(t, errors.Is(err, codec.ErrUnknownCodec), test.ShouldBeTrue)
	_, err = os.Stat(filename)
	test.That(t, os.IsNotExist(err), test.ShouldBeTrue)
}
