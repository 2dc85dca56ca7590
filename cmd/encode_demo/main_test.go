package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/edaniels/golog"
	"go.viam.com/test"

	"github.com/edaniels/goencode/codec"
	"github.com/edaniels/goencode/codec/passthrough"
)

func TestMovingSquare(t *testing.T) {
	frame := movingSquare(64, 32, 0, 10, 33)
	test.That(t, frame.PTS, test.ShouldEqual, int64(33))
	// top left corner is transparent, the square starts at the left edge
	test.That(t, frame.Data[3], test.ShouldEqual, byte(0))
	y := (32 - 8) / 2
	test.That(t, frame.Data[(y*64)*4:(y*64)*4+4], test.ShouldResemble, []byte{220, 30, 30, 255})
}

func TestTone(t *testing.T) {
	tn := newTone(48000, 2)
	block := tn.next(2048)
	test.That(t, block.PTS, test.ShouldEqual, int64(0))
	test.That(t, block.Data, test.ShouldHaveLength, 4096)
	test.That(t, block.Data[0], test.ShouldEqual, float32(0))
	test.That(t, block.Data[2], test.ShouldEqual, block.Data[3])
	test.That(t, tn.pts(), test.ShouldEqual, int64(43))
}

func TestMainWithArgs(t *testing.T) {
	logger := golog.NewTestLogger(t)
	out := filepath.Join(t.TempDir(), "demo.raw")
	err := mainWithArgs(context.Background(), []string{
		"encode_demo",
		"--backend", passthrough.Name,
		"--video_codec", passthrough.VideoCodecName,
		"--audio_codec", passthrough.AudioCodecName,
		"--width", "64", "--height", "48", "--fps", "10", "--seconds", "1",
		out,
	}, logger)
	test.That(t, err, test.ShouldBeNil)

	b, err := passthroughBackend()
	test.That(t, err, test.ShouldBeNil)
	rec := b.Recording(out)
	test.That(t, rec.TrailerWritten(), test.ShouldBeTrue)
	test.That(t, rec.StreamPackets(0), test.ShouldHaveLength, 10)
	samples, err := rec.SampleCount(1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, samples, test.ShouldBeGreaterThanOrEqualTo, 48000*9/10)

	err = mainWithArgs(context.Background(), []string{"encode_demo", "--backend", "nope", out}, logger)
	test.That(t, err, test.ShouldNotBeNil)
}

func passthroughBackend() (*passthrough.Backend, error) {
	b, err := codec.Lookup(passthrough.Name)
	if err != nil {
		return nil, err
	}
	return b.(*passthrough.Backend), nil
}
