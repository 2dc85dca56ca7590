package goencode

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/edaniels/golog"
	"go.viam.com/test"

	"github.com/edaniels/goencode/codec"
	"github.com/edaniels/goencode/codec/passthrough"
	"github.com/edaniels/goencode/media"
)

func testConfig(t *testing.T, backend *passthrough.Backend) PipelineConfig {
	t.Helper()
	config := DefaultPipelineConfig
	config.Filename = t.Name() + ".raw"
	config.Width = 320
	config.Height = 240
	config.FrameRate = 30
	config.VideoCodec = passthrough.VideoCodecName
	config.AudioCodec = ""
	config.Backend = backend
	config.Logger = golog.NewTestLogger(t)
	return config
}

func sineBlock(pts int64, samples, channels, sampleRate int) *media.AudioSamples {
	data := make([]float32, samples*channels)
	for i := 0; i < samples; i++ {
		v := float32(0.25 * math.Sin(2*math.Pi*440*float64(i)/float64(sampleRate)))
		for ch := 0; ch < channels; ch++ {
			data[i*channels+ch] = v
		}
	}
	return &media.AudioSamples{PTS: pts, Data: data}
}

func submitFrames(t *testing.T, p *Pipeline, count int) {
	t.Helper()
	for i := 0; i < count; i++ {
		frame := solidFrame(p.config.Width, p.config.Height, int64(i*1000/30), [4]byte{byte(i), 0, 255, 255})
		test.That(t, p.SubmitVideo(frame), test.ShouldBeNil)
	}
}

func checkMonotonicDTS(t *testing.T, pkts []*codec.Packet) {
	t.Helper()
	for i, pkt := range pkts {
		test.That(t, pkt.PTS, test.ShouldBeGreaterThanOrEqualTo, pkt.DTS)
		if i > 0 {
			test.That(t, pkt.DTS, test.ShouldBeGreaterThan, pkts[i-1].DTS)
		}
	}
}

func TestPipelineVideoOnly(t *testing.T) {
	backend := passthrough.NewBackend(passthrough.WithReorderDepth(2))
	config := testConfig(t, backend)

	p, err := NewPipeline(config)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, p.Start(), test.ShouldBeNil)
	submitFrames(t, p, 60)
	test.That(t, p.Finish(), test.ShouldBeNil)
	test.That(t, p.Err(), test.ShouldBeNil)

	rec := backend.Recording(config.Filename)
	test.That(t, rec.Streams(), test.ShouldHaveLength, 1)
	test.That(t, rec.Streams()[0].CodecName, test.ShouldEqual, passthrough.VideoCodecName)
	test.That(t, rec.TrailerWritten(), test.ShouldBeTrue)
	test.That(t, rec.Closed(), test.ShouldBeTrue)

	pkts := rec.StreamPackets(0)
	test.That(t, pkts, test.ShouldHaveLength, 60)
	checkMonotonicDTS(t, pkts)
	// frame ticks rescaled from 1/30 to 1/90000
	for i, pkt := range pkts {
		test.That(t, pkt.PTS, test.ShouldEqual, int64(i*3000))
	}
	test.That(t, pkts[0].Keyframe, test.ShouldBeTrue)

	stats := p.Stats()
	test.That(t, stats.VideoFramesSubmitted, test.ShouldEqual, int64(60))
	test.That(t, stats.VideoFramesEncoded, test.ShouldEqual, int64(60))
	test.That(t, stats.VideoPacketsWritten, test.ShouldEqual, int64(60))
	test.That(t, stats.DTSRepairs, test.ShouldEqual, int64(0))
}

func TestPipelineAudio(t *testing.T) {
	backend := passthrough.NewBackend(passthrough.WithFrameSize(1024))
	config := testConfig(t, backend)
	config.AudioCodec = passthrough.AudioCodecName
	config.SampleRate = 48000
	config.Channels = 2

	p, err := NewPipeline(config)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, p.Start(), test.ShouldBeNil)
	submitFrames(t, p, 60)
	// one second of stereo audio
	test.That(t, p.SubmitAudio(sineBlock(0, 48000, 2, 48000)), test.ShouldBeNil)
	test.That(t, p.Finish(), test.ShouldBeNil)

	rec := backend.Recording(config.Filename)
	streams := rec.Streams()
	test.That(t, streams, test.ShouldHaveLength, 2)
	test.That(t, streams[1].Audio, test.ShouldBeTrue)

	samples, err := rec.SampleCount(1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, samples*2, test.ShouldEqual, 96000)

	audio := rec.StreamPackets(1)
	test.That(t, audio, test.ShouldHaveLength, 47)
	test.That(t, audio[46].Duration, test.ShouldEqual, codec.NewRational(1, 48000).Rescale(896, codec.NewRational(1, 90000)))
	for i, pkt := range audio {
		test.That(t, pkt.PTS, test.ShouldEqual, codec.NewRational(1, 48000).Rescale(int64(i*1024), codec.NewRational(1, 90000)))
	}
	checkMonotonicDTS(t, rec.StreamPackets(0))

	// packets reach the container in decode time order across streams
	all := rec.Packets()
	test.That(t, all, test.ShouldHaveLength, 60+47)
	for i := 1; i < len(all); i++ {
		prev, cur := all[i-1], all[i]
		test.That(t, codec.Compare(prev.DTS, streams[prev.StreamIndex].TimeBase, cur.DTS, streams[cur.StreamIndex].TimeBase),
			test.ShouldBeLessThanOrEqualTo, 0)
	}
	test.That(t, p.Stats().AudioChunksEncoded, test.ShouldEqual, int64(47))
}

func TestPipelineAudioTimestamps(t *testing.T) {
	backend := passthrough.NewBackend(
		passthrough.WithFrameSize(0),
		passthrough.WithSampleFormat(codec.SampleFormatFloat32Planar),
	)
	config := testConfig(t, backend)
	config.AudioCodec = passthrough.AudioCodecName

	p, err := NewPipeline(config)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, p.Start(), test.ShouldBeNil)
	test.That(t, p.SubmitAudio(sineBlock(500, 2048, 2, 48000)), test.ShouldBeNil)
	test.That(t, p.SubmitAudio(sineBlock(1000, 100, 2, 48000)), test.ShouldBeNil)
	test.That(t, p.Finish(), test.ShouldBeNil)

	rec := backend.Recording(config.Filename)
	audio := rec.StreamPackets(1)
	// encoders without a frame size get 1024 sample chunks
	test.That(t, audio, test.ShouldHaveLength, 3)
	test.That(t, audio[0].PTS, test.ShouldEqual, int64(45000))
	test.That(t, audio[1].PTS, test.ShouldEqual, int64(46920))
	test.That(t, audio[2].PTS, test.ShouldEqual, int64(90000))
	test.That(t, rec.Streams()[1].Format, test.ShouldEqual, codec.SampleFormatFloat32Planar)
	samples, err := rec.SampleCount(1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, samples, test.ShouldEqual, 2148)
}

func TestPipelineDTSRepair(t *testing.T) {
	backend := passthrough.NewBackend(passthrough.WithDTSOverride(func(i int, dts int64) int64 {
		// an encoder stuck on the same decode time
		return 0
	}))
	config := testConfig(t, backend)

	p, err := NewPipeline(config)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, p.Start(), test.ShouldBeNil)
	submitFrames(t, p, 10)
	test.That(t, p.Finish(), test.ShouldBeNil)

	pkts := backend.Recording(config.Filename).StreamPackets(0)
	test.That(t, pkts, test.ShouldHaveLength, 10)
	checkMonotonicDTS(t, pkts)
	for i, pkt := range pkts {
		test.That(t, pkt.DTS, test.ShouldEqual, int64(i))
	}
	test.That(t, p.Stats().DTSRepairs, test.ShouldEqual, int64(9))
}

func TestPipelineDisabledAudio(t *testing.T) {
	backend := passthrough.NewBackend()
	config := testConfig(t, backend)

	p, err := NewPipeline(config)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, p.Start(), test.ShouldBeNil)
	test.That(t, p.SubmitAudio(sineBlock(0, 1024, 2, 48000)), test.ShouldBeNil)
	// invalid blocks are not even inspected
	test.That(t, p.SubmitAudio(&media.AudioSamples{Data: []float32{1}}), test.ShouldBeNil)
	submitFrames(t, p, 3)
	test.That(t, p.Finish(), test.ShouldBeNil)

	rec := backend.Recording(config.Filename)
	test.That(t, rec.Streams(), test.ShouldHaveLength, 1)
	test.That(t, rec.Packets(), test.ShouldHaveLength, 3)
	test.That(t, p.Stats().AudioBlocksSubmitted, test.ShouldEqual, int64(0))
}

func TestPipelineStates(t *testing.T) {
	backend := passthrough.NewBackend()
	config := testConfig(t, backend)

	p, err := NewPipeline(config)
	test.That(t, err, test.ShouldBeNil)
	frame := solidFrame(320, 240, 0, [4]byte{})

	test.That(t, p.SubmitVideo(frame), test.ShouldEqual, ErrNotStarted)
	test.That(t, p.SubmitAudio(sineBlock(0, 1, 2, 48000)), test.ShouldEqual, ErrNotStarted)
	// finishing before starting does nothing
	test.That(t, p.Finish(), test.ShouldBeNil)
	test.That(t, backend.Recording(config.Filename).Closed(), test.ShouldBeFalse)

	test.That(t, p.Start(), test.ShouldBeNil)
	test.That(t, p.Start(), test.ShouldBeNil)
	test.That(t, p.SubmitVideo(frame), test.ShouldBeNil)

	err = p.SubmitVideo(solidFrame(32, 24, 0, [4]byte{}))
	test.That(t, errors.Is(err, ErrSizeMismatch), test.ShouldBeTrue)
	err = p.SubmitVideo(&media.VideoFrame{Width: 320, Height: 240})
	test.That(t, errors.Is(err, media.ErrBufferSize), test.ShouldBeTrue)

	test.That(t, p.Finish(), test.ShouldBeNil)
	// the trailer is only written once; a second write would fail
	test.That(t, p.Finish(), test.ShouldBeNil)
	test.That(t, backend.Recording(config.Filename).TrailerWritten(), test.ShouldBeTrue)

	test.That(t, p.SubmitVideo(frame), test.ShouldEqual, ErrFinished)
	test.That(t, p.Start(), test.ShouldEqual, ErrFinished)
	p.Close()
}

func TestPipelineConfigErrors(t *testing.T) {
	backend := passthrough.NewBackend()

	config := testConfig(t, backend)
	config.Filename = ""
	_, err := NewPipeline(config)
	test.That(t, errors.Is(err, ErrInvalidConfig), test.ShouldBeTrue)

	config = testConfig(t, backend)
	config.FrameRate = 0
	_, err = NewPipeline(config)
	test.That(t, errors.Is(err, ErrInvalidConfig), test.ShouldBeTrue)

	config = testConfig(t, backend)
	config.Channels = -1
	config.AudioCodec = passthrough.AudioCodecName
	_, err = NewPipeline(config)
	test.That(t, errors.Is(err, ErrInvalidConfig), test.ShouldBeTrue)

	config = testConfig(t, backend)
	config.VideoCodec = "no-such-codec"
	_, err = NewPipeline(config)
	test.That(t, errors.Is(err, codec.ErrUnknownCodec), test.ShouldBeTrue)
	test.That(t, backend.Recording(config.Filename).Closed(), test.ShouldBeTrue)

	config = testConfig(t, backend)
	config.AudioCodec = "no-such-codec"
	_, err = NewPipeline(config)
	test.That(t, errors.Is(err, codec.ErrUnknownCodec), test.ShouldBeTrue)
	test.That(t, backend.Recording(config.Filename).HeaderWritten(), test.ShouldBeFalse)
	test.That(t, backend.Recording(config.Filename).Closed(), test.ShouldBeTrue)

	badTimeBase := passthrough.NewBackend(passthrough.WithStreamTimeBase(codec.NewRational(0, 1)))
	config = testConfig(t, badTimeBase)
	_, err = NewPipeline(config)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "invalid time base 0/1")
	test.That(t, badTimeBase.Recording(config.Filename).Closed(), test.ShouldBeTrue)

	config = testConfig(t, nil)
	config.Backend = nil
	config.BackendName = "no-such-backend"
	_, err = NewPipeline(config)
	test.That(t, errors.Is(err, codec.ErrUnknownBackend), test.ShouldBeTrue)
}

func TestPipelineConfigDefaults(t *testing.T) {
	test.That(t, DefaultPipelineConfig.VideoOptions, test.ShouldBeEmpty)
	test.That(t, DefaultPipelineConfig.H264Options, test.ShouldResemble, map[string]string{
		"preset": "veryfast",
		"crf":    "23",
	})

	config := PipelineConfig{Filename: "out.mp4", Width: 2, Height: 2, FrameRate: 1, VideoCodec: "h264"}.withDefaults()
	test.That(t, config.SampleRate, test.ShouldEqual, DefaultSampleRate)
	test.That(t, config.Channels, test.ShouldEqual, DefaultChannels)
	test.That(t, config.AudioEnabled(), test.ShouldBeFalse)
	test.That(t, config.Validate(), test.ShouldBeNil)
}

func TestPipelineRegisteredBackend(t *testing.T) {
	config := testConfig(t, nil)
	config.Backend = nil
	config.BackendName = passthrough.Name

	p, err := NewPipeline(config)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, p.Start(), test.ShouldBeNil)
	submitFrames(t, p, 2)
	test.That(t, p.Finish(), test.ShouldBeNil)

	registered, err := codec.Lookup(passthrough.Name)
	test.That(t, err, test.ShouldBeNil)
	rec := registered.(*passthrough.Backend).Recording(config.Filename)
	test.That(t, rec.Packets(), test.ShouldHaveLength, 2)
}

func TestPipelineWorkerError(t *testing.T) {
	errDisk := errors.New("disk full")
	backend := passthrough.NewBackend(passthrough.WithWriteFailure(5, errDisk))
	config := testConfig(t, backend)

	p, err := NewPipeline(config)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, p.Start(), test.ShouldBeNil)

	// submissions may start failing once the worker stops
	for i := 0; i < 20; i++ {
		if err := p.SubmitVideo(solidFrame(320, 240, int64(i*33), [4]byte{})); err != nil {
			test.That(t, errors.Is(err, errDisk), test.ShouldBeTrue)
			break
		}
	}
	err = p.Finish()
	test.That(t, errors.Is(err, errDisk), test.ShouldBeTrue)
	test.That(t, errors.Is(p.Err(), errDisk), test.ShouldBeTrue)
	test.That(t, p.Finish(), test.ShouldBeNil)

	rec := backend.Recording(config.Filename)
	test.That(t, rec.TrailerWritten(), test.ShouldBeFalse)
	test.That(t, rec.Closed(), test.ShouldBeTrue)
	test.That(t, rec.Packets(), test.ShouldHaveLength, 5)
	test.That(t, p.Stats().VideoPacketsWritten, test.ShouldEqual, int64(5))
}

func TestPipelineClose(t *testing.T) {
	t.Run("running pipeline is finished", func(t *testing.T) {
		backend := passthrough.NewBackend()
		config := testConfig(t, backend)
		logger, logs := golog.NewObservedTestLogger(t)
		config.Logger = logger

		p, err := NewPipeline(config)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, p.Start(), test.ShouldBeNil)
		submitFrames(t, p, 4)
		p.Close()
		p.Close()

		rec := backend.Recording(config.Filename)
		test.That(t, rec.TrailerWritten(), test.ShouldBeTrue)
		test.That(t, rec.Packets(), test.ShouldHaveLength, 4)
		test.That(t, logs.FilterMessage("error closing pipeline").Len(), test.ShouldEqual, 0)
		test.That(t, p.Finish(), test.ShouldBeNil)
	})

	t.Run("teardown errors are logged", func(t *testing.T) {
		errDisk := errors.New("disk full")
		backend := passthrough.NewBackend(passthrough.WithWriteFailure(0, errDisk))
		config := testConfig(t, backend)
		logger, logs := golog.NewObservedTestLogger(t)
		config.Logger = logger

		p, err := NewPipeline(config)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, p.Start(), test.ShouldBeNil)
		test.That(t, p.SubmitVideo(solidFrame(320, 240, 0, [4]byte{})), test.ShouldBeNil)
		p.Close()

		test.That(t, logs.FilterMessage("error closing pipeline").Len(), test.ShouldEqual, 1)
		test.That(t, logs.FilterMessage("encode worker stopped").Len(), test.ShouldEqual, 1)
		test.That(t, backend.Recording(config.Filename).Closed(), test.ShouldBeTrue)
	})

	t.Run("unstarted pipeline is released", func(t *testing.T) {
		backend := passthrough.NewBackend()
		config := testConfig(t, backend)

		p, err := NewPipeline(config)
		test.That(t, err, test.ShouldBeNil)
		p.Close()

		rec := backend.Recording(config.Filename)
		test.That(t, rec.Closed(), test.ShouldBeTrue)
		test.That(t, rec.TrailerWritten(), test.ShouldBeFalse)
		test.That(t, p.Start(), test.ShouldEqual, ErrFinished)
	})
}

func TestPipelineConcurrentProducers(t *testing.T) {
	backend := passthrough.NewBackend()
	config := testConfig(t, backend)
	config.AudioCodec = passthrough.AudioCodecName
	config.QueueCapacity = 2

	p, err := NewPipeline(config)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, p.Start(), test.ShouldBeNil)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 30; i++ {
			if err := p.SubmitVideo(solidFrame(320, 240, int64(i*33), [4]byte{})); err != nil {
				t.Error(err)
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 10; i++ {
			if err := p.SubmitAudio(sineBlock(int64(i*100), 4800, 2, 48000)); err != nil {
				t.Error(err)
			}
		}
	}()
	wg.Wait()
	test.That(t, p.Finish(), test.ShouldBeNil)

	rec := backend.Recording(config.Filename)
	test.That(t, rec.StreamPackets(0), test.ShouldHaveLength, 30)
	checkMonotonicDTS(t, rec.StreamPackets(0))
	samples, err := rec.SampleCount(1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, samples, test.ShouldEqual, 48000)
}
