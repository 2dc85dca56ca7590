// Package main renders a synthetic scene and tone and encodes them to a file.
package main

import (
	"context"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"github.com/edaniels/golog"
	"github.com/nfnt/resize"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"github.com/edaniels/goencode"
	"github.com/edaniels/goencode/codec"
	// register codec backends.
	_ "github.com/edaniels/goencode/codec/ffmpeg"
	"github.com/edaniels/goencode/codec/native"
	"github.com/edaniels/goencode/media"
)

func main() {
	goutils.ContextualMain(mainWithArgs, logger)
}

var logger = golog.Global().Named("encode_demo")

const (
	defaultWidth   = 640
	defaultHeight  = 360
	defaultFPS     = 30
	defaultSeconds = 5
	toneHz         = 440
	audioBlockSize = 2048
)

// Arguments for the command.
type Arguments struct {
	Output     string `flag:"0,required,usage=output file"`
	Width      int    `flag:"width,usage=canvas width"`
	Height     int    `flag:"height,usage=canvas height"`
	FPS        int    `flag:"fps,usage=frames per second"`
	Seconds    int    `flag:"seconds,usage=duration to render"`
	Backend    string `flag:"backend,usage=codec backend (ffmpeg or native)"`
	VideoCodec string `flag:"video_codec,usage=video encoder name"`
	AudioCodec string `flag:"audio_codec,usage=audio encoder name"`
	NoAudio    bool   `flag:"no_audio,usage=encode video only"`
	Overlay    string `flag:"overlay,usage=png drawn in the top left corner"`
}

func mainWithArgs(ctx context.Context, args []string, logger golog.Logger) error {
	var argsParsed Arguments
	if err := goutils.ParseFlags(args, &argsParsed); err != nil {
		return err
	}
	if argsParsed.Width == 0 {
		argsParsed.Width = defaultWidth
	}
	if argsParsed.Height == 0 {
		argsParsed.Height = defaultHeight
	}
	if argsParsed.FPS == 0 {
		argsParsed.FPS = defaultFPS
	}
	if argsParsed.Seconds == 0 {
		argsParsed.Seconds = defaultSeconds
	}

	config := goencode.DefaultPipelineConfig
	config.Filename = argsParsed.Output
	config.Width = argsParsed.Width
	config.Height = argsParsed.Height
	config.FrameRate = argsParsed.FPS
	config.BackendName = argsParsed.Backend
	config.Logger = logger
	if argsParsed.Backend == native.Name {
		config.VideoCodec = "libx264"
		config.AudioCodec = "libopus"
	}
	if argsParsed.VideoCodec != "" {
		config.VideoCodec = argsParsed.VideoCodec
	}
	if argsParsed.AudioCodec != "" {
		config.AudioCodec = argsParsed.AudioCodec
	}
	if argsParsed.NoAudio {
		config.AudioCodec = ""
	}

	var overlay *media.VideoFrame
	if argsParsed.Overlay != "" {
		var err error
		overlay, err = loadOverlay(argsParsed.Overlay, config.Width, config.Height)
		if err != nil {
			return err
		}
	}

	return run(ctx, config, argsParsed.Seconds, overlay, logger)
}

func run(
	ctx context.Context,
	config goencode.PipelineConfig,
	seconds int,
	overlay *media.VideoFrame,
	logger golog.Logger,
) (err error) {
	p, err := goencode.NewPipeline(config)
	if err != nil {
		return err
	}
	if err := p.Start(); err != nil {
		p.Close()
		return err
	}
	defer func() {
		err = multierr.Combine(err, p.Finish())
	}()

	config = p.Config()
	background := media.VideoFrameFromImage(imaging.New(config.Width, config.Height, color.NRGBA{0, 0, 160, 255}), 0)
	tone := newTone(config.SampleRate, config.Channels)

	frames := seconds * config.FrameRate
	for i := 0; i < frames; i++ {
		if ctx.Err() != nil {
			logger.Infow("interrupted; finishing what was rendered", "frames", i)
			return nil
		}
		pts := int64(i) * 1000 / int64(config.FrameRate)
		// the composite takes its time from the bottom layer
		background.PTS = pts
		layers := []*media.VideoFrame{background, movingSquare(config.Width, config.Height, i, frames, pts)}
		if overlay != nil {
			layers = append(layers, overlay)
		}
		frame, err := goencode.Composite(config.Width, config.Height, layers)
		if err != nil {
			return err
		}
		if err := p.SubmitVideo(frame); err != nil {
			return err
		}

		if config.AudioEnabled() {
			// keep audio at most one block ahead of video
			for tone.pts() <= pts {
				if err := p.SubmitAudio(tone.next(audioBlockSize)); err != nil {
					return err
				}
			}
		}
	}
	logger.Infow("rendered", "frames", frames, "stats", p.Stats())
	return nil
}

func movingSquare(width, height, i, frames int, pts int64) *media.VideoFrame {
	side := height / 4
	x := (width - side) * i / frames
	y := (height - side) / 2
	layer := imaging.New(width, height, color.NRGBA{})
	layer = imaging.Paste(layer, imaging.New(side, side, color.NRGBA{220, 30, 30, 255}), image.Pt(x, y))
	return media.VideoFrameFromImage(layer, pts)
}

func loadOverlay(path string, width, height int) (*media.VideoFrame, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, err
	}
	scaled := resize.Resize(uint(width/4), 0, img, resize.Lanczos3)
	layer := imaging.New(width, height, color.NRGBA{})
	layer = imaging.Overlay(layer, scaled, image.Pt(width/32, height/32), 1)
	return media.VideoFrameFromImage(layer, 0), nil
}

type tone struct {
	sampleRate int
	channels   int
	sample     int
}

func newTone(sampleRate, channels int) *tone {
	return &tone{sampleRate: sampleRate, channels: channels}
}

func (t *tone) pts() int64 {
	return codec.NewRational(1, t.sampleRate).Rescale(int64(t.sample), codec.Millisecond)
}

func (t *tone) next(samples int) *media.AudioSamples {
	block := &media.AudioSamples{PTS: t.pts(), Data: make([]float32, samples*t.channels)}
	for i := 0; i < samples; i++ {
		v := float32(0.2 * math.Sin(2*math.Pi*toneHz*float64(t.sample+i)/float64(t.sampleRate)))
		for ch := 0; ch < t.channels; ch++ {
			block.Data[i*t.channels+ch] = v
		}
	}
	t.sample += samples
	return block
}
