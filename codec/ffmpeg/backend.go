// Package ffmpeg is a codec backend on top of the libav* libraries. Importing
// it registers the backend as "ffmpeg", the default backend name.
package ffmpeg

import (
	"strings"
	"sync"

	"github.com/asticode/go-astiav"
	"github.com/edaniels/golog"

	"github.com/edaniels/goencode/codec"
)

// Name is the name the backend is registered under.
const Name = codec.DefaultBackendName

// Logger receives the messages libav logs at error level.
var Logger = golog.Global().Named("ffmpeg")

var initOnce sync.Once

func init() {
	codec.Register(NewBackend())
}

// NewBackend returns the backend. Importing the package registers one already.
func NewBackend() Backend {
	return Backend{}
}

// setup routes libav logging through Logger. It runs once per process no
// matter how many pipelines are created.
func setup() {
	initOnce.Do(func() {
		astiav.SetLogLevel(astiav.LogLevelError)
		astiav.SetLogCallback(func(c astiav.Classer, l astiav.LogLevel, format, msg string) {
			msg = strings.TrimSpace(msg)
			switch l {
			case astiav.LogLevelPanic, astiav.LogLevelFatal, astiav.LogLevelError:
				Logger.Errorw(msg, "source", "libav")
			case astiav.LogLevelWarning:
				Logger.Warnw(msg, "source", "libav")
			default:
				Logger.Debugw(msg, "source", "libav")
			}
		})
	})
}

// Backend implements codec.Backend.
type Backend struct{}

// Name implements codec.Backend.
func (Backend) Name() string {
	return Name
}

// NewContainer implements codec.Backend. The format is guessed from the
// filename.
func (Backend) NewContainer(filename string, logger golog.Logger) (codec.Container, error) {
	setup()
	return newContainer(filename, logger)
}

// NewVideoEncoder implements codec.Backend.
func (Backend) NewVideoEncoder(codecName string, params codec.VideoParams, logger golog.Logger) (codec.VideoEncoder, error) {
	setup()
	return newVideoEncoder(codecName, params, logger)
}

// NewAudioEncoder implements codec.Backend.
func (Backend) NewAudioEncoder(codecName string, params codec.AudioParams, logger golog.Logger) (codec.AudioEncoder, error) {
	setup()
	return newAudioEncoder(codecName, params, logger)
}

// NewColorConverter implements codec.Backend.
func (Backend) NewColorConverter(width, height int, dst codec.PixelFormat) (codec.ColorConverter, error) {
	setup()
	return newColorConverter(width, height, dst)
}

// NewResampler implements codec.Backend.
func (Backend) NewResampler(params codec.AudioParams, dst codec.SampleFormat) (codec.Resampler, error) {
	setup()
	return newResampler(params, dst)
}
