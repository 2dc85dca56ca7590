// Package native is a codec backend built from libx264, libopus and a pure Go
// transport stream muxer. Importing it registers the backend as "native".
package native

import (
	"path/filepath"
	"strings"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"github.com/edaniels/goencode/codec"
	"github.com/edaniels/goencode/codec/opus"
	"github.com/edaniels/goencode/codec/x264"
	"github.com/edaniels/goencode/container/mpegts"
	"github.com/edaniels/goencode/convert"
)

// Name is the name the backend is registered under.
const Name = "native"

func init() {
	codec.Register(NewBackend())
}

// NewBackend returns the backend. Importing the package registers one already.
func NewBackend() Backend {
	return Backend{}
}

// Backend implements codec.Backend.
type Backend struct{}

// Name implements codec.Backend.
func (Backend) Name() string {
	return Name
}

// NewContainer implements codec.Backend. Only transport stream files are
// supported.
func (Backend) NewContainer(filename string, logger golog.Logger) (codec.Container, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, supported := range mpegts.Extensions {
		if ext == supported {
			return mpegts.NewContainer(filename, logger)
		}
	}
	return nil, errors.Wrapf(codec.ErrUnknownFormat, "%q (supported: %v)", filename, mpegts.Extensions)
}

// NewVideoEncoder implements codec.Backend.
func (Backend) NewVideoEncoder(codecName string, params codec.VideoParams, logger golog.Logger) (codec.VideoEncoder, error) {
	if !contains(x264.Names, codecName) {
		return nil, errors.Wrapf(codec.ErrUnknownCodec, "%q (supported: %v)", codecName, x264.Names)
	}
	return x264.NewEncoder(params, logger)
}

// NewAudioEncoder implements codec.Backend.
func (Backend) NewAudioEncoder(codecName string, params codec.AudioParams, logger golog.Logger) (codec.AudioEncoder, error) {
	if !contains(opus.Names, codecName) {
		return nil, errors.Wrapf(codec.ErrUnknownCodec, "%q (supported: %v)", codecName, opus.Names)
	}
	return opus.NewAudioEncoder(params, logger)
}

// NewColorConverter implements codec.Backend.
func (Backend) NewColorConverter(width, height int, dst codec.PixelFormat) (codec.ColorConverter, error) {
	return convert.NewColorConverter(width, height, dst)
}

// NewResampler implements codec.Backend.
func (Backend) NewResampler(params codec.AudioParams, dst codec.SampleFormat) (codec.Resampler, error) {
	return convert.NewResampler(params, dst)
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
