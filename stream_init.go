package goencode

import (
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/edaniels/goencode/codec"
)

// initialize opens the container, creates the streams with their encoders and
// writes the header. On failure everything acquired so far is released.
func (p *Pipeline) initialize(backend codec.Backend) (err error) {
	defer func() {
		if err != nil {
			err = multierr.Combine(err, p.release())
		}
	}()
	config := p.config

	p.container, err = backend.NewContainer(config.Filename, p.logger)
	if err != nil {
		return errors.Wrapf(err, "cannot create container for %q", config.Filename)
	}
	globalHeader := p.container.GlobalHeader()

	p.videoEnc, err = backend.NewVideoEncoder(config.VideoCodec, codec.VideoParams{
		Width:        config.Width,
		Height:       config.Height,
		FrameRate:    config.FrameRate,
		BitRate:      config.VideoBitRate,
		Options:      config.VideoOptions,
		H264Options:  config.H264Options,
		GlobalHeader: globalHeader,
	}, p.logger)
	if err != nil {
		return errors.Wrapf(err, "cannot open video encoder %q", config.VideoCodec)
	}
	p.videoStream, err = p.container.AddStream(p.videoEnc)
	if err != nil {
		return errors.Wrap(err, "cannot add video stream")
	}

	if config.AudioEnabled() {
		params := codec.AudioParams{
			SampleRate:   config.SampleRate,
			Channels:     config.Channels,
			BitRate:      config.AudioBitRate,
			GlobalHeader: globalHeader,
		}
		p.audioEnc, err = backend.NewAudioEncoder(config.AudioCodec, params, p.logger)
		if err != nil {
			return errors.Wrapf(err, "cannot open audio encoder %q", config.AudioCodec)
		}
		p.audioStream, err = p.container.AddStream(p.audioEnc)
		if err != nil {
			return errors.Wrap(err, "cannot add audio stream")
		}
		p.resampler, err = backend.NewResampler(params, p.audioEnc.SampleFormat())
		if err != nil {
			return errors.Wrap(err, "cannot create resampler")
		}
	}

	if err := p.container.WriteHeader(); err != nil {
		return errors.Wrapf(err, "cannot write header of %q", config.Filename)
	}
	if err := checkTimeBases(p.videoEnc, p.videoStream); err != nil {
		return err
	}
	if p.audioEnc != nil {
		if err := checkTimeBases(p.audioEnc, p.audioStream); err != nil {
			return err
		}
	}

	p.converter, err = backend.NewColorConverter(config.Width, config.Height, p.videoEnc.PixelFormat())
	if err != nil {
		return errors.Wrap(err, "cannot create color converter")
	}
	return nil
}

// checkTimeBases makes sure timestamps can be rescaled from enc to s. Stream
// time bases are only final once the header is written.
func checkTimeBases(enc codec.Encoder, s codec.Stream) error {
	if tb := enc.TimeBase(); !tb.Valid() {
		return errors.Errorf("encoder %q has invalid time base %s", enc.CodecName(), tb)
	}
	if tb := s.TimeBase(); !tb.Valid() {
		return errors.Errorf("stream %d has invalid time base %s", s.Index(), tb)
	}
	return nil
}

// release closes every handle exactly once, in reverse order of acquisition.
func (p *Pipeline) release() error {
	var err error
	if p.converter != nil {
		err = multierr.Append(err, p.converter.Close())
		p.converter = nil
	}
	if p.resampler != nil {
		err = multierr.Append(err, p.resampler.Close())
		p.resampler = nil
	}
	if p.audioEnc != nil {
		err = multierr.Append(err, p.audioEnc.Close())
		p.audioEnc = nil
	}
	if p.videoEnc != nil {
		err = multierr.Append(err, p.videoEnc.Close())
		p.videoEnc = nil
	}
	if p.container != nil {
		err = multierr.Append(err, p.container.Close())
		p.container = nil
	}
	return err
}
