package goencode

import (
	"github.com/pkg/errors"

	"github.com/edaniels/goencode/codec"
	"github.com/edaniels/goencode/media"
)

// defaultAudioFrameSize is used for encoders that accept any chunk size.
const defaultAudioFrameSize = 1024

func (p *Pipeline) encodeLoop() {
	for {
		unit, ok := p.queue.Pop()
		if !ok {
			return
		}
		var err error
		switch unit.Kind {
		case media.KindVideo:
			err = p.encodeVideo(unit.Video)
		case media.KindAudio:
			err = p.encodeAudio(unit.Audio)
		default:
			err = errors.Errorf("unknown media unit kind %d", unit.Kind)
		}
		if err != nil {
			p.fail(err)
			return
		}
	}
}

func (p *Pipeline) encodeVideo(frame *media.VideoFrame) error {
	img, err := p.converter.Convert(frame.RGBA())
	if err != nil {
		return errors.Wrapf(err, "cannot convert frame at %dms", frame.PTS)
	}
	pts := codec.Millisecond.Rescale(frame.PTS, p.videoEnc.TimeBase())
	pkts, err := p.videoEnc.Encode(img, pts)
	if err != nil {
		return errors.Wrapf(err, "cannot encode frame at %dms", frame.PTS)
	}
	p.stats.videoEncoded.Add(1)
	return p.writeVideo(pkts)
}

func (p *Pipeline) writeVideo(pkts []*codec.Packet) error {
	from := p.videoEnc.TimeBase()
	to := p.videoStream.TimeBase()
	for _, pkt := range pkts {
		pkt.RescaleTS(from, to)
		pkt.StreamIndex = p.videoStream.Index()
		if p.dts.repair(pkt) {
			p.stats.dtsRepairs.Add(1)
		}
		if err := p.container.WriteInterleaved(pkt); err != nil {
			return errors.Wrap(err, "cannot write video packet")
		}
		p.stats.videoPackets.Add(1)
	}
	return nil
}

func (p *Pipeline) encodeAudio(samples *media.AudioSamples) error {
	frameSize := p.audioEnc.FrameSize()
	if frameSize <= 0 {
		frameSize = defaultAudioFrameSize
	}
	channels, sampleRate := p.config.Channels, p.config.SampleRate
	tb := p.audioEnc.TimeBase()
	base := codec.Millisecond.Rescale(samples.PTS, tb)
	sampleTB := codec.NewRational(1, sampleRate)

	for _, span := range chunkAudio(samples.Len(channels), frameSize) {
		chunk := samples.Wave(channels, sampleRate, span.start, span.end)
		converted, err := p.resampler.Resample(chunk)
		if err != nil {
			return errors.Wrapf(err, "cannot resample audio at %dms", samples.PTS)
		}
		pts := base + sampleTB.Rescale(int64(span.start), tb)
		pkts, err := p.audioEnc.Encode(converted, pts)
		if err != nil {
			return errors.Wrapf(err, "cannot encode audio at %dms", samples.PTS)
		}
		p.stats.audioEncoded.Add(1)
		if err := p.writeAudio(pkts); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) writeAudio(pkts []*codec.Packet) error {
	from := p.audioEnc.TimeBase()
	to := p.audioStream.TimeBase()
	for _, pkt := range pkts {
		pkt.RescaleTS(from, to)
		pkt.StreamIndex = p.audioStream.Index()
		if err := p.container.WriteInterleaved(pkt); err != nil {
			return errors.Wrap(err, "cannot write audio packet")
		}
		p.stats.audioPackets.Add(1)
	}
	return nil
}

// flush drains the encoders and writes the trailer. It runs after the worker
// has exited.
func (p *Pipeline) flush() error {
	pkts, err := p.videoEnc.Flush()
	if err != nil {
		return errors.Wrap(err, "cannot flush video encoder")
	}
	if err := p.writeVideo(pkts); err != nil {
		return err
	}
	if p.audioEnc != nil {
		pkts, err := p.audioEnc.Flush()
		if err != nil {
			return errors.Wrap(err, "cannot flush audio encoder")
		}
		if err := p.writeAudio(pkts); err != nil {
			return err
		}
	}
	if err := p.container.WriteTrailer(); err != nil {
		return errors.Wrapf(err, "cannot write trailer of %q", p.config.Filename)
	}
	return nil
}
