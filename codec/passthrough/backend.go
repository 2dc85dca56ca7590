// Package passthrough provides a deterministic backend whose codecs store raw
// samples and pixels, and whose container records packets in memory. It is
// meant for tests and dry runs.
package passthrough

import (
	"sync"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"github.com/edaniels/goencode/codec"
	"github.com/edaniels/goencode/convert"
)

// Codec names understood by the backend.
const (
	VideoCodecName = "rawvideo"
	AudioCodecName = "pcm"
)

// Name is the name the default instance registers under.
const Name = "passthrough"

func init() {
	codec.Register(NewBackend())
}

type options struct {
	name           string
	reorderDepth   int
	gopSize        int
	frameSize      int
	sampleFormat   codec.SampleFormat
	streamTimeBase codec.Rational
	dtsOverride    func(i int, dts int64) int64
	failAfter      int
	failErr        error
}

// An Option customizes a Backend.
type Option func(*options)

// WithName sets the name the backend reports.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithReorderDepth makes video encoders hold back depth pictures before
// emitting packets, the way encoders with look-ahead do. Decode timestamps
// then trail presentation timestamps by depth ticks.
func WithReorderDepth(depth int) Option {
	return func(o *options) { o.reorderDepth = depth }
}

// WithGOPSize sets the keyframe interval of video encoders.
func WithGOPSize(size int) Option {
	return func(o *options) { o.gopSize = size }
}

// WithFrameSize sets the number of samples audio encoders ask for. Zero means
// any size.
func WithFrameSize(size int) Option {
	return func(o *options) { o.frameSize = size }
}

// WithSampleFormat sets the sample format audio encoders consume.
func WithSampleFormat(format codec.SampleFormat) Option {
	return func(o *options) { o.sampleFormat = format }
}

// WithStreamTimeBase sets the time base containers assign to every stream.
func WithStreamTimeBase(tb codec.Rational) Option {
	return func(o *options) { o.streamTimeBase = tb }
}

// WithDTSOverride replaces the decode timestamp of the i-th video packet,
// allowing encoders that emit non increasing timestamps to be emulated.
func WithDTSOverride(f func(i int, dts int64) int64) Option {
	return func(o *options) { o.dtsOverride = f }
}

// WithWriteFailure makes containers fail every packet write after the first n.
func WithWriteFailure(n int, err error) Option {
	return func(o *options) {
		o.failAfter = n
		o.failErr = err
	}
}

// A Backend creates passthrough encoders and recording containers. Recordings
// are kept by filename.
type Backend struct {
	opts options

	mu         sync.Mutex
	recordings map[string]*Recording
}

// NewBackend returns a backend configured by opts.
func NewBackend(opts ...Option) *Backend {
	o := options{
		name:           Name,
		gopSize:        30,
		frameSize:      1024,
		sampleFormat:   codec.SampleFormatFloat32,
		streamTimeBase: codec.NewRational(1, 90000),
		failAfter:      -1,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Backend{opts: o, recordings: map[string]*Recording{}}
}

// Name implements codec.Backend.
func (b *Backend) Name() string {
	return b.opts.name
}

// Recording returns what the container for filename recorded, or nil.
func (b *Backend) Recording(filename string) *Recording {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.recordings[filename]
}

// NewContainer implements codec.Backend. Any filename is accepted; creating a
// container twice for the same filename replaces the earlier recording.
func (b *Backend) NewContainer(filename string, logger golog.Logger) (codec.Container, error) {
	if filename == "" {
		return nil, errors.Wrap(codec.ErrUnknownFormat, "empty filename")
	}
	rec := newRecording(filename, b.opts, logger)
	b.mu.Lock()
	b.recordings[filename] = rec
	b.mu.Unlock()
	return rec, nil
}

// NewVideoEncoder implements codec.Backend.
func (b *Backend) NewVideoEncoder(codecName string, params codec.VideoParams, logger golog.Logger) (codec.VideoEncoder, error) {
	if codecName != VideoCodecName {
		return nil, errors.Wrapf(codec.ErrUnknownCodec, "%q", codecName)
	}
	return newVideoEncoder(params, b.opts, logger)
}

// NewAudioEncoder implements codec.Backend.
func (b *Backend) NewAudioEncoder(codecName string, params codec.AudioParams, logger golog.Logger) (codec.AudioEncoder, error) {
	if codecName != AudioCodecName {
		return nil, errors.Wrapf(codec.ErrUnknownCodec, "%q", codecName)
	}
	return newAudioEncoder(params, b.opts)
}

// NewColorConverter implements codec.Backend.
func (b *Backend) NewColorConverter(width, height int, dst codec.PixelFormat) (codec.ColorConverter, error) {
	return convert.NewColorConverter(width, height, dst)
}

// NewResampler implements codec.Backend.
func (b *Backend) NewResampler(params codec.AudioParams, dst codec.SampleFormat) (codec.Resampler, error) {
	return convert.NewResampler(params, dst)
}
