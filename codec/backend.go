package codec

import (
	"github.com/edaniels/golog"
	"github.com/pkg/errors"
)

var (
	// ErrUnknownCodec is returned when a backend has no encoder by the requested name.
	ErrUnknownCodec = errors.New("unknown codec")
	// ErrUnknownFormat is returned when no container format fits an output filename.
	ErrUnknownFormat = errors.New("unknown container format")
	// ErrUnknownBackend is returned by Lookup for names nobody registered.
	ErrUnknownBackend = errors.New("unknown codec backend")
)

// A Stream is an elementary stream inside a container. Its time base is final
// only once the container header has been written.
type Stream interface {
	Index() int
	TimeBase() Rational
}

// A Container multiplexes the packets of its streams into one output.
type Container interface {
	// GlobalHeader reports whether encoders must put their configuration in
	// the container header rather than in band.
	GlobalHeader() bool

	// AddStream creates a stream carrying the packets of enc.
	AddStream(enc Encoder) (Stream, error)

	// WriteHeader opens the output and writes the container header.
	WriteHeader() error

	// WriteInterleaved queues pkt, whose timestamps are in its stream's time
	// base, and writes packets out in time order across streams.
	WriteInterleaved(pkt *Packet) error

	// WriteTrailer flushes any queued packets and finalizes the output.
	WriteTrailer() error

	// Close releases the container whether or not the trailer was written.
	Close() error
}

// A Backend produces every collaborator a pipeline needs.
type Backend interface {
	Name() string
	NewContainer(filename string, logger golog.Logger) (Container, error)
	NewVideoEncoder(codecName string, params VideoParams, logger golog.Logger) (VideoEncoder, error)
	NewAudioEncoder(codecName string, params AudioParams, logger golog.Logger) (AudioEncoder, error)
	NewColorConverter(width, height int, dst PixelFormat) (ColorConverter, error)
	NewResampler(params AudioParams, dst SampleFormat) (Resampler, error)
}
