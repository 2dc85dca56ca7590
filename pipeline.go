// Package goencode encodes a live stream of RGBA frames and float audio into a
// single interleaved media file on a background worker.
package goencode

import (
	"sync"
	"sync/atomic"

	"github.com/edaniels/golog"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"github.com/edaniels/goencode/codec"
	"github.com/edaniels/goencode/media"
	"github.com/edaniels/goencode/queue"
)

// Logger is used by pipelines whose config carries no logger.
var Logger = golog.Global().Named("goencode")

type pipelineState int32

const (
	stateCreated pipelineState = iota
	stateRunning
	stateFinished
)

// A Pipeline accepts frames and sample blocks on any goroutine and encodes
// them, in submission order, on a single worker goroutine that owns every
// encoder and the container. Start, Finish and Close must not be called
// concurrently with one another.
type Pipeline struct {
	id     uuid.UUID
	config PipelineConfig
	logger golog.Logger

	mu    sync.Mutex
	state atomic.Int32
	queue *queue.Queue[media.Unit]

	activeBackgroundWorkers sync.WaitGroup

	errMu sync.Mutex
	err   error

	// owned by the worker once started
	container   codec.Container
	videoEnc    codec.VideoEncoder
	videoStream codec.Stream
	converter   codec.ColorConverter
	audioEnc    codec.AudioEncoder
	audioStream codec.Stream
	resampler   codec.Resampler
	dts         dtsTracker

	stats pipelineStats
}

// NewPipeline validates config and prepares the output: it opens the
// container, configures the encoders and writes the container header. Any
// failure releases what was acquired and is returned.
func NewPipeline(config PipelineConfig) (*Pipeline, error) {
	config = config.withDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	backend, err := config.backend()
	if err != nil {
		return nil, err
	}

	id := uuid.New()
	p := &Pipeline{
		id:     id,
		config: config,
		logger: config.Logger.With("pipeline", id.String()),
		queue:  queue.New[media.Unit](config.QueueCapacity),
	}
	if err := p.initialize(backend); err != nil {
		return nil, err
	}
	p.logger.Debugw("pipeline initialized",
		"filename", config.Filename,
		"backend", backend.Name(),
		"size", []int{config.Width, config.Height},
		"fps", config.FrameRate,
		"video_codec", config.VideoCodec,
		"audio_codec", config.AudioCodec,
	)
	return p, nil
}

// ID identifies the pipeline in logs.
func (p *Pipeline) ID() uuid.UUID {
	return p.id
}

// Config returns the config in effect, defaults included.
func (p *Pipeline) Config() PipelineConfig {
	return p.config
}

// Start launches the encode worker. Starting a running pipeline does nothing.
func (p *Pipeline) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch pipelineState(p.state.Load()) {
	case stateRunning:
		return nil
	case stateFinished:
		return ErrFinished
	case stateCreated:
	}
	p.state.Store(int32(stateRunning))

	p.activeBackgroundWorkers.Add(1)
	utils.PanicCapturingGoWithCallback(func() {
		p.encodeLoop()
		p.activeBackgroundWorkers.Done()
	}, func(err interface{}) {
		p.fail(errors.Errorf("encode worker panicked: %v", err))
		p.activeBackgroundWorkers.Done()
	})
	p.logger.Infow("pipeline started", "filename", p.config.Filename)
	return nil
}

// SubmitVideo queues a frame for encoding, blocking while the queue is full.
// The frame must match the configured canvas size. Errors from earlier units
// are returned here once the worker has stopped.
func (p *Pipeline) SubmitVideo(frame *media.VideoFrame) error {
	if err := p.checkRunning(); err != nil {
		return err
	}
	if err := frame.Validate(); err != nil {
		return err
	}
	if frame.Width != p.config.Width || frame.Height != p.config.Height {
		return errors.Wrapf(ErrSizeMismatch, "frame is %dx%d but the canvas is %dx%d",
			frame.Width, frame.Height, p.config.Width, p.config.Height)
	}
	return p.submit(media.VideoUnit(frame), &p.stats.videoSubmitted)
}

// SubmitAudio queues a block of interleaved samples, blocking while the queue
// is full. It does nothing when audio is disabled.
func (p *Pipeline) SubmitAudio(samples *media.AudioSamples) error {
	if err := p.checkRunning(); err != nil {
		return err
	}
	if !p.config.AudioEnabled() {
		return nil
	}
	if err := samples.Validate(p.config.Channels); err != nil {
		return err
	}
	return p.submit(media.AudioUnit(samples), &p.stats.audioSubmitted)
}

func (p *Pipeline) submit(unit media.Unit, counter *atomic.Int64) error {
	if !p.queue.Push(unit) {
		// closed by Finish or by a failing worker; the unit is dropped
		return p.Err()
	}
	counter.Add(1)
	return nil
}

func (p *Pipeline) checkRunning() error {
	switch pipelineState(p.state.Load()) {
	case stateCreated:
		return ErrNotStarted
	case stateFinished:
		return ErrFinished
	case stateRunning:
	}
	return p.Err()
}

// Finish stops accepting media, waits for every queued unit to be encoded,
// drains the encoders and finalizes the container. It returns the first error
// the worker hit, if any, in which case the container is released without
// being finalized. Finishing a pipeline that is not running does nothing.
func (p *Pipeline) Finish() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pipelineState(p.state.Load()) != stateRunning {
		return nil
	}
	return p.finishLocked()
}

func (p *Pipeline) finishLocked() (err error) {
	p.state.Store(int32(stateFinished))
	p.queue.Close()
	p.activeBackgroundWorkers.Wait()
	defer func() {
		err = multierr.Combine(err, p.release())
	}()

	if err := p.Err(); err != nil {
		return err
	}
	if err := p.flush(); err != nil {
		p.fail(err)
		return err
	}
	p.logger.Infow("pipeline finished", "filename", p.config.Filename, "stats", p.Stats())
	return nil
}

// Close finishes a running pipeline and releases an unstarted one. Errors are
// logged rather than returned since there is nobody left to handle them.
func (p *Pipeline) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	var err error
	switch pipelineState(p.state.Load()) {
	case stateRunning:
		err = p.finishLocked()
	case stateCreated:
		p.state.Store(int32(stateFinished))
		p.queue.Close()
		err = p.release()
	case stateFinished:
		return
	}
	if err != nil {
		p.logger.Errorw("error closing pipeline", "filename", p.config.Filename, "error", err)
	}
}

// Err returns the error that stopped the worker, if any.
func (p *Pipeline) Err() error {
	p.errMu.Lock()
	defer p.errMu.Unlock()
	return p.err
}

// fail records the first error and closes the queue so blocked producers
// return and the worker stops receiving units.
func (p *Pipeline) fail(err error) {
	p.errMu.Lock()
	first := p.err == nil
	if first {
		p.err = err
	}
	p.errMu.Unlock()
	if first {
		p.logger.Errorw("encode worker stopped", "filename", p.config.Filename, "error", err)
	}
	p.queue.Close()
}
