package goencode

import "github.com/pkg/errors"

var (
	// ErrNotStarted is returned when media is submitted before Start.
	ErrNotStarted = errors.New("pipeline not started")
	// ErrFinished is returned when a finished pipeline is used again.
	ErrFinished = errors.New("pipeline already finished")
	// ErrInvalidConfig is wrapped by every configuration error found before
	// touching the backend.
	ErrInvalidConfig = errors.New("invalid pipeline config")
	// ErrSizeMismatch is returned for frames whose size differs from the
	// canvas they are meant for.
	ErrSizeMismatch = errors.New("frame size mismatch")
)
