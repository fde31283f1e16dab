// Package capture provides sources of tracked hand frames.
package capture

import (
	"errors"

	"github.com/ayusman/handmocap/internal/sensor"
)

var (
	// ErrSourceClosed is returned when reading from a source that is not open.
	ErrSourceClosed = errors.New("source is not open")
	// ErrEndOfStream is returned once a finite source has delivered every frame.
	ErrEndOfStream = errors.New("end of stream")
)

// Source defines the interface for frame providers.
type Source interface {
	Open() error
	Close() error
	// ReadFrame blocks until the next frame is available. The caller owns
	// the returned snapshot.
	ReadFrame() (*sensor.Snapshot, error)
	IsOpen() bool
}
