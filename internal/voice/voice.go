package voice

import (
	"context"
	"errors"
	"time"

	"github.com/sjawhar/pit-radio/internal/audio"
)

// ErrStopped is returned by PlayAndWait when Stop cut the clip.
var ErrStopped = errors.New("playback stopped")

// Transport is the radio channel to the driver.
type Transport interface {
	IsConnected() bool
	// RecordFor captures up to d of driver audio.
	RecordFor(ctx context.Context, d time.Duration) (audio.Buffer, error)
	// PlayAndWait blocks until the clip finished or was cut.
	PlayAndWait(ctx context.Context, clip audio.Buffer) error
	IsPlaying() bool
	// Stop hard-cuts any clip in flight.
	Stop() error
}
