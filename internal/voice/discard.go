package voice

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sjawhar/pit-radio/internal/audio"
)

// Discard is a headless transport. It hears nothing and "plays" a clip by
// waiting out its duration, so timing matches a real radio.
type Discard struct {
	logger   *slog.Logger
	realtime bool

	mu      sync.Mutex
	playing bool
	cut     chan struct{}
}

// NewDiscard returns a headless transport. With realtime false, clips
// complete immediately.
func NewDiscard(logger *slog.Logger, realtime bool) *Discard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Discard{logger: logger.With("component", "voice"), realtime: realtime}
}

func (d *Discard) IsConnected() bool { return true }

func (d *Discard) IsPlaying() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.playing
}

func (d *Discard) RecordFor(ctx context.Context, dur time.Duration) (audio.Buffer, error) {
	return audio.Buffer{}, nil
}

func (d *Discard) PlayAndWait(ctx context.Context, clip audio.Buffer) error {
	cut := make(chan struct{})
	d.mu.Lock()
	d.playing = true
	d.cut = cut
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.playing = false
		d.cut = nil
		d.mu.Unlock()
	}()

	d.logger.Debug("playing clip", "duration", clip.Duration())
	if !d.realtime {
		return nil
	}

	timer := time.NewTimer(clip.Duration())
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-cut:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Discard) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cut != nil {
		close(d.cut)
		d.cut = nil
	}
	return nil
}
