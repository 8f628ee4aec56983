package voice

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sjawhar/pit-radio/internal/audio"
)

// Switch lets an operator take the radio off the air without closing the
// underlying transport. While off, the transport reports disconnected.
type Switch struct {
	Transport
	off atomic.Bool
}

func NewSwitch(t Transport) *Switch {
	return &Switch{Transport: t}
}

func (s *Switch) IsConnected() bool {
	return !s.off.Load() && s.Transport.IsConnected()
}

// Mute takes the radio off the air and cuts anything playing.
func (s *Switch) Mute() {
	s.off.Store(true)
	_ = s.Transport.Stop()
}

func (s *Switch) Unmute() {
	s.off.Store(false)
}

func (s *Switch) Muted() bool {
	return s.off.Load()
}

func (s *Switch) RecordFor(ctx context.Context, d time.Duration) (audio.Buffer, error) {
	if s.off.Load() {
		return audio.Buffer{}, nil
	}
	return s.Transport.RecordFor(ctx, d)
}
