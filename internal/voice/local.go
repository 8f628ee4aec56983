package voice

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/sjawhar/pit-radio/internal/audio"
)

const framesPerBuffer = 1024

// Local drives the default sound devices through PortAudio.
type Local struct {
	mic     *audio.Mic
	speaker *audio.Speaker

	playMu    sync.Mutex
	connected atomic.Bool
}

// OpenLocal initializes PortAudio and opens the default output device, and
// the default input device when captureRate is positive. Callers must Close
// the transport.
func OpenLocal(captureRate, playbackRate int) (*Local, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize portaudio: %w", err)
	}

	speaker, err := audio.NewSpeaker(playbackRate, framesPerBuffer)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("open speaker: %w", err)
	}

	l := &Local{speaker: speaker}
	if captureRate > 0 {
		mic, err := audio.NewMic(captureRate, framesPerBuffer)
		if err != nil {
			_ = speaker.Close()
			_ = portaudio.Terminate()
			return nil, fmt.Errorf("open microphone: %w", err)
		}
		l.mic = mic
	}
	l.connected.Store(true)
	return l, nil
}

func (l *Local) IsConnected() bool { return l.connected.Load() }
func (l *Local) IsPlaying() bool   { return l.speaker.IsPlaying() }

func (l *Local) RecordFor(ctx context.Context, d time.Duration) (audio.Buffer, error) {
	if l.mic == nil || d <= 0 {
		return audio.Buffer{}, nil
	}
	return l.mic.Record(ctx, d)
}

func (l *Local) PlayAndWait(ctx context.Context, clip audio.Buffer) error {
	l.playMu.Lock()
	defer l.playMu.Unlock()

	err := l.speaker.Play(ctx, clip)
	if errors.Is(err, audio.ErrInterrupted) {
		return ErrStopped
	}
	return err
}

func (l *Local) Stop() error {
	l.speaker.Stop()
	return nil
}

func (l *Local) Close() error {
	l.connected.Store(false)
	var errs []error
	if l.mic != nil {
		errs = append(errs, l.mic.Close())
	}
	errs = append(errs, l.speaker.Close(), portaudio.Terminate())
	return errors.Join(errs...)
}
