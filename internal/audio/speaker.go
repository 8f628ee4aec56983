package audio

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"
)

// ErrInterrupted is returned by Play when Stop cut the clip short.
var ErrInterrupted = errors.New("playback interrupted")

// Speaker wraps a PortAudio output stream.
type Speaker struct {
	stream     *portaudio.Stream
	buf        []int16
	sampleRate int

	playing atomic.Bool
	stop    atomic.Bool
}

func NewSpeaker(sampleRate, framesPerBuffer int) (*Speaker, error) {
	buf := make([]int16, framesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(0, 1, float64(sampleRate), framesPerBuffer, buf)
	if err != nil {
		return nil, err
	}
	return &Speaker{stream: stream, buf: buf, sampleRate: sampleRate}, nil
}

func (s *Speaker) SampleRate() int { return s.sampleRate }
func (s *Speaker) Close() error    { return s.stream.Close() }
func (s *Speaker) IsPlaying() bool { return s.playing.Load() }

// Stop cuts the clip currently playing. It is safe to call from any
// goroutine and is a no-op when nothing is playing.
func (s *Speaker) Stop() {
	if s.playing.Load() {
		s.stop.Store(true)
	}
}

// Play writes b to the device and returns when the last frame has been
// queued, or early when Stop is called or ctx is cancelled.
func (s *Speaker) Play(ctx context.Context, b Buffer) error {
	samples := Resample(b, s.sampleRate).Int16()

	s.stop.Store(false)
	s.playing.Store(true)
	defer s.playing.Store(false)

	if err := s.stream.Start(); err != nil {
		return err
	}
	defer s.stream.Stop()

	for off := 0; off < len(samples); off += len(s.buf) {
		if s.stop.Load() {
			_ = s.stream.Abort()
			return ErrInterrupted
		}
		if err := ctx.Err(); err != nil {
			_ = s.stream.Abort()
			return err
		}

		n := copy(s.buf, samples[off:])
		clear(s.buf[n:])
		if err := s.stream.Write(); err != nil {
			return err
		}
	}
	return nil
}
