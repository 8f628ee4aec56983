package audio

import (
	"context"
	"time"

	"github.com/gordonklaus/portaudio"
)

// Mic wraps a PortAudio capture stream with a configurable buffer size.
type Mic struct {
	stream     *portaudio.Stream
	buf        []int16
	sampleRate int
}

// NewMic opens a PortAudio capture stream with the given sample rate and buffer size (in frames).
func NewMic(sampleRate, framesPerBuffer int) (*Mic, error) {
	buf := make([]int16, framesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(sampleRate), framesPerBuffer, buf)
	if err != nil {
		return nil, err
	}
	return &Mic{stream: stream, buf: buf, sampleRate: sampleRate}, nil
}

func (m *Mic) SampleRate() int { return m.sampleRate }
func (m *Mic) Close() error    { return m.stream.Close() }

// Record captures d of audio. A cancelled ctx ends the capture early and
// returns what was heard so far.
func (m *Mic) Record(ctx context.Context, d time.Duration) (Buffer, error) {
	want := int(int64(d) * int64(m.sampleRate) / int64(time.Second))
	out := Buffer{SampleRate: m.sampleRate, Samples: make([]float64, 0, want)}

	if err := m.stream.Start(); err != nil {
		return out, err
	}
	defer m.stream.Stop()

	for len(out.Samples) < want {
		if ctx.Err() != nil {
			return out, nil
		}
		if err := m.stream.Read(); err != nil {
			return out, err
		}
		for _, s := range m.buf {
			out.Samples = append(out.Samples, float64(s)/32768)
		}
	}
	return out, nil
}
