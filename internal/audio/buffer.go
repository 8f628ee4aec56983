package audio

import (
	"errors"
	"time"
)

// ErrEmpty is returned when an operation needs audio and got none.
var ErrEmpty = errors.New("audio buffer is empty")

// Buffer is mono audio with samples in [-1, 1].
type Buffer struct {
	Samples    []float64
	SampleRate int
}

func (b Buffer) Len() int {
	return len(b.Samples)
}

func (b Buffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(b.Samples)) * time.Second / time.Duration(b.SampleRate)
}

// Clone returns a deep copy so effects never alias their input.
func (b Buffer) Clone() Buffer {
	out := Buffer{SampleRate: b.SampleRate, Samples: make([]float64, len(b.Samples))}
	copy(out.Samples, b.Samples)
	return out
}

// Slice returns at most d of audio from the start of b.
func (b Buffer) Slice(d time.Duration) Buffer {
	n := int(int64(d) * int64(b.SampleRate) / int64(time.Second))
	if n > len(b.Samples) {
		n = len(b.Samples)
	}
	out := Buffer{SampleRate: b.SampleRate, Samples: make([]float64, n)}
	copy(out.Samples, b.Samples[:n])
	return out
}

// Concat joins buffers that share a sample rate.
func Concat(parts ...Buffer) Buffer {
	var out Buffer
	total := 0
	for _, p := range parts {
		total += len(p.Samples)
		if out.SampleRate == 0 {
			out.SampleRate = p.SampleRate
		}
	}
	out.Samples = make([]float64, 0, total)
	for _, p := range parts {
		out.Samples = append(out.Samples, p.Samples...)
	}
	return out
}

// FromPCM16 decodes little-endian signed 16-bit mono samples.
func FromPCM16(data []byte, sampleRate int) Buffer {
	samples := make([]float64, len(data)/2)
	for i := range samples {
		v := int16(uint16(data[i*2]) | uint16(data[i*2+1])<<8)
		samples[i] = float64(v) / 32768
	}
	return Buffer{Samples: samples, SampleRate: sampleRate}
}

// PCM16 encodes the buffer as little-endian signed 16-bit samples,
// clipping anything outside [-1, 1].
func (b Buffer) PCM16() []byte {
	data := make([]byte, len(b.Samples)*2)
	for i, s := range b.Samples {
		v := toInt16(s)
		data[i*2] = byte(v)
		data[i*2+1] = byte(uint16(v) >> 8)
	}
	return data
}

// Int16 returns the samples as clipped 16-bit integers.
func (b Buffer) Int16() []int16 {
	out := make([]int16, len(b.Samples))
	for i, s := range b.Samples {
		out[i] = toInt16(s)
	}
	return out
}

func toInt16(s float64) int16 {
	v := s * 32768
	switch {
	case v > 32767:
		return 32767
	case v < -32768:
		return -32768
	default:
		return int16(v)
	}
}

// Peak returns the largest absolute sample value.
func (b Buffer) Peak() float64 {
	var peak float64
	for _, s := range b.Samples {
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
	}
	return peak
}
