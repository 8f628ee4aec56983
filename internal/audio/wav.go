package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

const (
	pcmChannels = 1
	pcmBitDepth = 16
)

var ErrUnsupportedWAV = errors.New("unsupported wav format")

// EncodeWAV renders b as a 16-bit mono PCM WAV file.
func EncodeWAV(b Buffer) ([]byte, error) {
	pcm := b.PCM16()
	header, err := wavHeader(len(pcm), b.SampleRate, pcmChannels, pcmBitDepth)
	if err != nil {
		return nil, fmt.Errorf("build wav header: %w", err)
	}
	return append(header, pcm...), nil
}

// WriteWAV encodes b and writes it to path.
func WriteWAV(path string, b Buffer) error {
	data, err := EncodeWAV(b)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	return nil
}

// DecodeWAV reads 8- or 16-bit PCM WAV data, mixing multiple channels
// down to mono.
func DecodeWAV(r io.Reader) (Buffer, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Buffer{}, fmt.Errorf("read wav: %w", err)
	}
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return Buffer{}, fmt.Errorf("missing RIFF/WAVE header: %w", ErrUnsupportedWAV)
	}

	var (
		format     uint16
		channels   int
		sampleRate int
		bitDepth   int
		payload    []byte
		haveFmt    bool
	)

	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		end := body + size
		if end > len(data) {
			end = len(data)
		}

		switch id {
		case "fmt ":
			if end-body < 16 {
				return Buffer{}, fmt.Errorf("short fmt chunk: %w", ErrUnsupportedWAV)
			}
			format = binary.LittleEndian.Uint16(data[body : body+2])
			channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bitDepth = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
			haveFmt = true
		case "data":
			payload = data[body:end]
		}

		pos = body + size + size%2
	}

	if !haveFmt || payload == nil {
		return Buffer{}, fmt.Errorf("missing fmt or data chunk: %w", ErrUnsupportedWAV)
	}
	if format != 1 || channels < 1 || (bitDepth != 8 && bitDepth != 16) {
		return Buffer{}, fmt.Errorf("format=%d channels=%d bits=%d: %w", format, channels, bitDepth, ErrUnsupportedWAV)
	}

	frameSize := channels * bitDepth / 8
	frames := len(payload) / frameSize
	out := Buffer{SampleRate: sampleRate, Samples: make([]float64, frames)}
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			off := i*frameSize + c*bitDepth/8
			if bitDepth == 8 {
				sum += (float64(payload[off]) - 128) / 128
			} else {
				sum += float64(int16(binary.LittleEndian.Uint16(payload[off:off+2]))) / 32768
			}
		}
		out.Samples[i] = sum / float64(channels)
	}
	return out, nil
}

func wavHeader(dataSize, sampleRate, channels, bitDepth int) ([]byte, error) {
	byteRate := sampleRate * channels * bitDepth / 8
	blockAlign := channels * bitDepth / 8
	chunkSize := 36 + dataSize

	buf := bytes.NewBuffer(make([]byte, 0, 44))
	buf.WriteString("RIFF")
	if err := binary.Write(buf, binary.LittleEndian, uint32(chunkSize)); err != nil {
		return nil, err
	}
	buf.WriteString("WAVEfmt ")
	for _, f := range []any{
		uint32(16),
		uint16(1),
		uint16(channels),
		uint32(sampleRate),
		uint32(byteRate),
		uint16(blockAlign),
		uint16(bitDepth),
	} {
		if err := binary.Write(buf, binary.LittleEndian, f); err != nil {
			return nil, err
		}
	}
	buf.WriteString("data")
	if err := binary.Write(buf, binary.LittleEndian, uint32(dataSize)); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
