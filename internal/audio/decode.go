package audio

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// ffmpegDecode converts any container ffmpeg understands into raw s16le
// mono PCM at sampleRate.
var ffmpegDecode = func(ctx context.Context, path string, sampleRate int) ([]byte, error) {
	cmd := exec.CommandContext(
		ctx,
		"ffmpeg",
		"-v", "error",
		"-i", path,
		"-f", "s16le",
		"-ac", "1",
		"-ar", strconv.Itoa(sampleRate),
		"-",
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg decode: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// DecodeFile loads an audio file. WAV is parsed directly; other formats
// (FLAC, MP3) go through ffmpeg at fallbackRate.
func DecodeFile(ctx context.Context, path string, fallbackRate int) (Buffer, error) {
	if strings.EqualFold(filepath.Ext(path), ".wav") {
		f, err := os.Open(path)
		if err != nil {
			return Buffer{}, fmt.Errorf("open audio: %w", err)
		}
		defer f.Close()
		return DecodeWAV(f)
	}

	if fallbackRate <= 0 {
		fallbackRate = defaultSampleRate
	}
	pcm, err := ffmpegDecode(ctx, path, fallbackRate)
	if err != nil {
		return Buffer{}, err
	}
	return FromPCM16(pcm, fallbackRate), nil
}

// DecodeBytes parses an in-memory clip. WAV is parsed directly; anything
// else is spooled to a temp file for ffmpeg.
func DecodeBytes(ctx context.Context, data []byte, fallbackRate int) (Buffer, error) {
	if len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE" {
		return DecodeWAV(bytes.NewReader(data))
	}

	tmp, err := os.CreateTemp("", "pit-radio-*.audio")
	if err != nil {
		return Buffer{}, fmt.Errorf("create temp audio: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return Buffer{}, fmt.Errorf("write temp audio: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return Buffer{}, fmt.Errorf("close temp audio: %w", err)
	}
	return DecodeFile(ctx, tmp.Name(), fallbackRate)
}
