package speech

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/sjawhar/pit-radio/internal/audio"
)

// outputPlaceholder in a command line is replaced by the WAV file the
// synthesizer must write.
const outputPlaceholder = "{output}"

// Command runs a local synthesizer such as piper. The line is written to
// the command's stdin; the command writes a WAV file to {output}, or WAV
// bytes to stdout when the placeholder is absent.
type Command struct {
	argv []string
	rate int
}

func NewCommand(command string, fallbackRate int) (*Command, error) {
	argv := strings.Fields(command)
	if len(argv) == 0 {
		return nil, fmt.Errorf("speech command is empty")
	}
	return &Command{argv: argv, rate: fallbackRate}, nil
}

func (c *Command) Synthesize(ctx context.Context, text string) (audio.Buffer, error) {
	if strings.TrimSpace(text) == "" {
		return audio.Buffer{}, fmt.Errorf("synthesize: %w", ErrEmptyAudio)
	}

	dir, err := os.MkdirTemp("", "pit-radio-tts-*")
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("create tts dir: %w", err)
	}
	defer os.RemoveAll(dir)
	outPath := filepath.Join(dir, "line.wav")

	toFile := false
	args := make([]string, len(c.argv)-1)
	for i, a := range c.argv[1:] {
		if strings.Contains(a, outputPlaceholder) {
			toFile = true
			a = strings.ReplaceAll(a, outputPlaceholder, outPath)
		}
		args[i] = a
	}

	cmd := exec.CommandContext(ctx, c.argv[0], args...)
	cmd.Stdin = strings.NewReader(text + "\n")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return audio.Buffer{}, fmt.Errorf("run %s: %w: %s", c.argv[0], err, strings.TrimSpace(stderr.String()))
	}

	var buf audio.Buffer
	if toFile {
		buf, err = audio.DecodeFile(ctx, outPath, c.rate)
	} else {
		if stdout.Len() == 0 {
			return audio.Buffer{}, ErrEmptyAudio
		}
		buf, err = audio.DecodeBytes(ctx, stdout.Bytes(), c.rate)
	}
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("decode %s output: %w", c.argv[0], err)
	}
	if buf.Len() == 0 {
		return audio.Buffer{}, ErrEmptyAudio
	}
	return buf, nil
}
