// Package transcribe turns captured driver audio into text.
package transcribe

import (
	"context"
	"log/slog"
	"strings"

	"github.com/sjawhar/pit-radio/internal/audio"
)

// MinBytes is the smallest 16-bit capture worth sending; anything shorter
// is treated as no speech.
const MinBytes = 1000

type Transcriber interface {
	Transcribe(ctx context.Context, clip audio.Buffer) (string, error)
}

// Safe never fails: short clips, missing backends and backend errors all
// come back as "".
type Safe struct {
	inner  Transcriber
	logger *slog.Logger
}

func NewSafe(inner Transcriber, logger *slog.Logger) *Safe {
	if logger == nil {
		logger = slog.Default()
	}
	return &Safe{inner: inner, logger: logger.With("component", "transcribe")}
}

func (s *Safe) Transcribe(ctx context.Context, clip audio.Buffer) (string, error) {
	if s.inner == nil || clip.Len()*2 < MinBytes {
		return "", nil
	}
	text, err := s.inner.Transcribe(ctx, clip)
	if err != nil {
		s.logger.Warn("transcription failed", "err", err, "duration", clip.Duration())
		return "", nil
	}
	text = strings.TrimSpace(text)
	if text != "" {
		s.logger.Debug("heard driver", "text", text)
	}
	return text, nil
}
