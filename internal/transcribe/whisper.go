package transcribe

import (
	"bytes"
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/sjawhar/pit-radio/internal/audio"
)

type Whisper struct {
	client   *openai.Client
	language string
}

func NewWhisper(apiKey, language string) *Whisper {
	return NewWhisperWithConfig(openai.DefaultConfig(apiKey), language)
}

func NewWhisperWithConfig(config openai.ClientConfig, language string) *Whisper {
	return &Whisper{client: openai.NewClientWithConfig(config), language: language}
}

func (w *Whisper) Transcribe(ctx context.Context, clip audio.Buffer) (string, error) {
	wav, err := audio.EncodeWAV(clip)
	if err != nil {
		return "", fmt.Errorf("encode utterance: %w", err)
	}
	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: "utterance.wav",
		Reader:   bytes.NewReader(wav),
		Language: w.language,
	})
	if err != nil {
		return "", fmt.Errorf("whisper transcription: %w", err)
	}
	return resp.Text, nil
}
