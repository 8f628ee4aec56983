// Package speech turns engineer lines into audio.
package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/sjawhar/pit-radio/internal/audio"
)

const (
	DefaultVoice = "onyx"
	// openAIRate is the sample rate of OpenAI's WAV speech output.
	openAIRate = 24000
)

var ErrEmptyAudio = errors.New("synthesizer returned no audio")

type OpenAI struct {
	client       *openai.Client
	baseURL      string
	model        openai.SpeechModel
	voice        openai.SpeechVoice
	speed        float64
	instructions string
}

type OpenAIOption func(*OpenAI)

func WithBaseURL(url string) OpenAIOption {
	return func(o *OpenAI) { o.baseURL = url }
}

func WithModel(model string) OpenAIOption {
	return func(o *OpenAI) {
		if model != "" {
			o.model = openai.SpeechModel(model)
		}
	}
}

func WithSpeed(speed float64) OpenAIOption {
	return func(o *OpenAI) { o.speed = speed }
}

// WithInstructions steers delivery on models that support it.
func WithInstructions(text string) OpenAIOption {
	return func(o *OpenAI) { o.instructions = text }
}

func NewOpenAI(apiKey, voice string, opts ...OpenAIOption) *OpenAI {
	if voice == "" {
		voice = DefaultVoice
	}
	o := &OpenAI{model: openai.TTSModel1, voice: openai.SpeechVoice(voice)}
	for _, opt := range opts {
		opt(o)
	}
	config := openai.DefaultConfig(apiKey)
	if o.baseURL != "" {
		config.BaseURL = o.baseURL
	}
	o.client = openai.NewClientWithConfig(config)
	return o
}

func (o *OpenAI) Synthesize(ctx context.Context, text string) (audio.Buffer, error) {
	if strings.TrimSpace(text) == "" {
		return audio.Buffer{}, fmt.Errorf("synthesize: %w", ErrEmptyAudio)
	}
	resp, err := o.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          o.model,
		Input:          text,
		Voice:          o.voice,
		Instructions:   o.instructions,
		ResponseFormat: openai.SpeechResponseFormatWav,
		Speed:          o.speed,
	})
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("openai speech: %w", err)
	}
	defer resp.Close()

	data, err := io.ReadAll(resp)
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("read speech: %w", err)
	}
	if len(data) == 0 {
		return audio.Buffer{}, ErrEmptyAudio
	}
	buf, err := audio.DecodeBytes(ctx, data, openAIRate)
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("decode speech: %w", err)
	}
	if buf.Len() == 0 {
		return audio.Buffer{}, ErrEmptyAudio
	}
	return buf, nil
}
