package transcribe

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"

	"github.com/sjawhar/pit-radio/internal/audio"
)

const (
	deepgramChunk = 100 * time.Millisecond
	// deepgramTail is silence appended so the endpointer closes the utterance.
	deepgramTail   = 1200 * time.Millisecond
	deepgramSettle = 3 * time.Second
)

var initDeepgram sync.Once

// dialFunc opens a live session and returns the audio sink and a stop func.
type dialFunc func(ctx context.Context, sampleRate int, cb *utteranceCallback) (io.Writer, func(), error)

// Deepgram streams each capture over a live websocket and collects the
// final words. It suits hosts where the Whisper upload latency is too high.
type Deepgram struct {
	apiKey   string
	language string
	settle   time.Duration
	logger   *slog.Logger
	dial     dialFunc
}

func NewDeepgram(apiKey, language string, logger *slog.Logger) *Deepgram {
	if language == "" {
		language = "en-US"
	}
	if logger == nil {
		logger = slog.Default()
	}
	d := &Deepgram{
		apiKey:   apiKey,
		language: language,
		settle:   deepgramSettle,
		logger:   logger.With("component", "deepgram"),
	}
	d.dial = d.dialLive
	return d
}

func (d *Deepgram) dialLive(ctx context.Context, sampleRate int, cb *utteranceCallback) (io.Writer, func(), error) {
	initDeepgram.Do(func() {
		client.Init(client.InitLib{LogLevel: client.LogLevelDefault})
	})

	cOptions := &interfaces.ClientOptions{EnableKeepAlive: true}
	tOptions := &interfaces.LiveTranscriptionOptions{
		Model:       "nova-2",
		Language:    d.language,
		Punctuate:   true,
		SmartFormat: true,
		Encoding:    "linear16",
		SampleRate:  sampleRate,
		Channels:    1,
	}

	dg, err := client.NewWSUsingCallback(ctx, d.apiKey, cOptions, tOptions, cb)
	if err != nil {
		return nil, nil, fmt.Errorf("deepgram client: %w", err)
	}
	if ok := dg.Connect(); !ok {
		return nil, nil, fmt.Errorf("deepgram connect failed")
	}
	return dg, func() { dg.Stop() }, nil
}

func (d *Deepgram) Transcribe(ctx context.Context, clip audio.Buffer) (string, error) {
	if clip.Len() == 0 {
		return "", nil
	}
	cb := newUtteranceCallback(d.logger)
	stream, stop, err := d.dial(ctx, clip.SampleRate, cb)
	if err != nil {
		return "", err
	}
	defer stop()

	tail := audio.Buffer{Samples: make([]float64, int(deepgramTail.Seconds()*float64(clip.SampleRate))), SampleRate: clip.SampleRate}
	pcm := audio.Concat(clip, tail).PCM16()
	chunk := 2 * int(deepgramChunk.Seconds()*float64(clip.SampleRate))
	if chunk <= 0 {
		chunk = len(pcm)
	}
	for start := 0; start < len(pcm); start += chunk {
		end := min(start+chunk, len(pcm))
		if _, err := stream.Write(pcm[start:end]); err != nil {
			return "", fmt.Errorf("stream audio: %w", err)
		}
	}

	timer := time.NewTimer(d.settle)
	defer timer.Stop()
	select {
	case <-cb.done:
	case <-timer.C:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return cb.Text(), nil
}

// utteranceCallback receives Deepgram events for a single capture.
type utteranceCallback struct {
	logger *slog.Logger

	mu     sync.Mutex
	buffer *UtteranceBuffer
	parts  []string

	once sync.Once
	done chan struct{}
}

func newUtteranceCallback(logger *slog.Logger) *utteranceCallback {
	return &utteranceCallback{logger: logger, buffer: NewUtteranceBuffer(), done: make(chan struct{})}
}

func (c *utteranceCallback) Message(mr *api.MessageResponse) error {
	if len(mr.Channel.Alternatives) == 0 || !mr.IsFinal {
		return nil
	}
	alt := mr.Channel.Alternatives[0]

	words := make([]Word, 0, len(alt.Words))
	for _, w := range alt.Words {
		words = append(words, Word{PunctuatedWord: w.PunctuatedWord, Start: w.Start, End: w.End})
	}
	if len(words) == 0 && strings.TrimSpace(alt.Transcript) != "" {
		words = append(words, Word{PunctuatedWord: alt.Transcript})
	}

	c.mu.Lock()
	c.buffer.AddWords(words)
	if mr.SpeechFinal {
		c.flushLocked()
	}
	c.mu.Unlock()

	if mr.SpeechFinal {
		c.finish()
	}
	return nil
}

func (c *utteranceCallback) UtteranceEnd(*api.UtteranceEndResponse) error {
	c.mu.Lock()
	c.flushLocked()
	c.mu.Unlock()
	c.finish()
	return nil
}

func (c *utteranceCallback) Open(*api.OpenResponse) error {
	c.logger.Debug("connected to Deepgram")
	return nil
}

func (c *utteranceCallback) Metadata(*api.MetadataResponse) error { return nil }

func (c *utteranceCallback) SpeechStarted(*api.SpeechStartedResponse) error { return nil }

func (c *utteranceCallback) Close(*api.CloseResponse) error {
	c.logger.Debug("disconnected from Deepgram")
	c.finish()
	return nil
}

func (c *utteranceCallback) Error(er *api.ErrorResponse) error {
	c.logger.Warn("deepgram error", "code", er.ErrCode, "description", er.Description)
	c.finish()
	return nil
}

func (c *utteranceCallback) UnhandledEvent([]byte) error { return nil }

func (c *utteranceCallback) flushLocked() {
	if words := c.buffer.Flush(); len(words) > 0 {
		c.parts = append(c.parts, JoinWords(words))
	}
}

func (c *utteranceCallback) finish() {
	c.once.Do(func() { close(c.done) })
}

// Text returns everything heard so far, including words still waiting for
// speech_final.
func (c *utteranceCallback) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flushLocked()
	return strings.Join(c.parts, " ")
}
