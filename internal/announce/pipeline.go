package announce

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/sjawhar/pit-radio/internal/audio"
	"github.com/sjawhar/pit-radio/internal/voice"
)

const (
	DefaultAttempts   = 3
	DefaultRetryDelay = time.Second
)

// Gate reports whether the session currently allows announcements.
type Gate interface {
	Live() bool
}

type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (audio.Buffer, error)
}

// Effect post-processes synthesized speech.
type Effect interface {
	Apply(in audio.Buffer) (audio.Buffer, error)
}

// Journal receives every outcome. Implementations must not block for long.
type Journal interface {
	Record(ctx context.Context, o Outcome)
}

// Pipeline turns requests into radio audio, one at a time.
type Pipeline struct {
	gate      Gate
	transport voice.Transport
	synth     Synthesizer
	effect    Effect
	journals  []Journal
	clipDir   string
	attempts  int
	delay     time.Duration
	backoff   func() retry.Backoff
	logger    *slog.Logger
	now       func() time.Time

	mu sync.Mutex
}

type Option func(*Pipeline)

func WithJournal(j Journal) Option {
	return func(p *Pipeline) {
		if j != nil {
			p.journals = append(p.journals, j)
		}
	}
}

// WithClipDir stores every processed clip as <dir>/<tag>.wav.
func WithClipDir(dir string) Option {
	return func(p *Pipeline) {
		p.clipDir = dir
	}
}

// WithRetry sets the number of synthesis attempts and the pause between
// them.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(p *Pipeline) {
		if attempts > 0 {
			p.attempts = attempts
		}
		if delay > 0 {
			p.delay = delay
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

func NewPipeline(gate Gate, transport voice.Transport, synth Synthesizer, effect Effect, opts ...Option) *Pipeline {
	p := &Pipeline{
		gate:      gate,
		transport: transport,
		synth:     synth,
		effect:    effect,
		attempts:  DefaultAttempts,
		delay:     DefaultRetryDelay,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.backoff == nil {
		p.backoff = func() retry.Backoff {
			return retry.WithMaxRetries(uint64(p.attempts-1), retry.NewConstant(p.delay))
		}
	}
	p.logger = p.logger.With("component", "announce")
	return p
}

// Announce speaks req and returns once playback has finished or was cut.
// Requests are serialized; a second caller waits for the first.
func (p *Pipeline) Announce(ctx context.Context, req Request) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := Outcome{Request: req, Text: req.Text, At: p.now()}

	if !req.SignOff && !p.gate.Live() {
		return p.finish(ctx, out, StatusGated, ErrGated)
	}
	if !p.transport.IsConnected() {
		return p.finish(ctx, out, StatusGated, ErrDisconnected)
	}

	text := SpeakPositions(req.Text)
	if text == "" {
		return p.finish(ctx, out, StatusDropped, ErrEmptyText)
	}

	clip, attempts, err := p.render(ctx, text)
	out.Attempts = attempts
	if err != nil {
		if ctx.Err() != nil {
			return p.finish(ctx, out, StatusDropped, ctx.Err())
		}
		p.logger.Warn("dropping announcement", "tag", req.Tag, "attempts", attempts, "error", err)
		return p.finish(ctx, out, StatusDropped, fmt.Errorf("%w: %w", ErrSynthesisExhausted, err))
	}

	out.ClipPath = p.saveClip(req.Tag, clip)
	out.Clip = clip
	out.Duration = clip.Duration()

	if err := p.transport.PlayAndWait(ctx, clip); err != nil {
		if errors.Is(err, voice.ErrStopped) {
			p.logger.Info("announcement cut", "tag", req.Tag)
			return p.finish(ctx, out, StatusCut, err)
		}
		return p.finish(ctx, out, StatusFailed, fmt.Errorf("play %s: %w", req.Tag, err))
	}

	p.logger.Info("announcement played", "tag", req.Tag, "text", req.Text)
	return p.finish(ctx, out, StatusPlayed, nil)
}

func (p *Pipeline) render(ctx context.Context, text string) (audio.Buffer, int, error) {
	attempts := 0
	clip, err := retry.DoValue(ctx, p.backoff(), func(ctx context.Context) (audio.Buffer, error) {
		attempts++
		raw, err := p.synth.Synthesize(ctx, text)
		if err != nil {
			p.logger.Debug("synthesis attempt failed", "attempt", attempts, "error", err)
			return audio.Buffer{}, retry.RetryableError(fmt.Errorf("synthesize: %w", err))
		}
		if p.effect == nil {
			if raw.Len() == 0 {
				return audio.Buffer{}, retry.RetryableError(audio.ErrEmpty)
			}
			return raw, nil
		}
		processed, err := p.effect.Apply(raw)
		if err != nil {
			return audio.Buffer{}, retry.RetryableError(fmt.Errorf("apply radio effect: %w", err))
		}
		return processed, nil
	})
	return clip, attempts, err
}

var unsafeTag = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

func (p *Pipeline) saveClip(tag string, clip audio.Buffer) string {
	if p.clipDir == "" || tag == "" {
		return ""
	}
	if err := os.MkdirAll(p.clipDir, 0o755); err != nil {
		p.logger.Warn("create clip directory", "error", err)
		return ""
	}
	path := filepath.Join(p.clipDir, unsafeTag.ReplaceAllString(tag, "_")+".wav")
	if err := audio.WriteWAV(path, clip); err != nil {
		p.logger.Warn("save clip", "tag", tag, "error", err)
		return ""
	}
	return path
}

func (p *Pipeline) finish(ctx context.Context, out Outcome, status Status, err error) error {
	out.Status = status
	out.Err = err
	for _, j := range p.journals {
		j.Record(ctx, out)
	}
	return err
}
