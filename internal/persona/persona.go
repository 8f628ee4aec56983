// Package persona holds the race engineer's voice and turns announcement
// prompts into spoken lines.
package persona

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/sjawhar/pit-radio/internal/announce"
	"github.com/sjawhar/pit-radio/internal/llm"
	"github.com/sjawhar/pit-radio/internal/telemetry"
)

const (
	DefaultDriverName = "Jane Doe"
	DefaultTimeout    = 10 * time.Second
	// MaxReplyTokens keeps replies to a sentence or two.
	MaxReplyTokens = 120
	Temperature    = 0.8
)

var ErrNoText = errors.New("no text for announcement")

// SystemPrompt is the engineer's character sheet.
func SystemPrompt(driver string) string {
	if strings.TrimSpace(driver) == "" {
		driver = DefaultDriverName
	}
	return fmt.Sprintf(
		"You are a witty, dry British race engineer talking to your driver, %[1]s, over team radio. "+
			"%[1]s is a friend, so a bit of banter is welcome. "+
			"Keep it to short, complete sentences because the driver is racing. "+
			"Never use emojis, lists or symbols, and always finish on punctuation.",
		driver,
	)
}

// Composer asks the text generator for the line behind a request.
type Composer struct {
	client  llm.Client
	driver  string
	timeout time.Duration
	logger  *slog.Logger
}

// NewComposer returns a composer. A nil client makes every request fall back
// to its canned text.
func NewComposer(client llm.Client, driver string, timeout time.Duration, logger *slog.Logger) *Composer {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Composer{client: client, driver: driver, timeout: timeout, logger: logger.With("component", "persona")}
}

// Compose returns the words to speak for req. Generation is attempted once;
// on failure the error is returned and the line should be dropped.
func (c *Composer) Compose(ctx context.Context, req announce.Request, snap telemetry.Snapshot, ok bool) (string, error) {
	if req.Prompt == "" || c.client == nil {
		if strings.TrimSpace(req.Text) == "" {
			return "", ErrNoText
		}
		return req.Text, nil
	}

	var b strings.Builder
	b.WriteString(SystemPrompt(c.driver))
	if ok {
		b.WriteString("\n\nCar data right now:\n")
		b.WriteString(telemetry.Stats(snap))
	}
	b.WriteString("\n\n")
	b.WriteString(req.Prompt)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	text, err := llm.Generate(ctx, c.client, b.String(), req.Question)
	if err != nil {
		return "", fmt.Errorf("generate %s line: %w", req.Kind, err)
	}
	text = Tidy(text)
	if text == "" {
		return "", ErrNoText
	}
	c.logger.Debug("composed line", "kind", req.Kind, "text", text)
	return text, nil
}

// Tidy strips characters a speech synthesizer would read out or choke on
// and makes sure the line ends on punctuation.
func Tidy(text string) string {
	text = strings.Map(func(r rune) rune {
		switch {
		case r == '*' || r == '#' || r == '_' || r == '`':
			return -1
		case unicode.Is(unicode.So, r) || unicode.Is(unicode.Cs, r):
			return -1
		case unicode.IsControl(r):
			return ' '
		}
		return r
	}, text)
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return ""
	}
	switch text[len(text)-1] {
	case '.', '!', '?':
		return text
	default:
		return text + "."
	}
}
