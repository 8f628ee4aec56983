// Package trigger recognises the driver addressing the engineer and turns
// the rest of the utterance into a reply.
package trigger

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/sjawhar/pit-radio/internal/announce"
	"github.com/sjawhar/pit-radio/internal/telemetry"
)

const (
	Tag             = "engineer_response"
	Acknowledgement = "Loud and clear. Standing by for your next instruction."
)

// DefaultWords include the mishearings speech-to-text produces for "radio".
var DefaultWords = []string{"radio", "really", "video"}

// Composer produces the spoken reply for a request.
type Composer interface {
	Compose(ctx context.Context, req announce.Request, snap telemetry.Snapshot, ok bool) (string, error)
}

type Handler struct {
	words    []string
	composer Composer
}

func NewHandler(words []string, composer Composer) *Handler {
	var norm []string
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			norm = append(norm, w)
		}
	}
	if len(norm) == 0 {
		norm = DefaultWords
	}
	return &Handler{words: norm, composer: composer}
}

// Match reports whether utterance opens with a trigger word and returns
// what follows it. Leading whitespace is ignored, matching is
// case-insensitive, and the word must end at a non-letter so "radiator"
// does not count.
func (h *Handler) Match(utterance string) (question string, ok bool) {
	text := strings.TrimLeftFunc(utterance, unicode.IsSpace)
	for _, w := range h.words {
		if len(text) < len(w) || !strings.EqualFold(text[:len(w)], w) {
			continue
		}
		rest := text[len(w):]
		if r := firstRune(rest); r != 0 && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			continue
		}
		rest = strings.TrimLeftFunc(rest, func(r rune) bool {
			return unicode.IsSpace(r) || unicode.IsPunct(r)
		})
		return strings.TrimSpace(rest), true
	}
	return "", false
}

// Handle answers a triggered utterance. triggered is false when the driver
// was not talking to the engineer. A bare trigger word gets the canned
// acknowledgement without asking the generator.
func (h *Handler) Handle(ctx context.Context, utterance string, snap telemetry.Snapshot, ok bool, now time.Time) (req announce.Request, triggered bool, err error) {
	question, matched := h.Match(utterance)
	if !matched {
		return announce.Request{}, false, nil
	}
	req = announce.Request{Kind: announce.KindReply, Tag: Tag, Question: question, IssuedAt: now}
	if question == "" {
		req.Text = Acknowledgement
		return req, true, nil
	}
	if h.composer == nil {
		req.Text = Acknowledgement
		return req, true, nil
	}

	prompt := announce.Request{
		Kind:     announce.KindReply,
		Prompt:   "Answer the driver's question as if on the radio. Use the car data if it helps. Be as short as possible.",
		Question: question,
	}
	text, err := h.composer.Compose(ctx, prompt, snap, ok)
	if err != nil {
		return announce.Request{}, true, fmt.Errorf("answer %q: %w", question, err)
	}
	req.Text = text
	return req, true, nil
}

func firstRune(s string) rune {
	for _, r := range s {
		return r
	}
	return 0
}
