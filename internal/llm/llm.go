// Package llm is a provider-neutral chat completion client.
package llm

import (
	"context"
	"fmt"
	"strings"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Providers lists the accepted provider prefixes of a model name.
var Providers = []string{"openai", "anthropic", "gemini"}

// defaultMaxTokens bounds providers that require an explicit output limit.
const defaultMaxTokens = 8192

type Message struct {
	Role    string
	Content string
}

type Client interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

type Option func(*clientOptions)

type clientOptions struct {
	baseURL     string
	maxTokens   int
	temperature *float64
}

func WithBaseURL(url string) Option {
	return func(o *clientOptions) {
		o.baseURL = url
	}
}

// WithMaxTokens caps the length of generated replies.
func WithMaxTokens(n int) Option {
	return func(o *clientOptions) {
		o.maxTokens = n
	}
}

// WithTemperature sets the sampling temperature. Providers keep their own
// default when it is not set.
func WithTemperature(t float64) Option {
	return func(o *clientOptions) {
		o.temperature = &t
	}
}

func ParseModel(model string) (provider, modelName string, err error) {
	parts := strings.SplitN(model, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid model format %q: expected provider/model_name", model)
	}
	return parts[0], parts[1], nil
}

func NewClient(provider, apiKey, model string, opts ...Option) (Client, error) {
	o := &clientOptions{}
	for _, opt := range opts {
		opt(o)
	}

	switch provider {
	case "openai":
		return newOpenAIClient(apiKey, model, o)
	case "anthropic":
		return newAnthropicClient(apiKey, model, o)
	case "gemini":
		return newGeminiClient(apiKey, model, o)
	default:
		return nil, fmt.Errorf("%w %q: supported providers are %s", ErrUnknownProvider, provider, strings.Join(Providers, ", "))
	}
}

// NewFromModel builds a client from a provider/model name, asking keyFor
// for the provider's API key.
func NewFromModel(name string, keyFor func(provider string) string, opts ...Option) (Client, error) {
	provider, model, err := ParseModel(name)
	if err != nil {
		return nil, err
	}
	key := keyFor(provider)
	if key == "" {
		return nil, fmt.Errorf("%w %q", ErrNoAPIKey, provider)
	}
	return NewClient(provider, key, model, opts...)
}

// Generate runs a single completion with a system prompt and an optional
// user turn. An empty userText sends the system prompt alone.
func Generate(ctx context.Context, client Client, systemPrompt, userText string) (string, error) {
	messages := []Message{{Role: RoleSystem, Content: systemPrompt}}
	if strings.TrimSpace(userText) != "" {
		messages = append(messages, Message{Role: RoleUser, Content: userText})
	}
	return client.Complete(ctx, messages)
}

// promoteLoneSystem rewrites a system-only conversation as a user turn for
// providers that reject requests without one.
func promoteLoneSystem(messages []Message) []Message {
	for _, m := range messages {
		if m.Role == RoleUser {
			return messages
		}
	}

	out := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == RoleSystem {
			m.Role = RoleUser
		}
		out = append(out, m)
	}
	return out
}

func reply(provider, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%s: %w", provider, ErrEmptyReply)
	}
	return text, nil
}
