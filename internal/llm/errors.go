package llm

import "errors"

var (
	// ErrEmptyReply means the provider answered without any text.
	ErrEmptyReply      = errors.New("model returned no text")
	ErrUnknownProvider = errors.New("unknown LLM provider")
	ErrNoAPIKey        = errors.New("no API key for LLM provider")
)
