package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

type geminiClient struct {
	client      *genai.Client
	model       string
	maxTokens   int32
	temperature *float32
}

func newGeminiClient(apiKey, model string, opts *clientOptions) (*geminiClient, error) {
	config := &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI}
	if opts.baseURL != "" {
		config.HTTPOptions.BaseURL = opts.baseURL
	}

	client, err := genai.NewClient(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	c := &geminiClient{client: client, model: model, maxTokens: int32(opts.maxTokens)}
	if opts.temperature != nil {
		c.temperature = genai.Ptr(float32(*opts.temperature))
	}
	return c, nil
}

func toGeminiContents(messages []Message) (*genai.Content, []*genai.Content) {
	var system *genai.Content
	var contents []*genai.Content

	for _, m := range messages {
		part := []*genai.Part{{Text: m.Content}}
		switch m.Role {
		case RoleSystem:
			system = &genai.Content{Parts: part}
		case RoleUser:
			contents = append(contents, &genai.Content{Role: "user", Parts: part})
		case RoleAssistant:
			contents = append(contents, &genai.Content{Role: "model", Parts: part})
		}
	}
	return system, contents
}

func (c *geminiClient) Complete(ctx context.Context, messages []Message) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("gemini: no messages provided")
	}
	system, contents := toGeminiContents(promoteLoneSystem(messages))

	config := &genai.GenerateContentConfig{SystemInstruction: system, Temperature: c.temperature}
	if c.maxTokens > 0 {
		config.MaxOutputTokens = c.maxTokens
	}
	result, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("gemini completion: %w", err)
	}
	return reply("gemini", result.Text())
}
