package persona

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sjawhar/pit-radio/internal/announce"
	"github.com/sjawhar/pit-radio/internal/llm"
	"github.com/sjawhar/pit-radio/internal/telemetry"
)

type llmMock struct {
	reply    string
	err      error
	messages []llm.Message
	deadline bool
}

func (m *llmMock) Complete(ctx context.Context, messages []llm.Message) (string, error) {
	m.messages = messages
	_, m.deadline = ctx.Deadline()
	return m.reply, m.err
}

func TestComposeFallsBackToTextWithoutClient(t *testing.T) {
	c := NewComposer(nil, "Sam", 0, nil)
	got, err := c.Compose(context.Background(), announce.Request{Text: "Lap three of ten.", Prompt: "update"}, telemetry.Snapshot{}, false)
	if err != nil {
		t.Fatalf("Compose returned error: %v", err)
	}
	if got != "Lap three of ten." {
		t.Fatalf("expected canned text, got %q", got)
	}

	if _, err := c.Compose(context.Background(), announce.Request{Prompt: "update"}, telemetry.Snapshot{}, false); !errors.Is(err, ErrNoText) {
		t.Fatalf("expected ErrNoText, got %v", err)
	}
}

func TestComposeBuildsPromptWithStats(t *testing.T) {
	client := &llmMock{reply: "Box box, fuel is low"}
	c := NewComposer(client, "Sam", time.Second, nil)

	req := announce.Request{Kind: announce.KindReply, Prompt: "Answer the driver.", Question: "how's the fuel"}
	got, err := c.Compose(context.Background(), req, telemetry.Snapshot{Lap: 4, TotalLaps: 10, Position: 2}, true)
	if err != nil {
		t.Fatalf("Compose returned error: %v", err)
	}
	if got != "Box box, fuel is low." {
		t.Fatalf("expected tidied reply, got %q", got)
	}
	if !client.deadline {
		t.Fatalf("expected generation to run under a timeout")
	}
	if len(client.messages) != 2 {
		t.Fatalf("expected system and user messages, got %d", len(client.messages))
	}
	system := client.messages[0].Content
	for _, want := range []string{"Sam", "current lap: 4", "Answer the driver."} {
		if !strings.Contains(system, want) {
			t.Fatalf("expected system prompt to contain %q, got:\n%s", want, system)
		}
	}
	if client.messages[1].Content != "how's the fuel" {
		t.Fatalf("unexpected user turn %q", client.messages[1].Content)
	}
}

func TestComposeSystemOnlyForDetectorPrompts(t *testing.T) {
	client := &llmMock{reply: "Lap five, steady."}
	c := NewComposer(client, "", time.Second, nil)

	if _, err := c.Compose(context.Background(), announce.Request{Prompt: "Lap update."}, telemetry.Snapshot{}, false); err != nil {
		t.Fatalf("Compose returned error: %v", err)
	}
	if len(client.messages) != 1 || client.messages[0].Role != llm.RoleSystem {
		t.Fatalf("expected a single system message, got %#v", client.messages)
	}
	if !strings.Contains(client.messages[0].Content, DefaultDriverName) {
		t.Fatalf("expected default driver name in persona")
	}
}

func TestComposeReturnsGeneratorError(t *testing.T) {
	client := &llmMock{err: errors.New("timeout")}
	c := NewComposer(client, "Sam", time.Second, nil)

	_, err := c.Compose(context.Background(), announce.Request{Kind: announce.KindLap, Text: "Lap two.", Prompt: "x"}, telemetry.Snapshot{}, false)
	if err == nil || !strings.Contains(err.Error(), "generate lap line") {
		t.Fatalf("expected wrapped generator error, got %v", err)
	}
}

func TestTidy(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  **Great** move  ", "Great move."},
		{"Fuel's fine 🔥!", "Fuel's fine !"},
		{"line one\nline two?", "line one line two?"},
		{"   ", ""},
	}
	for _, tt := range tests {
		if got := Tidy(tt.in); got != tt.want {
			t.Fatalf("Tidy(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
