package announce

import (
	"time"

	"github.com/sjawhar/pit-radio/internal/audio"
)

// Kind groups requests by what produced them.
type Kind string

const (
	KindIntro    Kind = "intro"
	KindLap      Kind = "lap"
	KindFinish   Kind = "finish"
	KindOvertake Kind = "overtake"
	KindFuel     Kind = "fuel"
	KindReply    Kind = "reply"
	KindSignOff  Kind = "signoff"
)

// Request is one line the engineer wants to say.
type Request struct {
	Kind Kind
	// Tag names the clip; repeated events overwrite the same clip.
	Tag string
	// Text is spoken verbatim when no generator is configured or Prompt
	// is empty.
	Text string
	// Prompt asks the text generator for the line instead.
	Prompt string
	// Question is the driver's words, passed to the generator as the
	// user turn.
	Question string
	// SignOff marks the race-finish line, the only request that may play
	// after the session has left Live.
	SignOff  bool
	IssuedAt time.Time
}

// Status is the recorded outcome of a request.
type Status string

const (
	StatusPlayed  Status = "played"
	StatusCut     Status = "cut"
	StatusGated   Status = "gated"
	StatusDropped Status = "dropped"
	StatusFailed  Status = "failed"
)

// Outcome describes what happened to a request.
type Outcome struct {
	Request  Request
	Text     string
	Status   Status
	Attempts int
	Err      error
	ClipPath string
	// Clip is the processed audio; empty unless synthesis succeeded.
	Clip     audio.Buffer
	At       time.Time
	Duration time.Duration
}
