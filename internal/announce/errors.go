package announce

import "errors"

var (
	ErrGated              = errors.New("radio is not live")
	ErrDisconnected       = errors.New("voice channel not connected")
	ErrEmptyText          = errors.New("announcement has no text")
	ErrSynthesisExhausted = errors.New("speech synthesis failed after retries")
)
