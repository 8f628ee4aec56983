package telemetry

import "errors"

var (
	ErrShortPacket = errors.New("telemetry packet too short")
	ErrBadMagic    = errors.New("telemetry packet magic mismatch")
	ErrNotRunning  = errors.New("telemetry client not running")
)
