package storage

import "errors"

// ErrNoRace is returned when an update targets a race that does not exist.
var ErrNoRace = errors.New("race not found")
