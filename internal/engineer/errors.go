package engineer

import "errors"

// ErrNoActiveRace is returned by Races.Finish when no race is being journaled.
var ErrNoActiveRace = errors.New("no active race")
