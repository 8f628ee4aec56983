package session

// State is the radio's view of the game.
type State int

const (
	NotRacing State = iota
	Live
	Paused
)

func (s State) String() string {
	switch s {
	case NotRacing:
		return "not_racing"
	case Live:
		return "live"
	case Paused:
		return "paused"
	default:
		return "unknown"
	}
}

// Event marks a transition edge observed during a tick.
type Event int

const (
	EnteredLive Event = iota + 1
	EnteredPaused
	LeftPaused
	RaceFinished
)

func (e Event) String() string {
	switch e {
	case EnteredLive:
		return "entered_live"
	case EnteredPaused:
		return "entered_paused"
	case LeftPaused:
		return "left_paused"
	case RaceFinished:
		return "race_finished"
	default:
		return "unknown"
	}
}
