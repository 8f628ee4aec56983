package session

import (
	"slices"

	"github.com/sjawhar/pit-radio/internal/telemetry"
)

// Step is the outcome of advancing the machine by one snapshot.
type Step struct {
	Previous State
	State    State
	Events   []Event

	// Intro is set on the tick the race first goes live.
	Intro bool
	// NewSession is set when the lap counter falls back to the grid or the
	// opening lap mid-race. Memory has already been cleared.
	NewSession bool
	// Finished is set on the RaceFinished edge.
	Finished bool
}

func (s Step) Has(e Event) bool {
	return slices.Contains(s.Events, e)
}

// Changed reports whether the tick moved the machine to another state.
func (s Step) Changed() bool {
	return s.Previous != s.State
}

// Machine classifies the telemetry stream into session states. It is not
// safe for concurrent use; the engineer loop is its only caller.
type Machine struct {
	state       State
	raceStarted bool
}

func NewMachine() *Machine {
	return &Machine{state: NotRacing}
}

func (m *Machine) State() State {
	return m.state
}

func (m *Machine) RaceStarted() bool {
	return m.raceStarted
}

// PauseCondition reports whether the radio must be silent for this
// snapshot: no data, a loading screen, the car off track, or a lap count
// past the race the detectors remember, as on the cool-down lap.
func PauseCondition(snap telemetry.Snapshot, ok bool, previousLap *int) bool {
	if !ok {
		return true
	}
	if snap.Loading || !snap.OnTrack {
		return true
	}
	return lapRegressed(snap, previousLap)
}

func lapRegressed(snap telemetry.Snapshot, previousLap *int) bool {
	return previousLap != nil && snap.TotalLaps != 0 && snap.TotalLaps < *previousLap
}

// restarted reports a race begun again on track: the lap counter fell back
// to the grid or the opening lap. A lap past the total never qualifies.
func restarted(snap telemetry.Snapshot, ok bool, previousLap *int) bool {
	if !ok || snap.Loading || !snap.OnTrack || !snap.LapKnown() || previousLap == nil {
		return false
	}
	return snap.Lap <= 1 && snap.Lap < *previousLap
}

// Advance evaluates one snapshot. Rules are applied in order: finish,
// restart, pause-in, pause-out, race start. mem is kept while paused and is
// cleared on RaceFinished, on a restart, and when a race first starts.
func (m *Machine) Advance(snap telemetry.Snapshot, ok bool, mem *Memory) Step {
	step := Step{Previous: m.state}
	paused := PauseCondition(snap, ok, mem.Lap.PreviousLap)

	if m.raceStarted && paused && ok && snap.TotalCars == telemetry.NoCars {
		m.state = NotRacing
		m.raceStarted = false
		mem.Reset()
		step.State = m.state
		step.Events = append(step.Events, RaceFinished)
		step.Finished = true
		return step
	}

	if m.raceStarted && restarted(snap, ok, mem.Lap.PreviousLap) {
		mem.Reset()
		step.NewSession = true
		if m.state == Paused {
			step.Events = append(step.Events, LeftPaused, EnteredLive)
		}
		m.state = Live
		step.State = m.state
		return step
	}

	if paused {
		if m.state == Live {
			m.state = Paused
			step.Events = append(step.Events, EnteredPaused)
		}
		step.State = m.state
		return step
	}

	if m.state == Paused && m.raceStarted {
		m.state = Live
		step.Events = append(step.Events, LeftPaused, EnteredLive)
		step.State = m.state
		return step
	}

	if !m.raceStarted && snap.Lap == 0 {
		m.raceStarted = true
		m.state = Live
		mem.Reset()
		step.Events = append(step.Events, EnteredLive)
		step.Intro = true
	}

	step.State = m.state
	return step
}
