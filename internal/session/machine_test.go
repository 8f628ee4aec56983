package session

import (
	"testing"

	"github.com/sjawhar/pit-radio/internal/telemetry"
)

func onTrack(lap, total int) telemetry.Snapshot {
	return telemetry.Snapshot{Lap: lap, TotalLaps: total, Position: 3, TotalCars: 8, OnTrack: true}
}

func TestMachineStartsNotRacing(t *testing.T) {
	m := NewMachine()
	var mem Memory

	step := m.Advance(telemetry.Snapshot{}, false, &mem)
	if step.State != NotRacing || len(step.Events) != 0 {
		t.Fatalf("expected quiet NotRacing, got %+v", step)
	}

	step = m.Advance(onTrack(2, 5), true, &mem)
	if step.State != NotRacing {
		t.Fatalf("expected to stay NotRacing until lap 0 is seen, got %v", step.State)
	}
}

func TestMachineRaceStartEmitsIntroOnce(t *testing.T) {
	m := NewMachine()
	var mem Memory

	step := m.Advance(onTrack(0, 5), true, &mem)
	if step.State != Live || !step.Has(EnteredLive) || !step.Intro {
		t.Fatalf("expected race start with intro, got %+v", step)
	}
	if !m.RaceStarted() {
		t.Fatalf("expected race started flag")
	}

	step = m.Advance(onTrack(0, 5), true, &mem)
	if step.Intro || len(step.Events) != 0 || step.State != Live {
		t.Fatalf("expected steady Live without events, got %+v", step)
	}
}

func TestMachinePauseAndResume(t *testing.T) {
	tests := []struct {
		name string
		snap telemetry.Snapshot
		ok   bool
	}{
		{name: "absent", ok: false},
		{name: "loading", snap: telemetry.Snapshot{Lap: 2, TotalLaps: 5, OnTrack: true, Loading: true}, ok: true},
		{name: "off track", snap: telemetry.Snapshot{Lap: 2, TotalLaps: 5}, ok: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMachine()
			var mem Memory
			m.Advance(onTrack(0, 5), true, &mem)

			step := m.Advance(tt.snap, tt.ok, &mem)
			if step.State != Paused || !step.Has(EnteredPaused) {
				t.Fatalf("expected EnteredPaused, got %+v", step)
			}

			step = m.Advance(tt.snap, tt.ok, &mem)
			if step.State != Paused || len(step.Events) != 0 {
				t.Fatalf("expected to stay Paused without events, got %+v", step)
			}

			step = m.Advance(onTrack(2, 5), true, &mem)
			if step.State != Live || !step.Has(LeftPaused) || !step.Has(EnteredLive) {
				t.Fatalf("expected LeftPaused+EnteredLive, got %+v", step)
			}
			if step.Intro || step.NewSession {
				t.Fatalf("resume must not replay the intro or reset memory: %+v", step)
			}
		})
	}
}

func TestMachineFinishResetsEverything(t *testing.T) {
	m := NewMachine()
	var mem Memory
	m.Advance(onTrack(0, 3), true, &mem)
	mem.Lap.PreviousLap = IntPtr(4)
	mem.Fuel.Armed = map[int]bool{50: true}

	finish := telemetry.Snapshot{Lap: 4, TotalLaps: 3, TotalCars: telemetry.NoCars}
	step := m.Advance(finish, true, &mem)
	if !step.Finished || !step.Has(RaceFinished) || step.State != NotRacing {
		t.Fatalf("expected RaceFinished to NotRacing, got %+v", step)
	}
	if mem.Lap.PreviousLap != nil || mem.Fuel.Armed != nil {
		t.Fatalf("expected memory reset, got %+v", mem)
	}
	if m.RaceStarted() {
		t.Fatalf("expected race started flag cleared")
	}

	for i := 0; i < 3; i++ {
		step = m.Advance(finish, true, &mem)
		if step.Finished || len(step.Events) != 0 {
			t.Fatalf("expected finish to fire exactly once, got %+v on repeat %d", step, i)
		}
	}
}

func TestMachineFinishNeedsPauseCondition(t *testing.T) {
	m := NewMachine()
	var mem Memory
	m.Advance(onTrack(0, 3), true, &mem)

	snap := onTrack(2, 3)
	snap.TotalCars = telemetry.NoCars
	step := m.Advance(snap, true, &mem)
	if step.Finished {
		t.Fatalf("expected no finish while the car is still running, got %+v", step)
	}
}

func TestMachineCoolDownLapHoldsPauseUntilFinish(t *testing.T) {
	m := NewMachine()
	var mem Memory
	m.Advance(onTrack(0, 5), true, &mem)
	// The lap detector remembers the chequered-flag lap.
	mem.Lap.PreviousLap = IntPtr(6)
	mem.Fuel.Armed = map[int]bool{50: true}

	step := m.Advance(onTrack(6, 5), true, &mem)
	if step.State != Paused || !step.Has(EnteredPaused) {
		t.Fatalf("expected the cool-down lap to pause, got %+v", step)
	}
	for i := 0; i < 10; i++ {
		step = m.Advance(onTrack(6, 5), true, &mem)
		if step.State != Paused || len(step.Events) != 0 || step.NewSession {
			t.Fatalf("tick %d: expected to stay Paused quietly, got %+v", i, step)
		}
	}
	if mem.Lap.PreviousLap == nil || *mem.Lap.PreviousLap != 6 || !mem.Fuel.Armed[50] {
		t.Fatalf("expected memory kept while paused, got %+v", mem)
	}

	sentinel := onTrack(6, 5)
	sentinel.TotalCars = telemetry.NoCars
	step = m.Advance(sentinel, true, &mem)
	if !step.Finished || step.State != NotRacing {
		t.Fatalf("expected the sentinel to finish the race, got %+v", step)
	}
	if mem.Lap.PreviousLap != nil {
		t.Fatalf("expected memory reset on finish, got %+v", mem)
	}
}

func TestMachineRestartOnTrackIsNewSession(t *testing.T) {
	m := NewMachine()
	var mem Memory
	m.Advance(onTrack(0, 10), true, &mem)
	mem.Lap.PreviousLap = IntPtr(7)
	mem.Overtake.PositionInitialized = true

	// Loading screen between the two races.
	loading := onTrack(0, 5)
	loading.Loading = true
	step := m.Advance(loading, true, &mem)
	if step.State != Paused || step.NewSession {
		t.Fatalf("expected plain pause while loading, got %+v", step)
	}
	if mem.Lap.PreviousLap == nil || !mem.Overtake.PositionInitialized {
		t.Fatalf("expected memory kept while paused, got %+v", mem)
	}

	step = m.Advance(onTrack(0, 5), true, &mem)
	if step.State != Live || !step.NewSession || !step.Has(LeftPaused) || !step.Has(EnteredLive) {
		t.Fatalf("expected new session on the grid, got %+v", step)
	}
	if mem.Lap.PreviousLap != nil || mem.Overtake.PositionInitialized {
		t.Fatalf("expected memory reset for the new race, got %+v", mem)
	}

	// The lap detector records the grid; the next ticks are ordinary.
	mem.Lap.PreviousLap = IntPtr(0)
	for i := 0; i < 3; i++ {
		step = m.Advance(onTrack(0, 5), true, &mem)
		if step.NewSession || step.State != Live || len(step.Events) != 0 {
			t.Fatalf("tick %d: expected exactly one new session, got %+v", i, step)
		}
	}
}

func TestMachineRestartWhileLive(t *testing.T) {
	m := NewMachine()
	var mem Memory
	m.Advance(onTrack(0, 5), true, &mem)
	mem.Lap.PreviousLap = IntPtr(3)

	step := m.Advance(onTrack(1, 5), true, &mem)
	if step.State != Live || !step.NewSession || len(step.Events) != 0 {
		t.Fatalf("expected new session without a state change, got %+v", step)
	}
}

func TestPauseCondition(t *testing.T) {
	tests := []struct {
		name    string
		snap    telemetry.Snapshot
		ok      bool
		prevLap *int
		want    bool
	}{
		{name: "absent", ok: false, want: true},
		{name: "racing", snap: onTrack(3, 10), ok: true, prevLap: IntPtr(2), want: false},
		{name: "loading", snap: telemetry.Snapshot{OnTrack: true, Loading: true}, ok: true, want: true},
		{name: "off track", snap: telemetry.Snapshot{}, ok: true, want: true},
		{name: "shorter race", snap: onTrack(1, 3), ok: true, prevLap: IntPtr(5), want: true},
		{name: "cool-down lap", snap: onTrack(6, 5), ok: true, prevLap: IntPtr(6), want: true},
		{name: "open-ended race", snap: onTrack(6, 0), ok: true, prevLap: IntPtr(5), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PauseCondition(tt.snap, tt.ok, tt.prevLap); got != tt.want {
				t.Fatalf("PauseCondition() = %v, want %v", got, tt.want)
			}
		})
	}
}
