package session

import "time"

// LapMemory backs the lap detector.
type LapMemory struct {
	PreviousLap       *int
	PreviousBestLapMs *int
}

// OvertakeMemory backs the overtake detector.
type OvertakeMemory struct {
	PreviousPosition    *int
	PositionInitialized bool
	LastAnnouncedAt     time.Time
}

// FuelMemory records the thresholds already called out.
type FuelMemory struct {
	Armed map[int]bool
}

// Memory is the detector state carried from tick to tick. It belongs to the
// engineer loop and is reset when a race ends or a new one begins.
type Memory struct {
	Lap      LapMemory
	Overtake OvertakeMemory
	Fuel     FuelMemory
}

func (m *Memory) Reset() {
	*m = Memory{}
}

// IntPtr returns a pointer to a copy of v.
func IntPtr(v int) *int {
	return &v
}
