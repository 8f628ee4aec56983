package telemetry

import "time"

const (
	// NoCars is reported as the car count once the game leaves a race.
	NoCars = -1
	// NoLapTime marks a lap time the game has not recorded yet.
	NoLapTime = -1
	// UnknownLap marks a snapshot without a usable lap counter.
	UnknownLap = -1
)

// Snapshot is a single decoded telemetry sample. Snapshots are values and
// are never mutated after they leave a Source.
type Snapshot struct {
	PacketID   int32
	ReceivedAt time.Time

	Lap       int
	TotalLaps int
	Position  int
	TotalCars int

	OnTrack bool
	Paused  bool
	Loading bool

	FuelLevel    float64
	FuelCapacity float64
	SpeedMPS     float64
	EngineRPM    float64

	TireTempFL float64
	TireTempFR float64
	TireTempRL float64
	TireTempRR float64

	OilPressure float64
	WaterTemp   float64
	OilTemp     float64

	LastLapMs int
	BestLapMs int
}

// LapKnown reports whether the lap counter carries a value.
func (s Snapshot) LapKnown() bool {
	return s.Lap >= 0
}

// FuelPercent returns the remaining fuel as a truncated percentage of
// capacity. ok is false when capacity is not reported (electric cars).
func (s Snapshot) FuelPercent() (pct int, ok bool) {
	if s.FuelCapacity <= 0 {
		return 0, false
	}
	return int(s.FuelLevel / s.FuelCapacity * 100), true
}

// SpeedKPH converts the reported ground speed to kilometres per hour.
func (s Snapshot) SpeedKPH() float64 {
	return s.SpeedMPS * 3.6
}

// Source hands out the most recent snapshot without blocking. ok is false
// when no usable sample is available.
type Source interface {
	Latest() (Snapshot, bool)
}
