package telemetry

import (
	"fmt"
	"strings"
)

// FormatLapTime renders a lap time the way an engineer reads it out.
func FormatLapTime(ms int) string {
	if ms < 0 {
		return "no time set"
	}
	total := ms / 1000
	return fmt.Sprintf("%d minutes and %d seconds", total/60, total%60)
}

// Stats renders a snapshot as plain labelled lines for a prompt.
func Stats(s Snapshot) string {
	var b strings.Builder
	line := func(label string, format string, args ...any) {
		b.WriteString(label)
		b.WriteString(": ")
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}

	if s.LapKnown() {
		line("current lap", "%d", s.Lap)
	}
	line("position", "%d", s.Position)
	line("total laps", "%d", s.TotalLaps)
	if s.TotalCars > 0 {
		line("total cars", "%d", s.TotalCars)
	}
	line("last lap time", "%s", FormatLapTime(s.LastLapMs))
	line("best lap time", "%s", FormatLapTime(s.BestLapMs))
	if pct, ok := s.FuelPercent(); ok {
		line("fuel", "%d percent", pct)
	}
	line("speed", "%.0f km/h", s.SpeedKPH())
	line("engine rpm", "%d", int(s.EngineRPM))
	line("tire temps", "front left %.0f, front right %.0f, rear left %.0f, rear right %.0f",
		s.TireTempFL, s.TireTempFR, s.TireTempRL, s.TireTempRR)
	line("oil pressure", "%.1f", s.OilPressure)
	line("water temp", "%.0f", s.WaterTemp)
	line("oil temp", "%.0f", s.OilTemp)

	return strings.TrimRight(b.String(), "\n")
}
