// Package detect turns telemetry changes into announcement requests.
//
// Detectors only fire while the session is live and keep their memory in
// session.Memory so the state machine can reset them between races.
package detect

import (
	"time"

	"github.com/sjawhar/pit-radio/internal/announce"
	"github.com/sjawhar/pit-radio/internal/session"
	"github.com/sjawhar/pit-radio/internal/telemetry"
)

const (
	DefaultOvertakeCooldown = 45 * time.Second

	TagLap      = "lap_update"
	TagOvertake = "overtake"
)

// DefaultFuelThresholds are checked from highest to lowest.
var DefaultFuelThresholds = []int{50, 20, 10}

type Detector interface {
	Name() string
	// Evaluate inspects one tick and reports the request to make, if any.
	// It may update mem even when nothing is produced.
	Evaluate(snap telemetry.Snapshot, state session.State, mem *session.Memory, now time.Time) (announce.Request, bool)
}

// Standard returns the detectors in priority order: overtake, lap, fuel.
func Standard(cooldown time.Duration, fuelThresholds []int) []Detector {
	return []Detector{
		NewOvertake(cooldown),
		Lap{},
		NewFuel(fuelThresholds),
	}
}

// Run evaluates every detector against the same tick and returns the
// requests in priority order.
func Run(detectors []Detector, snap telemetry.Snapshot, state session.State, mem *session.Memory, now time.Time) []announce.Request {
	var out []announce.Request
	for _, d := range detectors {
		if req, ok := d.Evaluate(snap, state, mem, now); ok {
			out = append(out, req)
		}
	}
	return out
}
