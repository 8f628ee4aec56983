package detect

import (
	"fmt"
	"slices"
	"time"

	"github.com/sjawhar/pit-radio/internal/announce"
	"github.com/sjawhar/pit-radio/internal/session"
	"github.com/sjawhar/pit-radio/internal/telemetry"
)

// Fuel warns once as the tank drops through each threshold. A threshold
// re-arms when the level climbs back above it, e.g. after a pit stop.
type Fuel struct {
	thresholds []int
}

func NewFuel(thresholds []int) *Fuel {
	if len(thresholds) == 0 {
		thresholds = DefaultFuelThresholds
	}
	sorted := slices.Clone(thresholds)
	slices.Sort(sorted)
	slices.Reverse(sorted)
	return &Fuel{thresholds: slices.Compact(sorted)}
}

func (f *Fuel) Name() string { return "fuel" }

func (f *Fuel) Evaluate(snap telemetry.Snapshot, state session.State, mem *session.Memory, now time.Time) (announce.Request, bool) {
	if state != session.Live {
		return announce.Request{}, false
	}
	pct, ok := snap.FuelPercent()
	if !ok {
		return announce.Request{}, false
	}
	if mem.Fuel.Armed == nil {
		mem.Fuel.Armed = make(map[int]bool)
	}
	armed := mem.Fuel.Armed
	for th := range armed {
		if pct > th {
			delete(armed, th)
		}
	}

	for _, th := range f.thresholds {
		if pct > th || armed[th] {
			continue
		}
		armed[th] = true
		return announce.Request{
			Kind:     announce.KindFuel,
			Tag:      fmt.Sprintf("fuel_%d", th),
			Text:     fmt.Sprintf("Fuel is down to %d percent.", pct),
			Prompt:   fmt.Sprintf("Fuel just dropped below %d%%. Tell the driver they have %d percent left with a quick quip. Ultra short.", th, pct),
			IssuedAt: now,
		}, true
	}
	return announce.Request{}, false
}
