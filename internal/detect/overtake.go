package detect

import (
	"fmt"
	"time"

	"github.com/sjawhar/pit-radio/internal/announce"
	"github.com/sjawhar/pit-radio/internal/session"
	"github.com/sjawhar/pit-radio/internal/telemetry"
)

// Overtake calls out position changes from lap two onward, at most once per
// cooldown. The first position seen on lap two is the silent baseline.
type Overtake struct {
	cooldown time.Duration
}

func NewOvertake(cooldown time.Duration) *Overtake {
	if cooldown < 0 {
		cooldown = 0
	}
	return &Overtake{cooldown: cooldown}
}

func (o *Overtake) Name() string { return "overtake" }

func (o *Overtake) Evaluate(snap telemetry.Snapshot, state session.State, mem *session.Memory, now time.Time) (announce.Request, bool) {
	if state != session.Live || snap.Lap < 2 || snap.Position <= 0 {
		return announce.Request{}, false
	}
	om := &mem.Overtake
	if !om.PositionInitialized {
		om.PreviousPosition = session.IntPtr(snap.Position)
		om.PositionInitialized = true
		return announce.Request{}, false
	}

	prev := om.PreviousPosition
	om.PreviousPosition = session.IntPtr(snap.Position)
	if prev == nil || *prev == snap.Position {
		return announce.Request{}, false
	}
	if !om.LastAnnouncedAt.IsZero() && now.Sub(om.LastAnnouncedAt) < o.cooldown {
		return announce.Request{}, false
	}
	om.LastAnnouncedAt = now

	req := announce.Request{Kind: announce.KindOvertake, Tag: TagOvertake, IssuedAt: now}
	change := "lost"
	if snap.Position < *prev {
		change = "gained"
		req.Text = fmt.Sprintf("Nice move. That's P%d.", snap.Position)
	} else {
		req.Text = fmt.Sprintf("Lost a place, P%d now. Heads down.", snap.Position)
	}
	req.Prompt = fmt.Sprintf(
		"The driver just %s a place (from P%d to P%d). In ten words or fewer, make a quick quip and mention the new place, like P%d.",
		change, *prev, snap.Position, snap.Position,
	)
	return req, true
}
