package detect

import (
	"fmt"
	"time"

	"github.com/sjawhar/pit-radio/internal/announce"
	"github.com/sjawhar/pit-radio/internal/session"
	"github.com/sjawhar/pit-radio/internal/telemetry"
)

// Lap announces each new lap from lap two onward, the finish once the
// leader passes the last lap, and personal best laps.
type Lap struct{}

func (Lap) Name() string { return "lap" }

func (Lap) Evaluate(snap telemetry.Snapshot, state session.State, mem *session.Memory, now time.Time) (announce.Request, bool) {
	if state != session.Live || !snap.LapKnown() {
		return announce.Request{}, false
	}
	lm := &mem.Lap
	if lm.PreviousLap != nil && *lm.PreviousLap == snap.Lap {
		return announce.Request{}, false
	}
	lm.PreviousLap = session.IntPtr(snap.Lap)
	// Lap 0 is the grid and lap 1 the opening lap; both stay quiet.
	if snap.Lap <= 1 {
		return announce.Request{}, false
	}

	req := announce.Request{Tag: TagLap, IssuedAt: now}
	if snap.TotalLaps != 0 && snap.Lap > snap.TotalLaps {
		req.Kind = announce.KindFinish
		req.Text = fmt.Sprintf("Chequered flag. You brought it home in P%d.", snap.Position)
		req.Prompt = fmt.Sprintf(
			"The race just finished. Congratulate the driver and tell them they finished P%d. One or two short sentences.",
			snap.Position,
		)
	} else {
		req.Kind = announce.KindLap
		if snap.TotalLaps > 0 {
			req.Text = fmt.Sprintf("Lap %d of %d.", snap.Lap, snap.TotalLaps)
			req.Prompt = fmt.Sprintf("We are on lap %d of %d. Give the driver a super-short update in one or two sentences.", snap.Lap, snap.TotalLaps)
		} else {
			req.Text = fmt.Sprintf("Lap %d.", snap.Lap)
			req.Prompt = fmt.Sprintf("We are on lap %d. Give the driver a super-short update in one or two sentences.", snap.Lap)
		}
	}

	if snap.BestLapMs != telemetry.NoLapTime && (lm.PreviousBestLapMs == nil || snap.BestLapMs < *lm.PreviousBestLapMs) {
		lm.PreviousBestLapMs = session.IntPtr(snap.BestLapMs)
		best := telemetry.FormatLapTime(snap.BestLapMs)
		req.Text += " New best lap, " + best + "."
		req.Prompt += " Also tell the driver they just set a new personal best lap of " + best + "."
	}
	return req, true
}
