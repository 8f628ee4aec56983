package engineer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sjawhar/pit-radio/internal/announce"
	"github.com/sjawhar/pit-radio/internal/audio"
	"github.com/sjawhar/pit-radio/internal/storage"
	"github.com/sjawhar/pit-radio/internal/telemetry"
)

type raceFixture struct {
	store     *storeMock
	recorder  *recorderMock
	debriefer *debrieferMock
	hub       *hubMock
	log       *radioLogMock
	races     *Races
}

func newRaceFixture() *raceFixture {
	f := &raceFixture{
		store:     newStoreMock(),
		recorder:  &recorderMock{},
		debriefer: &debrieferMock{text: "Strong race, tidy up turn one."},
		hub:       &hubMock{},
		log:       &radioLogMock{},
	}
	f.races = NewRaces(f.store, f.recorder, f.debriefer, f.hub, f.log, nil)
	ids := []string{"race-1", "race-2", "race-3"}
	f.races.newID = func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}
	f.races.now = func() time.Time { return time.Date(2026, 5, 1, 14, 0, 0, 0, time.UTC) }
	return f
}

func played(tag, text string) announce.Outcome {
	return announce.Outcome{
		Request:  announce.Request{Kind: announce.KindLap, Tag: tag, Text: text},
		Text:     text,
		Status:   announce.StatusPlayed,
		Attempts: 1,
		Clip:     audio.Buffer{Samples: make([]float64, 160), SampleRate: 16000},
		At:       time.Date(2026, 5, 1, 14, 3, 0, 0, time.UTC),
		Duration: 10 * time.Millisecond,
	}
}

func TestRaceLifecycleWithDebrief(t *testing.T) {
	f := newRaceFixture()
	ctx := context.Background()

	id, err := f.races.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin returned error: %v", err)
	}
	if id != "race-1" || len(f.recorder.started) != 1 || len(f.hub.started) != 1 {
		t.Fatalf("expected race-1 started and recorded, got id=%q recorder=%v hub=%v", id, f.recorder.started, f.hub.started)
	}

	snap := live(2, 5, 3, 60)
	f.races.Progress(snap)
	f.races.Progress(snap)
	if len(f.store.progress) != 1 {
		t.Fatalf("expected unchanged progress written once, got %d", len(f.store.progress))
	}

	f.races.Record(ctx, played("lap_update", "Lap 2 of 5."))
	f.races.Record(ctx, announce.Outcome{
		Request: announce.Request{Tag: "fuel_50"},
		Text:    "Fuel is down to 49 percent.",
		Status:  announce.StatusDropped,
		Err:     errors.New("synthesis failed"),
	})
	f.races.Heard("  what's the gap?  ", audio.Buffer{Samples: make([]float64, 80), SampleRate: 16000})

	calls, _ := f.store.GetAnnouncements(id)
	if len(calls) != 2 || calls[1].Error != "synthesis failed" {
		t.Fatalf("expected both outcomes stored, got %+v", calls)
	}
	if len(f.hub.announcements) != 2 || f.hub.announcements[0].ID != "a1" {
		t.Fatalf("expected stored announcements broadcast with ids, got %+v", f.hub.announcements)
	}
	if len(f.log.entries) != 2 || f.log.entries[0].Speaker != "Engineer" || f.log.entries[1].Text != "what's the gap?" {
		t.Fatalf("unexpected radio log %+v", f.log.entries)
	}
	if f.recorder.samples != 240 {
		t.Fatalf("expected played and heard audio recorded, got %d samples", f.recorder.samples)
	}

	if err := f.races.Finish(ctx, storage.RaceFinished); err != nil {
		t.Fatalf("Finish returned error: %v", err)
	}
	f.races.Wait()

	race := f.store.race(id)
	if race.Status != storage.RaceFinished || race.EndedAt == nil || race.AudioPath == "" {
		t.Fatalf("expected finished race with audio, got %+v", race)
	}
	if race.DebriefStatus != storage.DebriefCompleted || race.Debrief != f.debriefer.text {
		t.Fatalf("expected completed debrief, got %q (%s)", race.Debrief, race.DebriefStatus)
	}
	if !strings.Contains(f.debriefer.transcript, "lap_update: Lap 2 of 5.") || strings.Contains(f.debriefer.transcript, "fuel_50") {
		t.Fatalf("expected only spoken calls in transcript, got %q", f.debriefer.transcript)
	}
	if len(f.hub.debriefs) != 1 || f.hub.debriefs[0] != "race-1:"+storage.DebriefCompleted {
		t.Fatalf("unexpected debrief broadcasts %v", f.hub.debriefs)
	}
	if id, _ := f.races.Current(); id != "" {
		t.Fatalf("expected no current race, got %q", id)
	}
}

func TestBeginAbandonsOpenRace(t *testing.T) {
	f := newRaceFixture()
	ctx := context.Background()

	first, _ := f.races.Begin(ctx)
	second, err := f.races.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin returned error: %v", err)
	}
	f.races.Wait()

	if got := f.store.race(first).Status; got != storage.RaceAbandoned {
		t.Fatalf("expected first race abandoned, got %q", got)
	}
	if got := f.store.race(second).Status; got != storage.RaceActive {
		t.Fatalf("expected second race active, got %q", got)
	}
	if len(f.store.debriefs) != 0 {
		t.Fatalf("expected no debrief for abandoned race, got %v", f.store.debriefs)
	}
}

func TestFinishWithoutRace(t *testing.T) {
	f := newRaceFixture()
	if err := f.races.Finish(context.Background(), storage.RaceFinished); !errors.Is(err, ErrNoActiveRace) {
		t.Fatalf("expected ErrNoActiveRace, got %v", err)
	}
}

func TestDebriefFailureIsRecorded(t *testing.T) {
	f := newRaceFixture()
	f.debriefer.err = errors.New("rate limited")
	ctx := context.Background()

	id, _ := f.races.Begin(ctx)
	if err := f.races.Finish(ctx, storage.RaceFinished); err != nil {
		t.Fatalf("Finish returned error: %v", err)
	}
	f.races.Wait()

	if got := f.store.race(id).DebriefStatus; got != storage.DebriefFailed {
		t.Fatalf("expected failed debrief, got %q", got)
	}
	if len(f.hub.debriefs) != 1 || f.hub.debriefs[0] != id+":"+storage.DebriefFailed {
		t.Fatalf("unexpected debrief broadcasts %v", f.hub.debriefs)
	}
}

func TestOutcomesOutsideARaceAreBroadcastOnly(t *testing.T) {
	f := newRaceFixture()
	f.races.Record(context.Background(), played("intro_start", "Radio check."))

	if len(f.store.announcements) != 0 {
		t.Fatalf("expected nothing stored without a race")
	}
	if len(f.hub.announcements) != 1 || f.recorder.samples != 0 {
		t.Fatalf("expected broadcast without recording, hub=%d samples=%d", len(f.hub.announcements), f.recorder.samples)
	}
}

func TestEngineerJournalsRace(t *testing.T) {
	f := newRaceFixture()
	announcer := &announcerMock{}
	e, _ := newTestEngineer(t, announcer, newTransportMock(), WithRaces(f.races), WithEvents(f.hub))
	ctx := context.Background()

	e.AdvanceTick(ctx, live(0, 3, 4, 90), true)
	e.AdvanceTick(ctx, live(2, 3, 3, 80), true)
	menu := live(4, 3, 2, 70)
	menu.OnTrack = false
	e.AdvanceTick(ctx, menu, true)
	menu.TotalCars = -1
	e.AdvanceTick(ctx, menu, true)
	f.races.Wait()

	race := f.store.race("race-1")
	if race.Status != storage.RaceFinished || race.DebriefStatus != storage.DebriefCompleted {
		t.Fatalf("expected finished race with debrief, got %+v", race)
	}
	want := []string{"live", "paused", "not_racing"}
	if len(f.hub.states) != len(want) {
		t.Fatalf("expected states %v, got %v", want, f.hub.states)
	}
	for i := range want {
		if f.hub.states[i] != want[i] {
			t.Fatalf("expected states %v, got %v", want, f.hub.states)
		}
	}
}

func TestCoolDownLapKeepsRaceUntilSentinel(t *testing.T) {
	f := newRaceFixture()
	announcer := &announcerMock{}
	e, _ := newTestEngineer(t, announcer, newTransportMock(), WithRaces(f.races), WithEvents(f.hub))
	ctx := context.Background()

	for _, lap := range []int{0, 2, 3, 4, 5} {
		e.AdvanceTick(ctx, live(lap, 5, 3, 90), true)
	}
	for i := 0; i < 12; i++ {
		e.AdvanceTick(ctx, live(6, 5, 3, 90), true)
	}
	sentinel := live(6, 5, 3, 90)
	sentinel.TotalCars = telemetry.NoCars
	e.AdvanceTick(ctx, sentinel, true)
	f.races.Wait()

	finishes := 0
	for _, req := range announcer.reqs {
		if req.Kind == announce.KindFinish {
			finishes++
		}
	}
	if finishes != 1 {
		t.Fatalf("expected one finish call, got %d (%v)", finishes, announcer.tags())
	}
	want := []string{"live", "paused", "not_racing"}
	if len(f.hub.states) != len(want) {
		t.Fatalf("expected states %v, got %v", want, f.hub.states)
	}
	for i := range want {
		if f.hub.states[i] != want[i] {
			t.Fatalf("expected states %v, got %v", want, f.hub.states)
		}
	}
	if len(f.store.races) != 1 {
		t.Fatalf("expected a single journaled race, got %d", len(f.store.races))
	}
	race := f.store.race("race-1")
	if race.Status != storage.RaceFinished || race.DebriefStatus != storage.DebriefCompleted {
		t.Fatalf("expected race-1 finished with debrief, got %+v", race)
	}
}

func TestShutdownAbandonsRace(t *testing.T) {
	f := newRaceFixture()
	e, _ := newTestEngineer(t, &announcerMock{}, newTransportMock(), WithRaces(f.races))

	e.AdvanceTick(context.Background(), live(0, 3, 4, 90), true)
	e.shutdown()
	f.races.Wait()

	if got := f.store.race("race-1").Status; got != storage.RaceAbandoned {
		t.Fatalf("expected abandoned race, got %q", got)
	}
}

func TestRedebrief(t *testing.T) {
	f := newRaceFixture()
	ctx := context.Background()

	if err := f.races.Redebrief(ctx, "missing"); !errors.Is(err, storage.ErrNoRace) {
		t.Fatalf("expected ErrNoRace, got %v", err)
	}

	id, _ := f.races.Begin(ctx)
	_ = f.races.Finish(ctx, storage.RaceAbandoned)
	f.debriefer.text = "Second look: brake later into the hairpin."
	if err := f.races.Redebrief(ctx, id); err != nil {
		t.Fatalf("Redebrief returned error: %v", err)
	}
	f.races.Wait()

	if got := f.store.race(id).Debrief; got != f.debriefer.text {
		t.Fatalf("expected regenerated debrief, got %q", got)
	}
}
