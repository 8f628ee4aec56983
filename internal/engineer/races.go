package engineer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/ksuid"

	"github.com/sjawhar/pit-radio/internal/announce"
	"github.com/sjawhar/pit-radio/internal/audio"
	"github.com/sjawhar/pit-radio/internal/storage"
	"github.com/sjawhar/pit-radio/internal/telemetry"
)

// Races journals each race: the race row, every radio call, the driver's
// words, a recording of the channel and the post-race debrief. Every
// collaborator except the store is optional.
type Races struct {
	store     Store
	recorder  Recorder
	debriefer Debriefer
	hub       EventBroadcaster
	radioLog  RadioLog
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string

	mu        sync.Mutex
	current   string
	startedAt time.Time
	progress  storage.Progress

	debriefs sync.WaitGroup
}

func NewRaces(store Store, recorder Recorder, debriefer Debriefer, hub EventBroadcaster, radioLog RadioLog, logger *slog.Logger) *Races {
	if logger == nil {
		logger = slog.Default()
	}
	return &Races{
		store:     store,
		recorder:  recorder,
		debriefer: debriefer,
		hub:       hub,
		radioLog:  radioLog,
		logger:    logger.With("component", "races"),
		now:       time.Now,
		newID:     func() string { return ksuid.New().String() },
	}
}

// Current returns the race being journaled, or "".
func (r *Races) Current() (id string, startedAt time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current, r.startedAt
}

// Begin opens a new race. A race still open is closed as abandoned first.
func (r *Races) Begin(ctx context.Context) (string, error) {
	if err := r.Finish(ctx, storage.RaceAbandoned); err != nil && !errors.Is(err, ErrNoActiveRace) {
		r.logger.Warn("close previous race", "err", err)
	}

	id := r.newID()
	startedAt := r.now().UTC()
	if err := r.store.CreateRace(id, startedAt); err != nil {
		return "", fmt.Errorf("create race: %w", err)
	}

	if r.recorder != nil {
		if err := r.recorder.StartSession(id); err != nil {
			_ = r.store.EndRace(id, r.now().UTC(), storage.RaceAbandoned, "")
			return "", fmt.Errorf("start race recording: %w", err)
		}
	}

	r.mu.Lock()
	r.current = id
	r.startedAt = startedAt
	r.progress = storage.Progress{}
	r.mu.Unlock()

	r.logger.Info("race started", "race", id)
	if r.hub != nil {
		r.hub.BroadcastRaceStarted(id)
	}
	return id, nil
}

// Progress stores the current standing when it changed.
func (r *Races) Progress(snap telemetry.Snapshot) {
	p := storage.Progress{Lap: snap.Lap, TotalLaps: snap.TotalLaps, Position: snap.Position, BestLapMs: snap.BestLapMs}

	r.mu.Lock()
	id := r.current
	if id == "" || p == r.progress {
		r.mu.Unlock()
		return
	}
	r.progress = p
	r.mu.Unlock()

	if err := r.store.UpdateRaceProgress(id, p); err != nil {
		r.logger.Warn("update race progress", "race", id, "err", err)
	}
}

// Finish closes the current race with status. Finished races get a debrief
// in the background.
func (r *Races) Finish(ctx context.Context, status string) error {
	r.mu.Lock()
	id := r.current
	startedAt := r.startedAt
	r.current = ""
	r.startedAt = time.Time{}
	r.mu.Unlock()
	if id == "" {
		return ErrNoActiveRace
	}

	endedAt := r.now().UTC()
	audioPath := ""
	if r.recorder != nil {
		path, err := r.recorder.EndSession()
		if err != nil {
			r.logger.Warn("end race recording", "race", id, "err", err)
		}
		audioPath = path
	}

	if err := r.store.EndRace(id, endedAt, status, audioPath); err != nil {
		return fmt.Errorf("end race: %w", err)
	}

	r.logger.Info("race ended", "race", id, "status", status, "duration", endedAt.Sub(startedAt))
	if r.hub != nil {
		r.hub.BroadcastRaceFinished(id, status, endedAt.Sub(startedAt))
	}

	if status == storage.RaceFinished {
		r.debriefs.Add(1)
		go func() {
			defer r.debriefs.Done()
			r.debrief(context.WithoutCancel(ctx), id)
		}()
	}
	return nil
}

// Redebrief regenerates the debrief of a stored race in the background.
func (r *Races) Redebrief(ctx context.Context, raceID string) error {
	if _, err := r.store.GetRace(raceID); err != nil {
		return fmt.Errorf("get race %s: %w", raceID, err)
	}
	r.debriefs.Add(1)
	go func() {
		defer r.debriefs.Done()
		r.debrief(context.WithoutCancel(ctx), raceID)
	}()
	return nil
}

// Wait blocks until background debriefs are done.
func (r *Races) Wait() {
	r.debriefs.Wait()
}

// Record implements announce.Journal.
func (r *Races) Record(_ context.Context, o announce.Outcome) {
	id, _ := r.Current()

	a := storage.Announcement{
		RaceID:     id,
		Kind:       string(o.Request.Kind),
		Tag:        o.Request.Tag,
		Text:       o.Text,
		Status:     string(o.Status),
		Attempts:   o.Attempts,
		ClipPath:   o.ClipPath,
		DurationMs: o.Duration.Milliseconds(),
		CreatedAt:  o.At,
	}
	if o.Err != nil {
		a.Error = o.Err.Error()
	}

	if id != "" {
		annID, err := r.store.AppendAnnouncement(a)
		if err != nil {
			r.logger.Warn("journal announcement", "race", id, "tag", a.Tag, "err", err)
		}
		a.ID = annID
	}
	if r.hub != nil {
		r.hub.BroadcastAnnouncement(a)
	}

	if o.Status != announce.StatusPlayed && o.Status != announce.StatusCut {
		return
	}
	r.appendLog(storage.LogEntry{At: o.At, Speaker: "Engineer", Tag: o.Request.Tag, Text: o.Text})
	r.appendAudio(o.Clip)
}

// Heard records what the driver said on the radio.
func (r *Races) Heard(text string, clip audio.Buffer) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if r.hub != nil {
		r.hub.BroadcastDriverHeard(text)
	}
	r.appendLog(storage.LogEntry{At: r.now(), Speaker: "Driver", Text: text})
	r.appendAudio(clip)
}

func (r *Races) appendLog(e storage.LogEntry) {
	if r.radioLog == nil {
		return
	}
	if err := r.radioLog.Append(e); err != nil {
		r.logger.Warn("append radio log", "err", err)
	}
}

func (r *Races) appendAudio(clip audio.Buffer) {
	if r.recorder == nil || clip.Len() == 0 {
		return
	}
	if id, _ := r.Current(); id == "" {
		return
	}
	if err := r.recorder.Append(clip); err != nil {
		r.logger.Debug("append race audio", "err", err)
	}
}

func (r *Races) debrief(ctx context.Context, raceID string) {
	if r.debriefer == nil {
		_ = r.store.UpdateDebrief(raceID, "", storage.DebriefCompleted)
		return
	}

	_ = r.store.UpdateDebrief(raceID, "", storage.DebriefRunning)

	race, err := r.store.GetRace(raceID)
	if err != nil {
		r.debriefFailed(raceID, err)
		return
	}
	calls, err := r.store.GetAnnouncements(raceID)
	if err != nil {
		r.debriefFailed(raceID, err)
		return
	}

	var b strings.Builder
	for _, call := range calls {
		if call.Status != string(announce.StatusPlayed) && call.Status != string(announce.StatusCut) {
			continue
		}
		if strings.TrimSpace(call.Text) == "" {
			continue
		}
		fmt.Fprintf(&b, "[%s] %s: %s\n", call.CreatedAt.Format("15:04:05"), call.Tag, call.Text)
	}

	text, err := r.debriefer.Debrief(ctx, race, b.String())
	if err != nil {
		r.debriefFailed(raceID, err)
		return
	}

	if err := r.store.UpdateDebrief(raceID, text, storage.DebriefCompleted); err != nil {
		r.debriefFailed(raceID, err)
		return
	}

	r.logger.Info("debrief ready", "race", raceID)
	r.appendLog(storage.LogEntry{At: r.now(), Speaker: "Debrief", Text: text})
	if r.hub != nil {
		r.hub.BroadcastDebriefReady(raceID, text, storage.DebriefCompleted)
	}
}

func (r *Races) debriefFailed(raceID string, err error) {
	r.logger.Warn("debrief failed", "race", raceID, "err", err)
	_ = r.store.UpdateDebrief(raceID, "", storage.DebriefFailed)
	if r.hub != nil {
		r.hub.BroadcastDebriefReady(raceID, "", storage.DebriefFailed)
	}
}
