package engineer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sjawhar/pit-radio/internal/announce"
	"github.com/sjawhar/pit-radio/internal/audio"
	"github.com/sjawhar/pit-radio/internal/storage"
	"github.com/sjawhar/pit-radio/internal/telemetry"
)

type announcerMock struct {
	mu   sync.Mutex
	reqs []announce.Request
	err  error
}

func (a *announcerMock) Announce(_ context.Context, req announce.Request) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reqs = append(a.reqs, req)
	return a.err
}

func (a *announcerMock) tags() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.reqs))
	for i, r := range a.reqs {
		out[i] = r.Tag
	}
	return out
}

type transportMock struct {
	mu        sync.Mutex
	connected bool
	playing   bool
	stops     int
	heard     audio.Buffer
	played    []audio.Buffer
	records   int
	onRecord  func()
}

func newTransportMock() *transportMock {
	return &transportMock{connected: true}
}

func (t *transportMock) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

func (t *transportMock) RecordFor(context.Context, time.Duration) (audio.Buffer, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records++
	if t.onRecord != nil {
		t.onRecord()
	}
	return t.heard, nil
}

func (t *transportMock) PlayAndWait(_ context.Context, clip audio.Buffer) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.played = append(t.played, clip)
	return nil
}

func (t *transportMock) IsPlaying() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.playing
}

func (t *transportMock) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stops++
	t.playing = false
	return nil
}

type sourceMock struct {
	mu   sync.Mutex
	snap telemetry.Snapshot
	ok   bool
}

func (s *sourceMock) Latest() (telemetry.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap, s.ok
}

func (s *sourceMock) set(snap telemetry.Snapshot, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = snap
	s.ok = ok
}

type listenerMock struct {
	texts []string
}

func (l *listenerMock) Transcribe(context.Context, audio.Buffer) (string, error) {
	if len(l.texts) == 0 {
		return "", nil
	}
	text := l.texts[0]
	l.texts = l.texts[1:]
	return text, nil
}

type composerMock struct {
	reply string
	err   error
	calls []announce.Request
	snaps []telemetry.Snapshot
}

func (c *composerMock) Compose(_ context.Context, req announce.Request, snap telemetry.Snapshot, _ bool) (string, error) {
	c.calls = append(c.calls, req)
	c.snaps = append(c.snaps, snap)
	return c.reply, c.err
}

type storeMock struct {
	mu            sync.Mutex
	races         map[string]storage.Race
	announcements map[string][]storage.Announcement
	progress      []storage.Progress
	debriefs      []string
	nextID        int
}

func newStoreMock() *storeMock {
	return &storeMock{
		races:         make(map[string]storage.Race),
		announcements: make(map[string][]storage.Announcement),
	}
}

func (s *storeMock) CreateRace(id string, startedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.races[id] = storage.Race{ID: id, StartedAt: startedAt, Status: storage.RaceActive, DebriefStatus: storage.DebriefPending}
	return nil
}

func (s *storeMock) UpdateRaceProgress(id string, p storage.Progress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = append(s.progress, p)
	race := s.races[id]
	race.Position = p.Position
	race.TotalLaps = p.TotalLaps
	s.races[id] = race
	return nil
}

func (s *storeMock) EndRace(id string, endedAt time.Time, status, audioPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	race, ok := s.races[id]
	if !ok {
		return storage.ErrNoRace
	}
	race.EndedAt = &endedAt
	race.Status = status
	race.AudioPath = audioPath
	s.races[id] = race
	return nil
}

func (s *storeMock) GetRace(id string) (storage.Race, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	race, ok := s.races[id]
	if !ok {
		return storage.Race{}, storage.ErrNoRace
	}
	return race, nil
}

func (s *storeMock) AppendAnnouncement(a storage.Announcement) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	a.ID = fmt.Sprintf("a%d", s.nextID)
	s.announcements[a.RaceID] = append(s.announcements[a.RaceID], a)
	return a.ID, nil
}

func (s *storeMock) GetAnnouncements(raceID string) ([]storage.Announcement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]storage.Announcement(nil), s.announcements[raceID]...), nil
}

func (s *storeMock) UpdateDebrief(raceID, debrief, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	race := s.races[raceID]
	race.Debrief = debrief
	race.DebriefStatus = status
	s.races[raceID] = race
	s.debriefs = append(s.debriefs, status)
	return nil
}

func (s *storeMock) race(id string) storage.Race {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.races[id]
}

type recorderMock struct {
	mu      sync.Mutex
	started []string
	samples int
	ended   int
}

func (r *recorderMock) StartSession(raceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, raceID)
	return nil
}

func (r *recorderMock) Append(b audio.Buffer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples += b.Len()
	return nil
}

func (r *recorderMock) EndSession() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ended++
	return "data/races/race.mp3", nil
}

type debrieferMock struct {
	text       string
	err        error
	transcript string
}

func (d *debrieferMock) Debrief(_ context.Context, _ storage.Race, transcript string) (string, error) {
	d.transcript = transcript
	return d.text, d.err
}

type radioLogMock struct {
	mu      sync.Mutex
	entries []storage.LogEntry
}

func (l *radioLogMock) Append(e storage.LogEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
	return nil
}

type hubMock struct {
	mu            sync.Mutex
	states        []string
	started       []string
	finished      []string
	announcements []storage.Announcement
	heard         []string
	debriefs      []string
}

func (h *hubMock) BroadcastStateChanged(state, _ string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.states = append(h.states, state)
}

func (h *hubMock) BroadcastRaceStarted(raceID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.started = append(h.started, raceID)
}

func (h *hubMock) BroadcastRaceFinished(raceID, status string, _ time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.finished = append(h.finished, raceID+":"+status)
}

func (h *hubMock) BroadcastAnnouncement(a storage.Announcement) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.announcements = append(h.announcements, a)
}

func (h *hubMock) BroadcastDriverHeard(text string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.heard = append(h.heard, text)
}

func (h *hubMock) BroadcastDebriefReady(raceID, _, status string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.debriefs = append(h.debriefs, raceID+":"+status)
}
