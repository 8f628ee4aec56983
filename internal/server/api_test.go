package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sjawhar/pit-radio/internal/storage"
)

type apiStoreStub struct {
	racesByDate   map[string][]storage.Race
	races         map[string]storage.Race
	announcements map[string][]storage.Announcement
	dates         []string
}

func (s apiStoreStub) GetRacesByDate(date string) ([]storage.Race, error) {
	return s.racesByDate[date], nil
}

func (s apiStoreStub) GetRace(id string) (storage.Race, error) {
	if race, ok := s.races[id]; ok {
		return race, nil
	}
	return storage.Race{}, storage.ErrNoRace
}

func (s apiStoreStub) GetAnnouncements(raceID string) ([]storage.Announcement, error) {
	return s.announcements[raceID], nil
}

func (s apiStoreStub) GetDates() ([]string, error) {
	return s.dates, nil
}

func testStaticFS(t *testing.T) fs.FS {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>ok</html>"), 0o644); err != nil {
		t.Fatalf("write index.html failed: %v", err)
	}
	return os.DirFS(dir)
}

func serve(t *testing.T, store RaceStore, controls ControlHooks, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	h, err := Handler(testStaticFS(t), NewHub(), store, controls)
	if err != nil {
		t.Fatalf("Handler failed: %v", err)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(method, target, nil))
	return rr
}

func TestAPIRacesByDate(t *testing.T) {
	started := time.Date(2026, 5, 1, 14, 0, 0, 0, time.UTC)
	store := apiStoreStub{
		racesByDate: map[string][]storage.Race{
			"2026-05-01": {{ID: "r1", StartedAt: started, Status: storage.RaceFinished, DebriefStatus: storage.DebriefCompleted}},
		},
	}

	rr := serve(t, store, ControlHooks{}, http.MethodGet, "/api/sessions?date=2026-05-01")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if got := rr.Header().Get("Content-Type"); !strings.Contains(got, "application/json") {
		t.Fatalf("expected application/json content-type, got %q", got)
	}
	var races []storage.Race
	if err := json.Unmarshal(rr.Body.Bytes(), &races); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(races) != 1 || races[0].ID != "r1" {
		t.Fatalf("unexpected races %+v", races)
	}

	rr = serve(t, store, ControlHooks{}, http.MethodGet, "/api/sessions?date=2026-05-02")
	if strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Fatalf("expected empty list, got %s", rr.Body.String())
	}
}

func TestAPIRaceDetail(t *testing.T) {
	started := time.Date(2026, 5, 1, 14, 0, 0, 0, time.UTC)
	store := apiStoreStub{
		races: map[string]storage.Race{
			"r1": {ID: "r1", StartedAt: started, Debrief: "tidy race"},
		},
		announcements: map[string][]storage.Announcement{
			"r1": {{ID: "a1", RaceID: "r1", Tag: "lap_update", Text: "Lap 2 of 5.", Status: "played", CreatedAt: started}},
		},
	}

	rr := serve(t, store, ControlHooks{}, http.MethodGet, "/api/sessions/r1")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var body struct {
		Race          storage.Race           `json:"race"`
		Announcements []storage.Announcement `json:"announcements"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Race.Debrief != "tidy race" || len(body.Announcements) != 1 || body.Announcements[0].Tag != "lap_update" {
		t.Fatalf("unexpected detail %+v", body)
	}
}

func TestAPIRaceDetailNotFound(t *testing.T) {
	rr := serve(t, apiStoreStub{}, ControlHooks{}, http.MethodGet, "/api/sessions/missing")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestAPIInvalidRaceID(t *testing.T) {
	rr := serve(t, apiStoreStub{}, ControlHooks{}, http.MethodGet, "/api/sessions/bad%20id")
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", rr.Code)
	}
}

func TestAPIAudioRange(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "race.mp3"), []byte(strings.Repeat("a", 4096)), 0o644); err != nil {
		t.Fatalf("write audio file failed: %v", err)
	}
	oldWd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd failed: %v", err)
	}
	if err := os.Chdir(root); err != nil {
		t.Fatalf("chdir failed: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(oldWd) })

	store := apiStoreStub{races: map[string]storage.Race{"r1": {ID: "r1", AudioPath: "race.mp3"}}}
	h, err := Handler(testStaticFS(t), NewHub(), store, ControlHooks{})
	if err != nil {
		t.Fatalf("Handler failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/r1/audio", nil)
	req.Header.Set("Range", "bytes=0-99")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusPartialContent {
		t.Fatalf("expected status 206, got %d", rr.Code)
	}
	if got := rr.Header().Get("Content-Type"); got != "audio/mpeg" {
		t.Fatalf("expected audio/mpeg, got %q", got)
	}
	body, _ := io.ReadAll(rr.Body)
	if len(body) != 100 {
		t.Fatalf("expected 100 bytes, got %d", len(body))
	}
}

func TestAPIAudioRejectsUnsafePaths(t *testing.T) {
	for _, p := range []string{"../secret.mp3", "/etc/passwd"} {
		store := apiStoreStub{races: map[string]storage.Race{"r1": {ID: "r1", AudioPath: p}}}
		rr := serve(t, store, ControlHooks{}, http.MethodGet, "/api/sessions/r1/audio")
		if rr.Code != http.StatusForbidden {
			t.Fatalf("%s: expected status 403, got %d", p, rr.Code)
		}
	}
}

func TestAPIDates(t *testing.T) {
	rr := serve(t, apiStoreStub{dates: []string{"2026-05-01", "2026-04-30"}}, ControlHooks{}, http.MethodGet, "/api/dates")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "2026-04-30") {
		t.Fatalf("expected dates in body, got %s", rr.Body.String())
	}
}

func TestAPIMuteAndUnmute(t *testing.T) {
	muted := false
	var changes []bool
	controls := ControlHooks{
		Mute:          func() { muted = true },
		Unmute:        func() { muted = false },
		IsMuted:       func() bool { return muted },
		OnMuteChanged: func(m bool) { changes = append(changes, m) },
	}

	if rr := serve(t, apiStoreStub{}, controls, http.MethodPost, "/api/mute"); rr.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rr.Code)
	}
	if !muted {
		t.Fatal("expected radio muted")
	}
	rr := serve(t, apiStoreStub{}, controls, http.MethodGet, "/api/status")
	if !strings.Contains(rr.Body.String(), `"muted":true`) {
		t.Fatalf("expected muted status, got %s", rr.Body.String())
	}

	serve(t, apiStoreStub{}, controls, http.MethodPost, "/api/unmute")
	if muted || len(changes) != 2 || changes[0] != true || changes[1] != false {
		t.Fatalf("unexpected mute changes %v (muted=%v)", changes, muted)
	}
}

func TestAPIStatus(t *testing.T) {
	controls := ControlHooks{
		State:       func() string { return "live" },
		CurrentRace: func() string { return "r1" },
		Warnings:    func() []string { return []string{"speech-to-text disabled"} },
	}
	rr := serve(t, apiStoreStub{}, controls, http.MethodGet, "/api/status")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var body struct {
		State    string   `json:"state"`
		Muted    bool     `json:"muted"`
		RaceID   string   `json:"race_id"`
		Warnings []string `json:"warnings"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.State != "live" || body.RaceID != "r1" || body.Muted || len(body.Warnings) != 1 {
		t.Fatalf("unexpected status %+v", body)
	}
}

func TestAPIStatusDefaults(t *testing.T) {
	rr := serve(t, apiStoreStub{}, ControlHooks{}, http.MethodGet, "/api/status")
	body := rr.Body.String()
	if !strings.Contains(body, `"warnings":[]`) || !strings.Contains(body, `"state":"not_racing"`) {
		t.Fatalf("unexpected default status %s", body)
	}
}

func TestAPIRedebrief(t *testing.T) {
	called := make(chan string, 1)
	controls := ControlHooks{
		Redebrief: func(_ context.Context, raceID string) error {
			if raceID == "missing" {
				return storage.ErrNoRace
			}
			called <- raceID
			return nil
		},
	}

	rr := serve(t, apiStoreStub{}, controls, http.MethodPost, "/api/sessions/r1/debrief")
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d", rr.Code)
	}
	if got := <-called; got != "r1" {
		t.Fatalf("expected r1, got %q", got)
	}

	rr = serve(t, apiStoreStub{}, controls, http.MethodPost, "/api/sessions/missing/debrief")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestAPIRedebriefNotConfigured(t *testing.T) {
	rr := serve(t, apiStoreStub{}, ControlHooks{}, http.MethodPost, "/api/sessions/r1/debrief")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
}

func TestAPIRedebriefFailure(t *testing.T) {
	controls := ControlHooks{
		Redebrief: func(context.Context, string) error { return errors.New("store closed") },
	}
	rr := serve(t, apiStoreStub{}, controls, http.MethodPost, "/api/sessions/r1/debrief")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rr.Code)
	}
}

func TestSPAFallback(t *testing.T) {
	rr := serve(t, apiStoreStub{}, ControlHooks{}, http.MethodGet, "/races/r1")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "ok") {
		t.Fatalf("expected index.html, got %d %s", rr.Code, rr.Body.String())
	}
	rr = serve(t, apiStoreStub{}, ControlHooks{}, http.MethodGet, "/api/unknown")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown API path, got %d", rr.Code)
	}
}
