package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/sjawhar/pit-radio/internal/storage"
)

var raceIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

type RaceStore interface {
	GetRacesByDate(date string) ([]storage.Race, error)
	GetRace(id string) (storage.Race, error)
	GetAnnouncements(raceID string) ([]storage.Announcement, error)
	GetDates() ([]string, error)
}

func registerAPIRoutes(mux *http.ServeMux, store RaceStore, controls ControlHooks) {
	mux.HandleFunc("GET /api/sessions", func(w http.ResponseWriter, r *http.Request) {
		date := r.URL.Query().Get("date")
		if date == "" {
			date = time.Now().UTC().Format("2006-01-02")
		}

		races, err := store.GetRacesByDate(date)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("list races: %v", err))
			return
		}
		if races == nil {
			races = []storage.Race{}
		}
		writeJSON(w, http.StatusOK, races)
	})

	mux.HandleFunc("GET /api/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		raceID := r.PathValue("id")
		if !validRaceID(raceID) {
			writeJSONError(w, http.StatusForbidden, "invalid race id")
			return
		}

		race, err := store.GetRace(raceID)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, storage.ErrNoRace) {
				status = http.StatusNotFound
			}
			writeJSONError(w, status, fmt.Sprintf("get race: %v", err))
			return
		}

		calls, err := store.GetAnnouncements(raceID)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("get race announcements: %v", err))
			return
		}
		if calls == nil {
			calls = []storage.Announcement{}
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"race":          race,
			"announcements": calls,
		})
	})

	mux.HandleFunc("GET /api/sessions/{id}/audio", func(w http.ResponseWriter, r *http.Request) {
		raceID := r.PathValue("id")
		if !validRaceID(raceID) {
			writeJSONError(w, http.StatusForbidden, "invalid race id")
			return
		}

		race, err := store.GetRace(raceID)
		if err != nil {
			writeJSONError(w, http.StatusNotFound, "race not found")
			return
		}
		if race.AudioPath == "" {
			writeJSONError(w, http.StatusNotFound, "audio not available")
			return
		}

		cleanPath := filepath.Clean(race.AudioPath)
		if filepath.IsAbs(cleanPath) || cleanPath == "." || strings.Contains(cleanPath, "..") {
			writeJSONError(w, http.StatusForbidden, "invalid audio path")
			return
		}

		f, err := os.Open(cleanPath)
		if err != nil {
			writeJSONError(w, http.StatusNotFound, "audio file not found")
			return
		}
		defer func() { _ = f.Close() }()

		info, err := f.Stat()
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("stat audio: %v", err))
			return
		}

		w.Header().Set("Accept-Ranges", "bytes")
		w.Header().Set("Content-Type", contentTypeForAudio(cleanPath))
		http.ServeContent(w, r, filepath.Base(cleanPath), info.ModTime(), f)
	})

	mux.HandleFunc("POST /api/sessions/{id}/debrief", func(w http.ResponseWriter, r *http.Request) {
		raceID := r.PathValue("id")
		if !validRaceID(raceID) {
			writeJSONError(w, http.StatusForbidden, "invalid race id")
			return
		}
		if controls.Redebrief == nil {
			writeJSONError(w, http.StatusServiceUnavailable, "debrief not configured")
			return
		}
		if err := controls.Redebrief(context.WithoutCancel(r.Context()), raceID); err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, storage.ErrNoRace) {
				status = http.StatusNotFound
			}
			writeJSONError(w, status, fmt.Sprintf("debrief: %v", err))
			return
		}
		w.WriteHeader(http.StatusAccepted)
	})

	mux.HandleFunc("GET /api/dates", func(w http.ResponseWriter, r *http.Request) {
		dates, err := store.GetDates()
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("get dates: %v", err))
			return
		}
		if dates == nil {
			dates = []string{}
		}
		writeJSON(w, http.StatusOK, dates)
	})

	mux.HandleFunc("POST /api/mute", func(w http.ResponseWriter, r *http.Request) {
		if controls.Mute != nil {
			controls.Mute()
		}
		if controls.OnMuteChanged != nil {
			controls.OnMuteChanged(true)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("POST /api/unmute", func(w http.ResponseWriter, r *http.Request) {
		if controls.Unmute != nil {
			controls.Unmute()
		}
		if controls.OnMuteChanged != nil {
			controls.OnMuteChanged(false)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /api/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, controls.status())
	})
}

func validRaceID(id string) bool {
	return raceIDPattern.MatchString(id)
}

func contentTypeForAudio(path string) string {
	switch filepath.Ext(path) {
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	default:
		return "application/octet-stream"
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
