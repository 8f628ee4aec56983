package server

import (
	"context"
	"io/fs"
	"net/http"
	"path"
	"strings"
)

// ControlHooks connect the API to the running radio. Every hook is
// optional.
type ControlHooks struct {
	Mute          func()
	Unmute        func()
	IsMuted       func() bool
	OnMuteChanged func(muted bool)
	State         func() string
	CurrentRace   func() string
	Warnings      func() []string
	Redebrief     func(ctx context.Context, raceID string) error
}

// Status is what the UI shows in its header.
type Status struct {
	State    string   `json:"state"`
	Muted    bool     `json:"muted"`
	RaceID   string   `json:"race_id"`
	Warnings []string `json:"warnings"`
}

func (c ControlHooks) status() Status {
	s := Status{State: "not_racing", Warnings: []string{}}
	if c.State != nil {
		s.State = c.State()
	}
	if c.IsMuted != nil {
		s.Muted = c.IsMuted()
	}
	if c.CurrentRace != nil {
		s.RaceID = c.CurrentRace()
	}
	if c.Warnings != nil {
		if got := c.Warnings(); got != nil {
			s.Warnings = got
		}
	}
	return s
}

func Handler(staticFS fs.FS, hub *Hub, store RaceStore, controls ControlHooks) (http.Handler, error) {
	mux := http.NewServeMux()

	registerWSRoute(mux, hub, controls)
	registerAPIRoutes(mux, store, controls)

	fileServer := http.FileServer(http.FS(staticFS))
	mux.HandleFunc("/", serveSPA(fileServer))

	return mux, nil
}

func serveSPA(fileServer http.Handler) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") || r.URL.Path == "/ws" {
			http.NotFound(w, r)
			return
		}

		// Client-side routes have no extension and get the index page.
		cleanPath := path.Clean(strings.TrimPrefix(r.URL.Path, "/"))
		if cleanPath == "." || !strings.Contains(cleanPath, ".") {
			r.URL.Path = "/"
		} else {
			r.URL.Path = "/" + cleanPath
		}

		fileServer.ServeHTTP(w, r)
	}
}
