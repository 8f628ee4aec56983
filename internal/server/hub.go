package server

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/sjawhar/pit-radio/internal/storage"
)

// Hub fans radio events out to every connected UI. Slow subscribers miss
// events rather than block the engineer.
type Hub struct {
	mu      sync.RWMutex
	clients map[chan []byte]struct{}
	logger  *slog.Logger
	now     func() time.Time
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[chan []byte]struct{}),
		logger:  slog.Default().With("component", "hub"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (h *Hub) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) Unsubscribe(ch chan []byte) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
	close(ch)
}

func (h *Hub) Broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.clients {
		select {
		case ch <- msg:
		default:
		}
	}
}

func (h *Hub) BroadcastStateChanged(state, previous string) {
	h.broadcastEvent(StateChangedEvent{
		Event:    newEvent("state_changed", h.now()),
		State:    state,
		Previous: previous,
	})
}

func (h *Hub) BroadcastRaceStarted(raceID string) {
	h.broadcastEvent(RaceStartedEvent{
		Event:  newEvent("race_started", h.now()),
		RaceID: raceID,
	})
}

func (h *Hub) BroadcastRaceFinished(raceID, status string, duration time.Duration) {
	h.broadcastEvent(RaceFinishedEvent{
		Event:    newEvent("race_finished", h.now()),
		RaceID:   raceID,
		Status:   status,
		Duration: duration.Seconds(),
	})
}

func (h *Hub) BroadcastAnnouncement(a storage.Announcement) {
	h.broadcastEvent(AnnouncementEvent{
		Event:        newEvent("announcement", a.CreatedAt),
		Announcement: a,
	})
}

func (h *Hub) BroadcastDriverHeard(text string) {
	h.broadcastEvent(DriverHeardEvent{
		Event: newEvent("driver_heard", h.now()),
		Text:  text,
	})
}

func (h *Hub) BroadcastDebriefReady(raceID, debrief, status string) {
	h.broadcastEvent(DebriefReadyEvent{
		Event:   newEvent("debrief_ready", h.now()),
		RaceID:  raceID,
		Debrief: debrief,
		Status:  status,
	})
}

func (h *Hub) BroadcastRadioChanged(muted bool) {
	h.broadcastEvent(RadioChangedEvent{
		Event: newEvent("radio_changed", h.now()),
		Muted: muted,
	})
}

func (h *Hub) broadcastEvent(event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("marshal event", "err", err)
		return
	}
	h.Broadcast(payload)
}
