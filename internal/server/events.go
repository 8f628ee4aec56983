package server

import (
	"time"

	"github.com/sjawhar/pit-radio/internal/storage"
)

const EventVersion = 1

type Event struct {
	Type      string `json:"type"`
	Version   int    `json:"version"`
	Timestamp string `json:"timestamp"`
}

type StateChangedEvent struct {
	Event
	State    string `json:"state"`
	Previous string `json:"previous"`
}

type RaceStartedEvent struct {
	Event
	RaceID string `json:"race_id"`
}

type RaceFinishedEvent struct {
	Event
	RaceID   string  `json:"race_id"`
	Status   string  `json:"status"`
	Duration float64 `json:"duration"`
}

type AnnouncementEvent struct {
	Event
	Announcement storage.Announcement `json:"announcement"`
}

type DriverHeardEvent struct {
	Event
	Text string `json:"text"`
}

type DebriefReadyEvent struct {
	Event
	RaceID  string `json:"race_id"`
	Debrief string `json:"debrief"`
	Status  string `json:"status"`
}

type RadioChangedEvent struct {
	Event
	Muted bool `json:"muted"`
}

// ConnectionEvent greets a new socket with the radio's current status so a
// reconnecting UI needs no extra round trip.
type ConnectionEvent struct {
	Event
	Status
	Connected bool `json:"connected"`
}

func newEvent(eventType string, now time.Time) Event {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	return Event{
		Type:      eventType,
		Version:   EventVersion,
		Timestamp: now.UTC().Format(time.RFC3339Nano),
	}
}
