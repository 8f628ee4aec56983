package engineer

import (
	"context"
	"time"

	"github.com/sjawhar/pit-radio/internal/announce"
	"github.com/sjawhar/pit-radio/internal/audio"
	"github.com/sjawhar/pit-radio/internal/storage"
	"github.com/sjawhar/pit-radio/internal/telemetry"
)

type Announcer interface {
	Announce(ctx context.Context, req announce.Request) error
}

type Composer interface {
	Compose(ctx context.Context, req announce.Request, snap telemetry.Snapshot, ok bool) (string, error)
}

type Store interface {
	CreateRace(id string, startedAt time.Time) error
	UpdateRaceProgress(id string, p storage.Progress) error
	EndRace(id string, endedAt time.Time, status, audioPath string) error
	GetRace(id string) (storage.Race, error)
	AppendAnnouncement(a storage.Announcement) (string, error)
	GetAnnouncements(raceID string) ([]storage.Announcement, error)
	UpdateDebrief(raceID, debrief, status string) error
}

type Recorder interface {
	StartSession(raceID string) error
	Append(b audio.Buffer) error
	EndSession() (string, error)
}

type Debriefer interface {
	Debrief(ctx context.Context, race storage.Race, transcript string) (string, error)
}

type RadioLog interface {
	Append(e storage.LogEntry) error
}

type EventBroadcaster interface {
	BroadcastStateChanged(state, previous string)
	BroadcastRaceStarted(raceID string)
	BroadcastRaceFinished(raceID, status string, duration time.Duration)
	BroadcastAnnouncement(a storage.Announcement)
	BroadcastDriverHeard(text string)
	BroadcastDebriefReady(raceID, debrief, status string)
}
