package telemetry

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// replayRecord is one line of a recorded session in the camelCase layout
// used by telemetry bridges. Absent fields keep the "not reported" sentinels.
type replayRecord struct {
	Position      *int    `json:"position"`
	CurrentLap    *int    `json:"currentLap"`
	TotalLaps     int     `json:"totalLaps"`
	TotalCars     *int    `json:"totalCars"`
	SpeedKph      float64 `json:"speedKph"`
	EngineRPM     float64 `json:"engineRpm"`
	FuelCapacity  float64 `json:"fuelCapacity"`
	FuelLevel     float64 `json:"fuelLevel"`
	LastLapTimeMs *int    `json:"lastLapTimeMs"`
	BestLapTimeMs *int    `json:"bestLapTimeMs"`
	TireTempFL    float64 `json:"tireTempFL"`
	TireTempFR    float64 `json:"tireTempFR"`
	TireTempRL    float64 `json:"tireTempRL"`
	TireTempRR    float64 `json:"tireTempRR"`
	OilPressure   float64 `json:"oilPressure"`
	WaterTemp     float64 `json:"waterTemp"`
	OilTemp       float64 `json:"oilTemp"`
	OnTrack       *bool   `json:"onTrack"`
	Paused        bool    `json:"paused"`
	Loading       bool    `json:"loading"`
}

func (r replayRecord) snapshot(id int, at time.Time) Snapshot {
	s := Snapshot{
		PacketID:     int32(id),
		ReceivedAt:   at,
		Lap:          UnknownLap,
		TotalLaps:    r.TotalLaps,
		OnTrack:      true,
		Paused:       r.Paused,
		Loading:      r.Loading,
		FuelLevel:    r.FuelLevel,
		FuelCapacity: r.FuelCapacity,
		SpeedMPS:     r.SpeedKph / 3.6,
		EngineRPM:    r.EngineRPM,
		TireTempFL:   r.TireTempFL,
		TireTempFR:   r.TireTempFR,
		TireTempRL:   r.TireTempRL,
		TireTempRR:   r.TireTempRR,
		OilPressure:  r.OilPressure,
		WaterTemp:    r.WaterTemp,
		OilTemp:      r.OilTemp,
		LastLapMs:    NoLapTime,
		BestLapMs:    NoLapTime,
	}
	if r.CurrentLap != nil {
		s.Lap = *r.CurrentLap
	}
	if r.Position != nil {
		s.Position = *r.Position
	}
	if r.TotalCars != nil {
		s.TotalCars = *r.TotalCars
	}
	if r.LastLapTimeMs != nil {
		s.LastLapMs = *r.LastLapTimeMs
	}
	if r.BestLapTimeMs != nil {
		s.BestLapMs = *r.BestLapTimeMs
	}
	if r.OnTrack != nil {
		s.OnTrack = *r.OnTrack
	}
	return s
}

// Replay plays back a recorded session, one JSON object per line, advancing
// one line per interval of wall time. A line containing null stands for a
// gap in the stream.
type Replay struct {
	frames   []*Snapshot
	interval time.Duration
	now      func() time.Time

	once  sync.Once
	start time.Time
}

func OpenReplay(path string, interval time.Duration) (*Replay, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open replay: %w", err)
	}
	defer f.Close()
	return NewReplay(f, interval)
}

func NewReplay(r io.Reader, interval time.Duration) (*Replay, error) {
	if interval <= 0 {
		interval = time.Second
	}

	var frames []*Snapshot
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 || raw[0] == '#' {
			continue
		}
		if bytes.Equal(raw, []byte("null")) {
			frames = append(frames, nil)
			continue
		}

		var rec replayRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("parse replay line %d: %w", line, err)
		}
		s := rec.snapshot(len(frames), time.Time{})
		frames = append(frames, &s)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read replay: %w", err)
	}

	return &Replay{frames: frames, interval: interval, now: time.Now}, nil
}

// Len reports the number of frames, gaps included.
func (r *Replay) Len() int {
	return len(r.frames)
}

// Frame returns frame i as a Source would report it.
func (r *Replay) Frame(i int) (Snapshot, bool) {
	if i < 0 || i >= len(r.frames) || r.frames[i] == nil {
		return Snapshot{}, false
	}
	s := *r.frames[i]
	s.ReceivedAt = r.now()
	return s, true
}

// Latest starts the clock on first use. Once the recording is exhausted the
// stream reports no data.
func (r *Replay) Latest() (Snapshot, bool) {
	r.once.Do(func() { r.start = r.now() })
	idx := int(r.now().Sub(r.start) / r.interval)
	return r.Frame(idx)
}
