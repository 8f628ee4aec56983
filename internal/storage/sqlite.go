package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const (
	DebriefPending   = "pending"
	DebriefRunning   = "running"
	DebriefCompleted = "completed"
	DebriefFailed    = "failed"
)

const (
	RaceActive   = "active"
	RaceFinished = "finished"
	// RaceAbandoned marks a race replaced by a new event or cut short by
	// shutdown.
	RaceAbandoned = "abandoned"
)

type Race struct {
	ID            string     `json:"id"`
	StartedAt     time.Time  `json:"started_at"`
	EndedAt       *time.Time `json:"ended_at,omitempty"`
	Status        string     `json:"status"`
	LapsCompleted int        `json:"laps_completed"`
	TotalLaps     int        `json:"total_laps"`
	Position      int        `json:"position"`
	BestLapMs     int        `json:"best_lap_ms"`
	AudioPath     string     `json:"audio_path"`
	Debrief       string     `json:"debrief"`
	DebriefStatus string     `json:"debrief_status"`
}

// Progress is the latest standing of a race in flight.
type Progress struct {
	Lap       int
	TotalLaps int
	Position  int
	BestLapMs int
}

type Announcement struct {
	ID         string    `json:"id"`
	RaceID     string    `json:"race_id"`
	Kind       string    `json:"kind"`
	Tag        string    `json:"tag"`
	Text       string    `json:"text"`
	Status     string    `json:"status"`
	Attempts   int       `json:"attempts"`
	Error      string    `json:"error,omitempty"`
	ClipPath   string    `json:"clip_path,omitempty"`
	DurationMs int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if strings.TrimSpace(dbPath) == "" {
		dbPath = filepath.Join("data", "pit-radio.db")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) init() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("apply pragma %q: %w", p, err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return migrate(ctx, s.db)
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

func (s *SQLiteStore) CreateRace(id string, startedAt time.Time) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("race id is required")
	}

	_, err := s.db.Exec(
		`INSERT INTO races(id, started_at, status, debrief_status) VALUES(?, ?, ?, ?)`,
		id,
		formatTime(startedAt),
		RaceActive,
		DebriefPending,
	)
	if err != nil {
		return fmt.Errorf("create race %s: %w", id, err)
	}
	return nil
}

// UpdateRaceProgress records the latest standing. The completed lap count
// only grows and the best lap only improves.
func (s *SQLiteStore) UpdateRaceProgress(id string, p Progress) error {
	res, err := s.db.Exec(
		`UPDATE races SET
			laps_completed = MAX(laps_completed, ?),
			total_laps = ?,
			position = ?,
			best_lap_ms = CASE
				WHEN ? >= 0 AND (best_lap_ms < 0 OR ? < best_lap_ms) THEN ?
				ELSE best_lap_ms
			END
		 WHERE id = ?`,
		max(p.Lap-1, 0),
		p.TotalLaps,
		p.Position,
		p.BestLapMs, p.BestLapMs, p.BestLapMs,
		id,
	)
	if err != nil {
		return fmt.Errorf("update race %s progress: %w", id, err)
	}
	return expectRow(res, id)
}

func (s *SQLiteStore) EndRace(id string, endedAt time.Time, status, audioPath string) error {
	res, err := s.db.Exec(
		`UPDATE races SET ended_at = ?, status = ?, audio_path = ? WHERE id = ?`,
		formatTime(endedAt),
		status,
		audioPath,
		id,
	)
	if err != nil {
		return fmt.Errorf("end race %s: %w", id, err)
	}
	return expectRow(res, id)
}

// AppendAnnouncement stores a radio call. An empty ID is filled in.
func (s *SQLiteStore) AppendAnnouncement(a Announcement) (string, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	_, err := s.db.Exec(
		`INSERT INTO announcements(id, race_id, kind, tag, text, status, attempts, error, clip_path, duration_ms, created_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID,
		a.RaceID,
		a.Kind,
		a.Tag,
		strings.TrimSpace(a.Text),
		a.Status,
		a.Attempts,
		a.Error,
		a.ClipPath,
		a.DurationMs,
		formatTime(a.CreatedAt),
	)
	if err != nil {
		return "", fmt.Errorf("append announcement for race %s: %w", a.RaceID, err)
	}
	return a.ID, nil
}

func (s *SQLiteStore) GetRacesByDate(date string) ([]Race, error) {
	rows, err := s.db.Query(
		`SELECT `+raceColumns+`
		 FROM races
		 WHERE substr(started_at, 1, 10) = ?
		 ORDER BY started_at DESC`,
		date,
	)
	if err != nil {
		return nil, fmt.Errorf("query races by date %s: %w", date, err)
	}
	defer func() { _ = rows.Close() }()

	races := make([]Race, 0, 8)
	for rows.Next() {
		race, err := scanRace(rows)
		if err != nil {
			return nil, err
		}
		races = append(races, race)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate race rows: %w", err)
	}
	return races, nil
}

func (s *SQLiteStore) GetDates() ([]string, error) {
	rows, err := s.db.Query(
		`SELECT DISTINCT substr(started_at, 1, 10) AS date FROM races ORDER BY date DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query dates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var dates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan date: %w", err)
		}
		dates = append(dates, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dates rows: %w", err)
	}

	return dates, nil
}

func (s *SQLiteStore) GetRace(id string) (Race, error) {
	row := s.db.QueryRow(`SELECT `+raceColumns+` FROM races WHERE id = ?`, id)
	race, err := scanRace(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Race{}, fmt.Errorf("query race %s: %w", id, ErrNoRace)
	}
	return race, err
}

func (s *SQLiteStore) GetAnnouncements(raceID string) ([]Announcement, error) {
	rows, err := s.db.Query(
		`SELECT id, race_id, kind, tag, text, status, attempts, error, clip_path, duration_ms, created_at
		 FROM announcements
		 WHERE race_id = ?
		 ORDER BY created_at ASC, rowid ASC`,
		raceID,
	)
	if err != nil {
		return nil, fmt.Errorf("query announcements for race %s: %w", raceID, err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]Announcement, 0, 32)
	for rows.Next() {
		var a Announcement
		var createdAt string
		if err := rows.Scan(&a.ID, &a.RaceID, &a.Kind, &a.Tag, &a.Text, &a.Status, &a.Attempts, &a.Error, &a.ClipPath, &a.DurationMs, &createdAt); err != nil {
			return nil, fmt.Errorf("scan announcement for race %s: %w", raceID, err)
		}
		if a.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("parse announcement timestamp for race %s: %w", raceID, err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate announcement rows for race %s: %w", raceID, err)
	}

	return out, nil
}

func (s *SQLiteStore) UpdateDebrief(raceID, debrief, status string) error {
	res, err := s.db.Exec(
		`UPDATE races SET debrief = ?, debrief_status = ? WHERE id = ?`,
		debrief,
		status,
		raceID,
	)
	if err != nil {
		return fmt.Errorf("update debrief for race %s: %w", raceID, err)
	}
	return expectRow(res, raceID)
}

// ClaimDebriefRequest reports whether this prompt has not been sent for
// the race before, recording it if so.
func (s *SQLiteStore) ClaimDebriefRequest(raceID, promptHash string) (bool, error) {
	res, err := s.db.Exec(
		`INSERT OR IGNORE INTO debrief_requests(race_id, prompt_hash) VALUES(?, ?)`,
		raceID,
		promptHash,
	)
	if err != nil {
		return false, fmt.Errorf("claim debrief request for race %s: %w", raceID, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim debrief rows affected: %w", err)
	}

	return rows > 0, nil
}

const raceColumns = `id, started_at, ended_at, status, laps_completed, total_laps, position, best_lap_ms, audio_path, debrief, debrief_status`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRace(row rowScanner) (Race, error) {
	var race Race
	var startedAt string
	var endedAt sql.NullString
	if err := row.Scan(
		&race.ID, &startedAt, &endedAt, &race.Status,
		&race.LapsCompleted, &race.TotalLaps, &race.Position, &race.BestLapMs,
		&race.AudioPath, &race.Debrief, &race.DebriefStatus,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Race{}, err
		}
		return Race{}, fmt.Errorf("scan race: %w", err)
	}

	parsedStart, err := time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return Race{}, fmt.Errorf("parse race %s started_at: %w", race.ID, err)
	}
	race.StartedAt = parsedStart

	if endedAt.Valid {
		parsedEnd, err := time.Parse(time.RFC3339Nano, endedAt.String)
		if err != nil {
			return Race{}, fmt.Errorf("parse race %s ended_at: %w", race.ID, err)
		}
		race.EndedAt = &parsedEnd
	}
	return race, nil
}

func expectRow(res sql.Result, id string) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for race %s: %w", id, err)
	}
	if rows == 0 {
		return fmt.Errorf("race %s: %w", id, ErrNoRace)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
