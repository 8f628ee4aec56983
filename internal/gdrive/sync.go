// Package gdrive mirrors the daily radio log into a Google Drive folder as
// a Google Doc per day.
package gdrive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

const DefaultInterval = 5 * time.Minute

// uploader is the slice of the Drive files API the syncer needs.
type uploader interface {
	create(name, folderID string, media io.Reader) (string, error)
	update(fileID string, media io.Reader) error
}

type Syncer struct {
	files    uploader
	folderID string
	logger   *slog.Logger

	mu      sync.Mutex
	fileIDs map[string]string
	synced  map[string]time.Time
}

func NewSyncer(ctx context.Context, credPath, folderID string) (*Syncer, error) {
	creds, err := os.ReadFile(credPath)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}

	config, err := google.CredentialsFromJSONWithTypeAndParams(ctx, creds, google.ServiceAccount, google.CredentialsParams{Scopes: []string{drive.DriveFileScope}})
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}

	svc, err := drive.NewService(ctx, option.WithCredentials(config))
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}

	return newSyncer(driveFiles{svc: svc}, folderID), nil
}

func newSyncer(files uploader, folderID string) *Syncer {
	return &Syncer{
		files:    files,
		folderID: folderID,
		logger:   slog.Default().With("component", "gdrive"),
		fileIDs:  make(map[string]string),
		synced:   make(map[string]time.Time),
	}
}

// DocName is the Drive document holding the radio log for date.
func DocName(date string) string {
	return "pit-radio-log-" + date
}

// Sync uploads the log at localPath as the document for date. A missing
// file or one unchanged since the last upload is skipped.
func (s *Syncer) Sync(localPath, date string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := os.Stat(localPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat %s: %w", localPath, err)
	}
	if last, ok := s.synced[date]; ok && !info.ModTime().After(last) {
		return nil
	}

	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer func() { _ = f.Close() }()

	if fileID, ok := s.fileIDs[date]; ok {
		if err := s.files.update(fileID, f); err != nil {
			return fmt.Errorf("drive update: %w", err)
		}
	} else {
		fileID, err := s.files.create(DocName(date), s.folderID, f)
		if err != nil {
			return fmt.Errorf("drive create: %w", err)
		}
		s.fileIDs[date] = fileID
	}

	s.synced[date] = info.ModTime()
	return nil
}

// Run syncs the current day's log every interval until ctx is done, with
// one last pass on the way out.
func (s *Syncer) Run(ctx context.Context, interval time.Duration, pathFor func(time.Time) string) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	syncNow := func() {
		now := time.Now()
		if err := s.Sync(pathFor(now), now.Format("2006-01-02")); err != nil {
			s.logger.Warn("sync radio log", "err", err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			syncNow()
			return
		case <-ticker.C:
			syncNow()
		}
	}
}

type driveFiles struct {
	svc *drive.Service
}

func (d driveFiles) create(name, folderID string, media io.Reader) (string, error) {
	doc, err := d.svc.Files.Create(&drive.File{
		Name:     name,
		MimeType: "application/vnd.google-apps.document",
		Parents:  []string{folderID},
	}).Media(media).Do()
	if err != nil {
		return "", err
	}
	return doc.Id, nil
}

func (d driveFiles) update(fileID string, media io.Reader) error {
	_, err := d.svc.Files.Update(fileID, &drive.File{}).Media(media).Do()
	return err
}
