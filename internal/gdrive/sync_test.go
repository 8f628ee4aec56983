package gdrive

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type fakeFiles struct {
	created map[string]string
	updated []string
	bodies  []string
	err     error
}

func (f *fakeFiles) create(name, folderID string, media io.Reader) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	body, _ := io.ReadAll(media)
	f.bodies = append(f.bodies, string(body))
	id := "file-" + name
	f.created[name] = folderID
	return id, nil
}

func (f *fakeFiles) update(fileID string, media io.Reader) error {
	body, _ := io.ReadAll(media)
	f.bodies = append(f.bodies, string(body))
	f.updated = append(f.updated, fileID)
	return nil
}

func TestSyncCreatesThenUpdates(t *testing.T) {
	files := &fakeFiles{created: map[string]string{}}
	s := newSyncer(files, "folder-1")
	path := filepath.Join(t.TempDir(), "2026-05-01.md")

	if err := os.WriteFile(path, []byte("**[14:00:00] Engineer:** Radio check.\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	if err := s.Sync(path, "2026-05-01"); err != nil {
		t.Fatalf("first sync: %v", err)
	}
	if files.created["pit-radio-log-2026-05-01"] != "folder-1" {
		t.Fatalf("expected doc created in folder, got %v", files.created)
	}

	if err := s.Sync(path, "2026-05-01"); err != nil {
		t.Fatalf("unchanged sync: %v", err)
	}
	if len(files.bodies) != 1 {
		t.Fatalf("expected unchanged log skipped, got %d uploads", len(files.bodies))
	}

	later := time.Now().Add(time.Minute)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	if err := s.Sync(path, "2026-05-01"); err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if len(files.updated) != 1 || files.updated[0] != "file-pit-radio-log-2026-05-01" {
		t.Fatalf("expected update of existing doc, got %v", files.updated)
	}
}

func TestSyncSkipsMissingLog(t *testing.T) {
	files := &fakeFiles{created: map[string]string{}}
	s := newSyncer(files, "folder-1")
	if err := s.Sync(filepath.Join(t.TempDir(), "none.md"), "2026-05-01"); err != nil {
		t.Fatalf("expected missing log ignored, got %v", err)
	}
	if len(files.created) != 0 {
		t.Fatalf("expected no upload")
	}
}

func TestSyncWrapsDriveErrors(t *testing.T) {
	files := &fakeFiles{created: map[string]string{}, err: errors.New("quota")}
	s := newSyncer(files, "folder-1")
	path := filepath.Join(t.TempDir(), "log.md")
	_ = os.WriteFile(path, []byte("x"), 0o644)

	err := s.Sync(path, "2026-05-01")
	if err == nil || !errors.Is(err, files.err) {
		t.Fatalf("expected wrapped drive error, got %v", err)
	}
	files.err = nil
	if err := s.Sync(path, "2026-05-01"); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
}

func TestRunSyncsOnShutdown(t *testing.T) {
	files := &fakeFiles{created: map[string]string{}}
	s := newSyncer(files, "folder-1")
	path := filepath.Join(t.TempDir(), "today.md")
	_ = os.WriteFile(path, []byte("x"), 0o644)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.Run(ctx, time.Hour, func(time.Time) string { return path })

	if len(files.created) != 1 {
		t.Fatalf("expected final sync, got %v", files.created)
	}
}
