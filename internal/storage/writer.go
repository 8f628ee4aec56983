package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LogEntry is one line of the human-readable radio log.
type LogEntry struct {
	At      time.Time
	Speaker string
	Tag     string
	Text    string
}

func (e LogEntry) FormatMarkdown() string {
	ts := e.At.Format("15:04:05")
	if e.Tag == "" {
		return fmt.Sprintf("**[%s] %s:** %s", ts, e.Speaker, strings.TrimSpace(e.Text))
	}
	return fmt.Sprintf("**[%s] %s (%s):** %s", ts, e.Speaker, e.Tag, strings.TrimSpace(e.Text))
}

// Writer appends the radio log to one markdown file per day.
type Writer struct {
	dir string
	mu  sync.Mutex
}

func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

func (w *Writer) Append(e LogEntry) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", w.dir, err)
	}

	path := w.PathFor(e.At)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	if _, err := fmt.Fprintln(f, e.FormatMarkdown()); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	return nil
}

// PathFor returns the log file holding entries from day t.
func (w *Writer) PathFor(t time.Time) string {
	return filepath.Join(w.dir, t.Format("2006-01-02")+".md")
}
