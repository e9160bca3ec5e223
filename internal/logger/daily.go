package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const dayLayout = "2006-01-02"

// FileName returns the log file name for the given day.
func FileName(app, env string, day time.Time) string {
	return fmt.Sprintf("%s-%s-%s.log", app, env, day.Format(dayLayout))
}

// DailyWriter is a zapcore.WriteSyncer that switches to a new file at midnight and
// removes files older than the retention window.
type DailyWriter struct {
	mu        sync.Mutex
	dir       string
	app       string
	env       string
	retention time.Duration
	now       func() time.Time

	day  string
	file *os.File
}

// NewDailyWriter opens today's file in dir, creating dir if needed.
func NewDailyWriter(dir, app, env string, retention time.Duration) (*DailyWriter, error) {
	return newDailyWriter(dir, app, env, retention, time.Now)
}

func newDailyWriter(dir, app, env string, retention time.Duration, now func() time.Time) (*DailyWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	w := &DailyWriter{dir: dir, app: app, env: env, retention: retention, now: now}
	if err := w.rotate(now()); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *DailyWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	if now.Format(dayLayout) != w.day {
		if err := w.rotate(now); err != nil {
			return 0, err
		}
	}
	return w.file.Write(p)
}

func (w *DailyWriter) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	return w.file.Sync()
}

func (w *DailyWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

// rotate must be called with mu held.
func (w *DailyWriter) rotate(now time.Time) error {
	if w.file != nil {
		_ = w.file.Close()
	}
	path := filepath.Join(w.dir, FileName(w.app, w.env, now))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	w.file = f
	w.day = now.Format(dayLayout)
	w.prune(now)
	return nil
}

func (w *DailyWriter) prune(now time.Time) {
	if w.retention <= 0 {
		return
	}
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return
	}
	prefix := fmt.Sprintf("%s-%s-", w.app, w.env)
	cutoff := now.Add(-w.retention)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".log") {
			continue
		}
		day, err := time.ParseInLocation(dayLayout, strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".log"), now.Location())
		if err != nil {
			continue
		}
		if day.AddDate(0, 0, 1).Before(cutoff) {
			_ = os.Remove(filepath.Join(w.dir, name))
		}
	}
}
