package manifest

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

var logger = slog.Default().With("component", "manifest")

// SetLogger replaces the package logger.
func SetLogger(l *slog.Logger) {
	logger = l.With("component", "manifest")
}

// DefaultDebounce groups the burst of events an editor produces on save.
const DefaultDebounce = 100 * time.Millisecond

// Watcher reloads a manifest file whenever it changes on disk and hands
// each result to a callback.
//
// The file's directory is watched rather than the file itself, so saves
// that replace the file by rename are seen too.
type Watcher struct {
	path     string
	debounce time.Duration
	onChange func(*Manifest, error)
	fsw      *fsnotify.Watcher
}

// NewWatcher starts watching path. onChange runs on the watcher's
// goroutine, once per debounced burst of changes.
func NewWatcher(path string, debounce time.Duration, onChange func(*Manifest, error)) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{path: abs, debounce: debounce, onChange: onChange, fsw: fsw}, nil
}

// Run processes events until ctx is done or Close is called.
func (w *Watcher) Run(ctx context.Context) error {
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path || !relevant(ev.Op) {
				continue
			}
			logger.Debug("manifest changed", "path", w.path, "op", ev.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("manifest watcher error", "path", w.path, "error", err)

		case <-fire:
			fire = nil
			m, err := LoadFile(w.path)
			if err != nil {
				logger.Error("manifest reload failed", "path", w.path, "error", err)
			} else {
				logger.Info("manifest reloaded", "path", w.path, "routes", len(m.Routes))
			}
			w.onChange(m, err)
		}
	}
}

// Close stops watching. Run returns shortly after.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func relevant(op fsnotify.Op) bool {
	return op.Has(fsnotify.Write) || op.Has(fsnotify.Create) || op.Has(fsnotify.Rename)
}
