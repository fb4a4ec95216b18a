// Package watcher reloads runtime-adjustable configuration when the config
// file changes on disk.
package watcher

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Service watches the configuration file and invokes a reload callback when
// it changes. Editors and configuration management tools often replace the
// file rather than write it in place, so the parent directory is watched and
// events are debounced.
type Service struct {
	path     string
	reload   func(ctx context.Context)
	logger   *slog.Logger
	debounce time.Duration
}

// NewService creates a config file watcher.
func NewService(path string, reload func(ctx context.Context), logger *slog.Logger) *Service {
	return &Service{
		path:     path,
		reload:   reload,
		logger:   logger.With(slog.String("component", "config-watcher")),
		debounce: 1 * time.Second,
	}
}

// SetDebounce overrides the default debounce interval (for testing).
func (s *Service) SetDebounce(d time.Duration) {
	s.debounce = d
}

// Start blocks until ctx is canceled. If fsnotify is unavailable the service
// logs a warning and returns; config changes then require a restart.
func (s *Service) Start(ctx context.Context) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		s.logger.Warn("fsnotify unavailable, config changes require restart", "error", err)
		return
	}
	defer w.Close() //nolint:errcheck

	dir := filepath.Dir(s.path)
	if err := w.Add(dir); err != nil {
		s.logger.Warn("watching config directory failed", "dir", dir, "error", err)
		return
	}

	s.logger.Info("config watcher starting", slog.String("path", s.path))

	// Starts stopped; reset on each relevant event.
	debounceTimer := time.NewTimer(0)
	if !debounceTimer.Stop() {
		<-debounceTimer.C
	}
	reloadPending := false

	base := filepath.Base(s.path)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("config watcher stopping")
			return

		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != base {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if !reloadPending {
				reloadPending = true
			} else if !debounceTimer.Stop() {
				<-debounceTimer.C
			}
			debounceTimer.Reset(s.debounce)

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			s.logger.Warn("config watch error", "error", err)

		case <-debounceTimer.C:
			reloadPending = false
			s.logger.Info("config file changed, reloading")
			s.reload(ctx)
		}
	}
}
