package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounce window for editors that write config files in several
// operations.
const watchDebounce = 200 * time.Millisecond

// Watch reloads the config file whenever it changes and hands every
// valid new version to onChange. Invalid versions are logged and
// skipped; the previous config stays in effect. Watching stops when
// ctx is cancelled.
func Watch(ctx context.Context, path string, logger *slog.Logger, onChange func(*Config)) error {
	if path == "" {
		path = DefaultPath()
	}
	if logger == nil {
		logger = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	// Watch the directory: most editors replace the file on save, and
	// a watch on the file itself would be dropped with the old inode.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch config dir: %w", err)
	}

	go func() {
		defer func() { _ = watcher.Close() }()

		var timer *time.Timer
		var timerC <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(path) {
					continue
				}
				if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) {
					continue
				}
				if timer == nil {
					timer = time.NewTimer(watchDebounce)
					timerC = timer.C
				} else {
					// A fired-but-unconsumed tick would slip through
					// the reset and cause a premature reload.
					if !timer.Stop() {
						<-timer.C
					}
					timer.Reset(watchDebounce)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("config watcher error", "error", err)
			case <-timerC:
				timer = nil
				timerC = nil
				cfg, err := Load(path)
				if err != nil {
					logger.Warn("ignoring invalid config change", "path", path, "error", err)
					continue
				}
				logger.Info("config reloaded", "path", path)
				onChange(cfg)
			}
		}
	}()

	return nil
}
