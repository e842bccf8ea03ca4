package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultWatchDebounce collapses the burst of events an editor save produces.
const DefaultWatchDebounce = 200 * time.Millisecond

// Watch reloads the configuration at path whenever the file changes and
// passes each successfully reloaded config to onReload. A reload that fails
// validation is logged and the previous configuration stays in effect.
//
// The parent directory is watched rather than the file, so editors that
// replace the file by rename are seen. Watch blocks until ctx is done.
func Watch(ctx context.Context, path string, debounce time.Duration, onReload func(*Config)) error {
	if path == "" {
		return fmt.Errorf("watch: no configuration file")
	}
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	logger := slog.Default().With("component", "config.watch", "path", abs)
	logger.InfoContext(ctx, "Configuration watcher started")

	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	reload := func() {
		cfg, err := ReloadConfig(abs)
		if err != nil {
			logger.Error("Configuration reload failed", "error", err)
			return
		}
		logger.Info("Configuration reloaded")
		onReload(cfg)
	}
	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Configuration watcher stopped")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}

			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, reload)
			mu.Unlock()

		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			logger.Error("Configuration watcher error", "error", err)
		}
	}
}
