package config

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the tuning file at path whenever it changes and passes the
// result to onChange. It runs until ctx is cancelled. A file that fails to
// load is logged and skipped, leaving the previous tuning in effect.
//
// The parent directory is watched rather than the file so that editors which
// save by rename are still picked up.
func Watch(ctx context.Context, path string, onChange func(*TuningConfig)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	cleanPath := filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(cleanPath)); err != nil {
		return err
	}
	slog.Info("config: watching for changes", "path", cleanPath)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != cleanPath {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			cfg, err := LoadTuningConfig(cleanPath)
			if err != nil {
				slog.Error("config: reload failed, keeping previous tuning", "path", cleanPath, "err", err)
				continue
			}
			slog.Info("config: reloaded", "path", cleanPath)
			onChange(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("config: watcher error", "err", err)
		}
	}
}
