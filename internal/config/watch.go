package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounce collapses the bursts of write events editors and atomic renames
// produce into one reload.
const debounce = 250 * time.Millisecond

// Watch reloads c from path whenever the file changes, until ctx is
// cancelled. The parent directory is watched so atomic replace (write temp,
// rename over) is caught too.
func Watch(ctx context.Context, c *Config, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		var timer *time.Timer
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != filepath.Clean(path) {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(debounce, func() { reload(c, path) })
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("config.watch_error", "error", err)
			}
		}
	}()

	slog.Info("config.watching", "path", path)
	return nil
}

func reload(c *Config, path string) {
	fresh, err := Load(path)
	if err != nil {
		slog.Warn("config.reload_failed", "path", path, "error", err)
		return
	}
	c.ReplaceFrom(fresh)
	slog.Info("config.reloaded", "path", path)
}
