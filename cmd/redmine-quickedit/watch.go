package main

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// watchPage signals on the returned channel whenever path is written or
// replaced. The directory is watched so editors that save by rename are
// seen too.
func watchPage(path string, logger *slog.Logger) (<-chan struct{}, func() error, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, nil, fmt.Errorf("resolving page path: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, fmt.Errorf("creating page watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, nil, fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}

	changes := make(chan struct{}, 1)
	go func() {
		defer close(changes)
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs {
					continue
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
					logger.Debug("page changed", "path", event.Name, "op", event.Op.String())
					select {
					case changes <- struct{}{}:
					default:
					}
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("page watcher", "err", err)
			}
		}
	}()
	return changes, watcher.Close, nil
}
