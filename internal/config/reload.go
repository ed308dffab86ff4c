// SPDX-License-Identifier: MIT

package config

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fsnotify/fsnotify"

	"github.com/parleyhq/parley/internal/log"
)

// WatchLogLevel re-applies the log level when the config file changes or the
// process receives SIGHUP. It returns once ctx is cancelled. Only the log
// level is hot-reloaded; every other setting requires a restart.
func WatchLogLevel(ctx context.Context, path, version string) {
	logger := log.WithComponent("config")

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	var events chan fsnotify.Event
	if path != "" {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			logger.Warn().Err(err).Msg("config watcher unavailable, SIGHUP reload only")
		} else {
			defer watcher.Close()
			// Watch the directory: editors replace files instead of writing in place.
			if err := watcher.Add(filepath.Dir(path)); err != nil {
				logger.Warn().Err(err).Str("path", path).Msg("cannot watch config file")
			} else {
				events = watcher.Events
			}
		}
	}

	apply := func(reason string) {
		cfg, err := Load(path, version)
		if err != nil {
			logger.Error().Err(err).Str("reason", reason).Msg("config reload failed, keeping current settings")
			return
		}
		if log.SetLevel(cfg.LogLevel) {
			logger.Info().
				Str("reason", reason).
				Str("level", cfg.LogLevel).
				Msg("log level reloaded")
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			apply("sighup")
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if filepath.Clean(ev.Name) != filepath.Clean(path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			apply("file change")
		}
	}
}
