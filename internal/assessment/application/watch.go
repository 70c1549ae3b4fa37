package application

import (
	"context"

	"github.com/fsnotify/fsnotify"
)

// WatchConfig reloads the config file on change and passes every valid
// snapshot to onChange. Invalid reloads are logged and skipped. It runs
// until ctx is cancelled.
func WatchConfig(ctx context.Context, path string, logger Logger, onChange func(Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return err
	}
	logf(logger, "assessment config watch: path=%s", path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// editors often save via rename, which shows up as create
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			cfg, err := LoadConfig(path)
			if err != nil {
				logf(logger, "assessment config reload failed, keeping previous: path=%s err=%v", path, err)
				continue
			}
			logf(logger, "assessment config reloaded: path=%s", path)
			onChange(cfg)
			_ = watcher.Add(path)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logf(logger, "assessment config watcher error: %v", err)
		}
	}
}

func logf(logger Logger, format string, args ...any) {
	if logger != nil {
		logger.Printf(format, args...)
	}
}
