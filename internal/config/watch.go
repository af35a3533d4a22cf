package config

import (
	"context"

	"github.com/fsnotify/fsnotify"

	"github.com/silverbeer/match-scraper/internal/telemetry/logging"
)

// WatchFile watches path for changes and logs that new defaults will take
// effect on the next invocation (SPEC_FULL.md §A.3). A single short-lived
// CLI run never reconfigures itself mid-flight; this exists so a colocated
// daemon wrapper invoking this resolver repeatedly can react without a
// restart. It returns once ctx is cancelled.
func WatchFile(ctx context.Context, path string, log logging.Logger) error {
	if path == "" {
		<-ctx.Done()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				log.InfoCtx(ctx, "config file changed; new defaults apply on next run", "path", path)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.WarnCtx(ctx, "config watch error", "error", err.Error())
		}
	}
}
