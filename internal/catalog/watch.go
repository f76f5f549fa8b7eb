package catalog

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Skotchmaster/nolmart/internal/logging"
)

const watchDebounce = 200 * time.Millisecond

// Watch reloads c whenever the file at path is written or created. It
// watches the parent directory so editors that replace the file are picked up. Watch blocks
// until ctx is done.
func Watch(ctx context.Context, path string, c *Cache) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", abs, err)
	}

	log := logging.FromContext(ctx).With("path", abs)
	log.Info("watching catalog document")

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs || !event.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
			} else {
				timer.Reset(watchDebounce)
			}
			fire = timer.C
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("catalog watcher error", "error", err)
		case <-fire:
			fire = nil
			if _, err := c.Reload(ctx); err != nil {
				log.Warn("catalog reload failed", "error", err)
				continue
			}
			log.Info("catalog reloaded from file change")
		}
	}
}
