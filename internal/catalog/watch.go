package catalog

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jonboulle/clockwork"
)

const reloadOps = fsnotify.Write | fsnotify.Create | fsnotify.Rename

// Watch reloads the catalog when the file at path changes, until ctx is done.
// Bursts of events within delay cause a single reload. The parent directory
// is watched so that editors replacing the file are seen too.
func (c *Catalog) Watch(ctx context.Context, path string, delay time.Duration) error {
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
		return err
	}

	var (
		mu    sync.Mutex
		timer clockwork.Timer
	)
	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()

	schedule := func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = c.clock.AfterFunc(delay, func() {
			if ctx.Err() != nil {
				return
			}
			if err := c.Reload(ctx); err != nil {
				c.logger.Warn("catalog reload failed", "path", abs, "error", err)
			}
		})
	}

	c.logger.Info("watching listings file", "path", abs)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || !ev.Has(reloadOps) {
				continue
			}
			c.logger.Debug("listings file changed", "op", ev.Op.String())
			schedule()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			c.logger.Warn("listings watcher error", "error", err)
		}
	}
}
