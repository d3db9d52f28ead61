package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// reloadDebounce coalesces bursts of filesystem events (editors often emit
// several writes per save) into a single reload.
const reloadDebounce = 500 * time.Millisecond

// Watcher watches a single file for changes and invokes a reload callback,
// debounced so a burst of writes triggers one reload.
type Watcher struct {
	logger   zerolog.Logger
	watcher  *fsnotify.Watcher
	path     string
	reloadFn func()

	mu    sync.Mutex
	timer *time.Timer
}

// WatchFile starts watching path and calls reloadFn (debounced) whenever it
// changes. The returned Watcher must be stopped with Stop.
func WatchFile(logger zerolog.Logger, path string, reloadFn func()) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(path)
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, err
	}

	w := &Watcher{
		logger:   logger,
		watcher:  fw,
		path:     filepath.Clean(path),
		reloadFn: reloadFn,
	}

	go w.processEvents()

	return w, nil
}

func (w *Watcher) processEvents() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.scheduleReload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn().Err(err).Str("path", w.path).Msg("config watcher error")
		}
	}
}

func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}

	w.timer = time.AfterFunc(reloadDebounce, func() {
		w.logger.Info().Str("path", w.path).Msg("reloading config file")
		w.reloadFn()
	})
}

// Stop stops watching and releases the underlying inotify/kqueue handle.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	return w.watcher.Close()
}
