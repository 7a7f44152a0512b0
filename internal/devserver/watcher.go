package devserver

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher reports changes to fragment files in a directory. Bursts of events
// from a single save are collapsed into one callback after a quiet period.
type Watcher struct {
	watcher  *fsnotify.Watcher
	logger   zerolog.Logger
	debounce time.Duration
	onChange func(path string)

	mu    sync.Mutex
	timer *time.Timer
	done  chan struct{}
	stop  sync.Once
}

// NewWatcher watches dir and calls onChange with the last changed path.
func NewWatcher(logger zerolog.Logger, dir string, debounce time.Duration, onChange func(string)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// the directory is watched rather than each file to catch editors that
	// save by renaming
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, err
	}
	logger.Debug().Str("path", dir).Msg("Watching fragment directory")

	w := &Watcher{
		watcher:  fw,
		logger:   logger,
		debounce: debounce,
		onChange: onChange,
		done:     make(chan struct{}),
	}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !isFragmentFile(event.Name) || event.Op == fsnotify.Chmod {
				continue
			}
			w.logger.Debug().Str("file", event.Name).Str("op", event.Op.String()).Msg("Fragment changed")
			w.schedule(event.Name)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("Fragment watcher error")
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case <-w.done:
		default:
			w.onChange(path)
		}
	})
}

// Stop stops watching. Pending callbacks are dropped.
func (w *Watcher) Stop() error {
	var err error
	w.stop.Do(func() {
		close(w.done)

		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()

		err = w.watcher.Close()
	})
	return err
}

func isFragmentFile(name string) bool {
	switch filepath.Ext(name) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
