// Package watch monitors a data directory for new export CSV files and
// triggers an import once the directory settles.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/mastoflow/mastoflow/pkg/family"
)

// Watcher debounces filesystem events on recognizable export files. A
// burst of writes (one collection run dropping a dozen files) results in
// a single OnBatch call after the debounce window.
type Watcher struct {
	watcher  *fsnotify.Watcher
	dir      string
	debounce time.Duration
	log      *logrus.Entry

	// OnBatch runs after the directory settles. Its error is logged,
	// not fatal: the next batch gets another chance.
	OnBatch func(ctx context.Context) error

	mu    sync.Mutex
	timer *time.Timer
	fire  chan struct{}
}

// New creates a watcher over one data directory.
func New(dir string) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fsWatcher.Add(dir); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	return &Watcher{
		watcher:  fsWatcher,
		dir:      dir,
		debounce: 2 * time.Second,
		log:      logrus.WithField("component", "watch"),
		fire:     make(chan struct{}, 1),
	}, nil
}

// SetDebounce overrides the settle window.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

// Run blocks until ctx is cancelled, invoking OnBatch after each settled
// burst of export file events.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if !isExportFile(filepath.Base(event.Name)) {
				continue
			}
			w.log.WithField("file", filepath.Base(event.Name)).Debug("export file event")
			w.resetTimer()

		case <-w.fire:
			if w.OnBatch == nil {
				continue
			}
			if err := w.OnBatch(ctx); err != nil {
				w.log.WithError(err).Error("batch import failed")
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.WithError(err).Warn("watch error")
		}
	}
}

func (w *Watcher) resetTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case w.fire <- struct{}{}:
		default:
		}
	})
}

// isExportFile reports whether the name matches a known family pattern.
func isExportFile(name string) bool {
	if !strings.HasSuffix(name, ".csv") {
		return false
	}
	for _, fam := range family.All() {
		if strings.HasPrefix(name, fam.Name+"_") {
			return true
		}
	}
	return false
}
