package configuration

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/yanizio/gate/internal/logger"
)

// Watcher turns route-file edits into ConditionalReload calls.  Editors
// write files in bursts, so events are debounced.  The directory is watched
// rather than the file so atomic rename-over saves are seen.
type Watcher struct {
	m     *Manager
	fsw   *fsnotify.Watcher
	files map[string]struct{}
	log   *zap.SugaredLogger

	debounce time.Duration
	stop     chan struct{}
	wg       sync.WaitGroup

	timerMu sync.Mutex
	pending *time.Timer
}

// NewWatcher watches files and reloads m when one of them changes.
func NewWatcher(m *Manager, files []string, debounce time.Duration, log *zap.SugaredLogger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		m:        m,
		fsw:      fsw,
		files:    map[string]struct{}{},
		log:      logger.OrGlobal(log),
		debounce: debounce,
		stop:     make(chan struct{}),
	}
	dirs := map[string]struct{}{}
	for _, f := range files {
		f = filepath.Clean(f)
		w.files[f] = struct{}{}
		dirs[filepath.Dir(f)] = struct{}{}
	}
	for d := range dirs {
		if err := fsw.Add(d); err != nil {
			// Directory might not exist yet.
			w.log.Warnw("cannot watch route directory", "dir", d, "err", err)
		}
	}
	return w, nil
}

// Start begins delivering events.
func (w *Watcher) Start() {
	w.wg.Add(1)
	go w.run()
}

// Stop ends the loop, cancels a pending reload, and closes the watcher.
func (w *Watcher) Stop() error {
	close(w.stop)
	w.wg.Wait()

	w.timerMu.Lock()
	if w.pending != nil {
		w.pending.Stop()
	}
	w.timerMu.Unlock()

	return w.fsw.Close()
}

func (w *Watcher) run() {
	defer w.wg.Done()
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warnw("route watcher error", "err", err)
		case <-w.stop:
			return
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if _, ok := w.files[filepath.Clean(ev.Name)]; !ok {
		return
	}
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) &&
		!ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return
	}
	w.log.Debugw("route file changed", "file", ev.Name, "op", ev.Op.String())

	w.timerMu.Lock()
	defer w.timerMu.Unlock()
	if w.pending != nil {
		w.pending.Stop()
	}
	w.pending = time.AfterFunc(w.debounce, w.reload)
}

func (w *Watcher) reload() {
	if err := w.m.ConditionalReload(); err != nil {
		w.log.Errorw("route reload failed", "err", err)
	}
}
