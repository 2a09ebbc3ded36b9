package videoconfig

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"
	"github.com/zsiec/theater/internal/errors"
	"github.com/zsiec/theater/internal/logger"
	"github.com/zsiec/theater/internal/tick"
)

// Change is a config file event of the watched level folder.
type Change struct {
	Path    string
	Deleted bool
}

// Watcher follows the config file of one level folder at a time. Events
// arrive on the fsnotify goroutine and are handed to the tick loop through
// Changes.
type Watcher struct {
	loader  *Loader
	logger  logger.Logger
	fsw     *fsnotify.Watcher
	changes chan Change

	mu  sync.Mutex
	dir string
}

func NewWatcher(loader *Loader, l logger.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		loader:  loader,
		logger:  logger.WithComponent(l, "config_watcher"),
		fsw:     fsw,
		changes: make(chan Change, 16),
	}, nil
}

// Watch replaces the watched folder with levelDir. A path to a file
// watches its folder; a missing folder only drops the previous watch.
func (w *Watcher) Watch(levelDir string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.dir != "" {
		_ = w.fsw.Remove(w.dir)
		w.dir = ""
	}

	fs := w.loader.Fs()
	if ok, _ := afero.DirExists(fs, levelDir); !ok {
		if exists, _ := afero.Exists(fs, levelDir); !exists {
			w.logger.WithField("path", levelDir).Debug("Level directory does not exist")
			return nil
		}
		levelDir = filepath.Dir(levelDir)
	}

	if err := w.fsw.Add(levelDir); err != nil {
		return err
	}
	w.dir = levelDir
	w.logger.WithField("path", levelDir).Debug("Watching level directory")
	return nil
}

// Dir is the folder being watched, if any.
func (w *Watcher) Dir() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dir
}

func (w *Watcher) Changes() <-chan Change { return w.changes }

// Run forwards config file events until ctx is done or the watcher closes.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.WithError(err).Warn("Config watcher error")
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if !w.loader.IsConfigFile(ev.Name) {
		return
	}
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return
	}

	log := w.logger.WithFields(map[string]interface{}{"path": ev.Name, "op": ev.Op.String()})
	if w.loader.consumeIgnored(ev.Name) {
		log.Debug("Ignoring event after saving")
		return
	}
	log.Debug("Config change detected")

	change := Change{Path: ev.Name, Deleted: ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename)}
	select {
	case w.changes <- change:
	default:
		log.Warn("Config change dropped, queue full")
	}
}

func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// ReloadTask turns a change into a tick task. A deleted file yields nil.
// Otherwise the task waits up to timeout for the writer to release the
// file, then loads it; a file that cannot be loaded also yields nil.
func (l *Loader) ReloadTask(c Change, timeout time.Duration, push func(*VideoConfig)) tick.Task {
	if c.Deleted {
		return tick.Do(func() { push(nil) })
	}
	released := tick.WaitUntil(func() bool { return !l.FileLocked(c.Path) }, timeout, func(timedOut bool) {
		if timedOut {
			l.logger.WithField("path", c.Path).Warn("Config file still locked, reading anyway")
		}
	})
	return tick.Sequence(released, tick.Do(func() {
		vc, err := l.Load(c.Path)
		if err != nil {
			if !errors.IsType(err, errors.ErrorTypeConfigAbsent) {
				l.logger.WithError(err).WithField("path", c.Path).Error("Error parsing video config")
			}
			push(nil)
			return
		}
		push(vc)
	}))
}
