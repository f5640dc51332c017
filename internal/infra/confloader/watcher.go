package confloader

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher reports writes to one configuration file.
type Watcher struct {
	path     string
	fs       *fsnotify.Watcher
	logger   *slog.Logger
	onChange func(path string)

	// kick holds at most one pending notification; events that arrive
	// while a callback runs fold into the next call.
	kick      chan struct{}
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

// Watch calls onChange, one call at a time, whenever path is written or
// created. The directory is watched so editors that replace the file by
// rename are still seen; the file itself need not exist yet.
func Watch(path string, onChange func(path string), logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("confloader: create watcher: %w", err)
	}
	path = filepath.Clean(path)
	if err := fs.Add(filepath.Dir(path)); err != nil {
		fs.Close()
		return nil, fmt.Errorf("confloader: watch %s: %w", path, err)
	}

	w := &Watcher{
		path:     path,
		fs:       fs,
		logger:   logger,
		onChange: onChange,
		kick:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	w.wg.Add(2)
	go w.events()
	go w.notify()
	logger.Debug("watching configuration file", "path", path)
	return w, nil
}

func (w *Watcher) events() {
	defer w.wg.Done()
	for {
		select {
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				continue
			}
			select {
			case w.kick <- struct{}{}:
			default:
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("configuration watch error", "error", err)
		}
	}
}

func (w *Watcher) notify() {
	defer w.wg.Done()
	for {
		select {
		case <-w.kick:
			w.onChange(w.path)
		case <-w.done:
			return
		}
	}
}

// Close stops watching and waits for a running callback. It is safe to
// call more than once.
func (w *Watcher) Close() error {
	w.closeOnce.Do(func() {
		close(w.done)
		w.closeErr = w.fs.Close()
		w.wg.Wait()
	})
	return w.closeErr
}
