package source

import (
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher calls a callback whenever a watched snippet file is written or replaced.
type Watcher struct {
	watcher  *fsnotify.Watcher
	file     string
	onChange func(path string)
	done     chan struct{}
	stopOnce sync.Once
	logger   *slog.Logger
}

// NewWatcher watches path. onChange runs on the watcher goroutine and must not block for long.
func NewWatcher(path string, onChange func(path string), logger *slog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	// Watch the directory, not the file, so editors that save by rename are seen.
	dir := filepath.Dir(path)
	if err := fw.Add(dir); err != nil {
		fw.Close()
		logger.Error("failed to watch directory",
			slog.String("path", dir),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	return &Watcher{
		watcher:  fw,
		file:     filepath.Clean(path),
		onChange: onChange,
		done:     make(chan struct{}),
		logger:   logger,
	}, nil
}

// Start blocks, dispatching change events until Stop is called.
func (w *Watcher) Start() {
	w.logger.Info("snippet file watcher started", slog.String("file", w.file))

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.file {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				w.logger.Debug("snippet file changed",
					slog.String("file", event.Name),
					slog.String("op", event.Op.String()),
				)
				w.onChange(event.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("snippet file watcher error", slog.String("error", err.Error()))
		case <-w.done:
			return
		}
	}
}

// StartAsync runs Start in a goroutine.
func (w *Watcher) StartAsync() {
	go w.Start()
}

// Stop ends the watch loop and releases the underlying watcher. Safe to call twice.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.watcher.Close()
	})
	return err
}
