package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"reflect"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/c0deZ3R0/quotesync/logging"
)

// DefaultDebounce collapses the burst of events editors emit on save.
const DefaultDebounce = 250 * time.Millisecond

// Watcher reloads a config file when it changes and hands the new value to
// registered callbacks. Invalid files are logged and ignored.
type Watcher struct {
	path     string
	debounce time.Duration
	logger   *slog.Logger
	fs       *fsnotify.Watcher

	mu        sync.RWMutex
	current   *Config
	callbacks []func(old, new *Config)

	stopCh    chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewWatcher starts watching path. initial is the config already loaded from it.
// The parent directory is watched so editors that replace the file are seen.
func NewWatcher(path string, initial *Config, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = logging.WithComponent(logging.Component("config")).Logger
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch config directory: %w", err)
	}

	w := &Watcher{
		path:     abs,
		debounce: debounce,
		logger:   logger,
		fs:       fsw,
		current:  initial,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
	go w.watchLoop()
	logger.Info("Watching configuration file", "path", abs)
	return w, nil
}

// OnChange registers a callback run after every successful reload that
// changed the configuration.
func (w *Watcher) OnChange(fn func(old, new *Config)) {
	w.mu.Lock()
	w.callbacks = append(w.callbacks, fn)
	w.mu.Unlock()
}

// Current returns the last valid configuration.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Close stops watching and waits for the watch goroutine to exit.
func (w *Watcher) Close() error {
	w.closeOnce.Do(func() { close(w.stopCh) })
	<-w.done
	return nil
}

func (w *Watcher) watchLoop() {
	defer close(w.done)
	defer w.fs.Close()

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.logger.Debug("Configuration file changed", "op", event.Op.String())
			timer.Reset(w.debounce)

		case <-timer.C:
			w.reload()

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Error("File watcher error", "error", err)

		case <-w.stopCh:
			return
		}
	}
}

func (w *Watcher) reload() {
	next, err := Load(w.path)
	if err != nil {
		w.logger.Error("Invalid configuration after reload, keeping previous", "error", err)
		return
	}

	w.mu.Lock()
	old := w.current
	if reflect.DeepEqual(old, next) {
		w.mu.Unlock()
		w.logger.Debug("Configuration unchanged after reload")
		return
	}
	w.current = next
	callbacks := append([]func(old, new *Config){}, w.callbacks...)
	w.mu.Unlock()

	for _, fn := range callbacks {
		fn(old, next)
	}
	w.logger.Info("Configuration reloaded", "callbacks_notified", len(callbacks))
}
