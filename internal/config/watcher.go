package config

import (
	"context"
	"fmt"
	"path/filepath"
	"reflect"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce collapses the burst of events an editor save produces.
const DefaultDebounce = 500 * time.Millisecond

// Watcher reloads the configuration when a file in the loader's directory
// changes, and hands each valid new configuration to its subscribers.
type Watcher struct {
	loader   *Loader
	logger   *zap.Logger
	debounce time.Duration

	mu          sync.RWMutex
	current     *Config
	subscribers []func(old, next *Config)
}

// NewWatcher starts from initial, which should come from loader.
func NewWatcher(loader *Loader, initial *Config, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		loader:   loader,
		logger:   logger.Named("config_watcher"),
		debounce: DefaultDebounce,
		current:  initial,
	}
}

// WithDebounce overrides DefaultDebounce.
func (w *Watcher) WithDebounce(d time.Duration) *Watcher {
	w.debounce = d
	return w
}

// OnChange registers fn. Subscribers run in registration order on the
// watcher goroutine.
func (w *Watcher) OnChange(fn func(old, next *Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.subscribers = append(w.subscribers, fn)
}

// Current returns the configuration in force.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Run watches until ctx is done. It returns an error only if the watch
// could not be set up.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(w.loader.Dir()); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.loader.Dir(), err)
	}
	w.logger.Info("watching configuration", zap.String("dir", w.loader.Dir()))

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 || !isConfigFile(event.Name) {
				continue
			}
			w.logger.Debug("configuration file changed",
				zap.String("file", event.Name),
				zap.String("op", event.Op.String()),
			)
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			w.Reload()

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("file watcher error", zap.Error(err))
		}
	}
}

// Reload loads the configuration again. An invalid result is logged and
// discarded; an unchanged one notifies nobody. It reports whether the
// configuration was replaced.
func (w *Watcher) Reload() bool {
	next, err := w.loader.Load()
	if err != nil {
		w.logger.Error("configuration reload rejected", zap.Error(err))
		return false
	}

	w.mu.Lock()
	old := w.current
	if sameSettings(old, next) {
		w.mu.Unlock()
		w.logger.Debug("configuration unchanged after reload")
		return false
	}
	w.current = next
	subscribers := append([]func(old, next *Config){}, w.subscribers...)
	w.mu.Unlock()

	w.logger.Info("configuration reloaded",
		zap.Strings("sources", next.LoadedFrom),
		zap.Int("subscribers", len(subscribers)),
	)
	for i, fn := range subscribers {
		w.notify(i, fn, old, next)
	}
	return true
}

func (w *Watcher) notify(i int, fn func(old, next *Config), old, next *Config) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("configuration subscriber panicked", zap.Int("subscriber", i), zap.Any("panic", r))
		}
	}()
	fn(old, next)
}

func sameSettings(a, b *Config) bool {
	if a == nil || b == nil {
		return a == b
	}
	x, y := *a, *b
	x.LoadedFrom, y.LoadedFrom = nil, nil
	return reflect.DeepEqual(x, y)
}

func isConfigFile(path string) bool {
	switch filepath.Ext(path) {
	case ".yaml", ".yml", ".env":
		return true
	}
	return false
}
