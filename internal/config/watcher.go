package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const debounceDelay = 500 * time.Millisecond

// Watcher reloads configuration when files under the loader's directory
// change and hands the new configuration to registered callbacks. It only
// watches in development.
type Watcher struct {
	loader    *Loader
	config    *Config
	callbacks []func(*Config)
	mu        sync.RWMutex
	logger    *zap.Logger
	watcher   *fsnotify.Watcher
	stopCh    chan struct{}
	stopOnce  sync.Once
}

// NewWatcher creates a watcher seeded with the initial configuration. A
// configuration directory that cannot be watched leaves hot reloading off.
func NewWatcher(loader *Loader, initial *Config, logger *zap.Logger) (*Watcher, error) {
	w := &Watcher{
		loader: loader,
		config: initial,
		logger: logger,
		stopCh: make(chan struct{}),
	}

	if initial.Environment != Development {
		logger.Info("Configuration hot reloading disabled",
			zap.String("environment", string(initial.Environment)),
		)
		return w, nil
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fsWatcher.Add(loader.basePath); err != nil {
		fsWatcher.Close()
		logger.Warn("Configuration hot reloading disabled, directory cannot be watched",
			zap.String("path", loader.basePath),
			zap.Error(err),
		)
		return w, nil
	}
	w.watcher = fsWatcher

	go w.watchLoop()

	logger.Info("Configuration hot reloading enabled",
		zap.String("path", loader.basePath),
	)
	return w, nil
}

// watchLoop monitors for file changes and triggers debounced reloads.
func (w *Watcher) watchLoop() {
	defer w.watcher.Close()

	var debounceTimer *time.Timer
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 || !isConfigFile(event.Name) {
				continue
			}

			w.logger.Info("Configuration file changed",
				zap.String("file", event.Name),
				zap.String("operation", event.Op.String()),
			)
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(debounceDelay, w.Reload)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("File watcher error", zap.Error(err))

		case <-w.stopCh:
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			w.logger.Info("Stopping configuration watcher")
			return
		}
	}
}

// Reload loads the configuration again and notifies callbacks when it
// differs from the current one. An invalid configuration is logged and
// ignored.
func (w *Watcher) Reload() {
	newConfig, err := w.loader.Load()
	if err != nil {
		w.logger.Error("Invalid configuration after reload", zap.Error(err))
		return
	}

	w.mu.Lock()
	oldConfig := w.config
	changes := diff(oldConfig, newConfig)
	if len(changes) == 0 {
		w.mu.Unlock()
		w.logger.Debug("Configuration unchanged after reload")
		return
	}
	w.config = newConfig
	callbacks := make([]func(*Config), len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.Unlock()

	w.logger.Info("Configuration changes detected", zap.Strings("changes", changes))

	for i, cb := range callbacks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					w.logger.Error("Callback panicked",
						zap.Int("callback_index", i),
						zap.Any("panic", r),
					)
				}
			}()
			cb(newConfig)
		}()
	}
}

// OnChange registers a callback to be called when configuration changes.
func (w *Watcher) OnChange(callback func(*Config)) {
	w.mu.Lock()
	w.callbacks = append(w.callbacks, callback)
	w.mu.Unlock()
}

// Config returns the current configuration.
func (w *Watcher) Config() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.config
}

// Stop stops the watcher. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
}

// diff lists the hot-reloadable settings that changed
func diff(old, new *Config) []string {
	changes := make([]string, 0)

	if old.Graph.SimilarityThreshold != new.Graph.SimilarityThreshold {
		changes = append(changes, fmt.Sprintf("similarity_threshold: %v -> %v", old.Graph.SimilarityThreshold, new.Graph.SimilarityThreshold))
	}
	if old.Graph.RelatedIdeas != new.Graph.RelatedIdeas {
		changes = append(changes, fmt.Sprintf("related_ideas: %d -> %d", old.Graph.RelatedIdeas, new.Graph.RelatedIdeas))
	}
	if old.Graph.MaxIdeas != new.Graph.MaxIdeas {
		changes = append(changes, fmt.Sprintf("max_ideas: %d -> %d", old.Graph.MaxIdeas, new.Graph.MaxIdeas))
	}
	if old.Graph.SessionTTL != new.Graph.SessionTTL {
		changes = append(changes, fmt.Sprintf("session_ttl: %s -> %s", old.Graph.SessionTTL, new.Graph.SessionTTL))
	}
	if old.LogLevel != new.LogLevel {
		changes = append(changes, fmt.Sprintf("log_level: %s -> %s", old.LogLevel, new.LogLevel))
	}
	return changes
}

// isConfigFile checks if a file is a configuration file.
func isConfigFile(path string) bool {
	ext := filepath.Ext(path)
	return ext == ".yaml" || ext == ".yml"
}
