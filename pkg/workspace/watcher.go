package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// ChangeType represents the kind of out-of-band change seen inside the root
type ChangeType string

const (
	ChangeCreated  ChangeType = "created"
	ChangeModified ChangeType = "modified"
	ChangeRemoved  ChangeType = "removed"
)

// ChangeCallback is invoked for every settled change inside the root
type ChangeCallback func(path string, change ChangeType)

// Watcher reports files changed inside the workspace root by actors other
// than the session, so callers can detect external interference with files
// they are editing.
type Watcher struct {
	watcher        *fsnotify.Watcher
	root           string
	settleDelay    time.Duration
	onChange       ChangeCallback
	done           chan struct{}
	debounceTimers map[string]*time.Timer
	debounceMu     sync.Mutex
	stopOnce       sync.Once
}

// WatcherConfig holds configuration for the workspace watcher
type WatcherConfig struct {
	// Root is the absolute workspace root to watch
	Root string

	// SettleDelay debounces rapid write bursts to one callback (default 100ms)
	SettleDelay time.Duration

	// OnChange receives every settled change
	OnChange ChangeCallback
}

// NewWatcher creates a watcher over the workspace root
func NewWatcher(config WatcherConfig) (*Watcher, error) {
	if config.Root == "" {
		return nil, fmt.Errorf("watcher root is required")
	}
	if config.OnChange == nil {
		return nil, fmt.Errorf("change callback is required")
	}
	if config.SettleDelay == 0 {
		config.SettleDelay = 100 * time.Millisecond
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	return &Watcher{
		watcher:        watcher,
		root:           config.Root,
		settleDelay:    config.SettleDelay,
		onChange:       config.OnChange,
		done:           make(chan struct{}),
		debounceTimers: make(map[string]*time.Timer),
	}, nil
}

// Start begins watching the root and all existing subdirectories
func (w *Watcher) Start() error {
	if err := w.addDirectoryRecursive(w.root); err != nil {
		return fmt.Errorf("failed to watch workspace: %w", err)
	}

	go w.eventLoop()

	log.Info().Str("root", w.root).Msg("Workspace watcher started")
	return nil
}

// Stop stops the watcher and cancels pending debounce timers
func (w *Watcher) Stop() error {
	w.stopOnce.Do(func() {
		close(w.done)
	})

	w.debounceMu.Lock()
	for _, timer := range w.debounceTimers {
		timer.Stop()
	}
	clear(w.debounceTimers)
	w.debounceMu.Unlock()

	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}

func (w *Watcher) eventLoop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("Workspace watcher error")

		case <-w.done:
			return
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	switch {
	case event.Op.Has(fsnotify.Create):
		// New directories need to be added to the watch set immediately.
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addDirectoryRecursive(event.Name); err != nil {
				log.Warn().Err(err).Str("path", event.Name).Msg("Failed to watch new directory")
			}
			return
		}
		w.debounce(event.Name, ChangeCreated)

	case event.Op.Has(fsnotify.Write):
		w.debounce(event.Name, ChangeModified)

	case event.Op.Has(fsnotify.Remove), event.Op.Has(fsnotify.Rename):
		w.debounce(event.Name, ChangeRemoved)
	}
}

// debounce collapses rapid event bursts for one path into a single callback
// fired after the settle delay.
func (w *Watcher) debounce(path string, change ChangeType) {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if timer, ok := w.debounceTimers[path]; ok {
		timer.Stop()
	}
	w.debounceTimers[path] = time.AfterFunc(w.settleDelay, func() {
		w.debounceMu.Lock()
		delete(w.debounceTimers, path)
		w.debounceMu.Unlock()

		select {
		case <-w.done:
			return
		default:
		}
		w.onChange(path, change)
	})
}

func (w *Watcher) addDirectoryRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if err := w.watcher.Add(path); err != nil {
				return fmt.Errorf("watch %s: %w", path, err)
			}
		}
		return nil
	})
}
