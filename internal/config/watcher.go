package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Watcher monitors the data directory's .env file and invokes a reload
// callback when it changes. Used for live log-level and proactive toggle
// changes without a restart.
type Watcher struct {
	envPath     string
	watcher     *fsnotify.Watcher
	stopChan    chan struct{}
	lastModTime time.Time
	mu          sync.Mutex
	onReload    func()
}

// NewWatcher creates a watcher for the .env file inside dataDir.
func NewWatcher(dataDir string) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		envPath:  filepath.Join(dataDir, ".env"),
		watcher:  fsWatcher,
		stopChan: make(chan struct{}),
	}
	if stat, err := os.Stat(w.envPath); err == nil {
		w.lastModTime = stat.ModTime()
	}
	return w, nil
}

// SetReloadCallback sets the function invoked after the .env file changes.
func (w *Watcher) SetReloadCallback(callback func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onReload = callback
}

// Start begins watching. Watching the directory rather than the file keeps
// the watch alive across editors that replace the file on save.
func (w *Watcher) Start() error {
	dir := filepath.Dir(w.envPath)
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("watch config directory %s: %w", dir, err)
	}

	go w.loop()
	log.Info().Str("file", w.envPath).Msg("Watching config file for changes")
	return nil
}

// Stop terminates the watcher.
func (w *Watcher) Stop() {
	close(w.stopChan)
	if err := w.watcher.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close config watcher")
	}
}

func (w *Watcher) loop() {
	// Debounce timer: editors fire several events per save.
	var debounce *time.Timer

	for {
		select {
		case <-w.stopChan:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.envPath {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(500*time.Millisecond, w.maybeReload)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("Config watcher error")
		}
	}
}

func (w *Watcher) maybeReload() {
	stat, err := os.Stat(w.envPath)
	if err != nil {
		return
	}

	w.mu.Lock()
	changed := stat.ModTime().After(w.lastModTime)
	if changed {
		w.lastModTime = stat.ModTime()
	}
	callback := w.onReload
	w.mu.Unlock()

	if !changed || callback == nil {
		return
	}
	log.Info().Str("file", w.envPath).Msg("Config file changed, reloading")
	callback()
}
