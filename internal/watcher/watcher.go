// file: internal/watcher/watcher.go
// version: 3.0.0
// guid: 5c8f1d2a-6e47-4b30-9a1d-c7e24f9b8d53

// Package watcher notices changes under the library root so cached views of
// the tree can be dropped.
package watcher

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jdfalk/mediashare/internal/logging"
)

// DefaultDebounce is the default debounce period.
const DefaultDebounce = 2 * time.Second

// Callback receives the slash-separated directories, relative to the root,
// that changed during the debounce window. "" is the root itself.
type Callback func(changedDirs []string)

// Watcher monitors a directory tree and invokes a callback once events
// settle. Hidden directories, including .meta sidecar folders, are ignored.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	rootDir   string
	debounce  time.Duration
	callback  Callback
	stop      chan struct{}
	stopped   chan struct{}
	mu        sync.Mutex
	timer     *time.Timer
	pending   map[string]struct{}
	running   bool
}

// New creates a Watcher. Pass 0 for debounce to use DefaultDebounce.
func New(callback Callback, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		debounce: debounce,
		callback: callback,
		stop:     make(chan struct{}),
		stopped:  make(chan struct{}),
		pending:  make(map[string]struct{}),
	}
}

// Start begins watching rootDir recursively. Calling it again is a no-op.
func (w *Watcher) Start(rootDir string) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.fsWatcher = fsw
	w.rootDir = filepath.Clean(rootDir)

	if err := w.addRecursive(w.rootDir); err != nil {
		fsw.Close()
		return err
	}

	log := logging.With("watcher")
	log.Info().Str("root", w.rootDir).Msg("watching library")
	go w.eventLoop()
	return nil
}

// Stop shuts down the watcher and waits for the event loop to exit. Pending
// callbacks are discarded.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stop)
	if w.fsWatcher != nil {
		w.fsWatcher.Close()
	}
	<-w.stopped

	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.mu.Unlock()
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // skip inaccessible dirs
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.rootDir && isHidden(d.Name()) {
			return filepath.SkipDir
		}
		if watchErr := w.fsWatcher.Add(path); watchErr != nil {
			logging.Warn().Err(watchErr).Str("path", path).Msg("cannot watch directory")
		}
		return nil
	})
}

func (w *Watcher) eventLoop() {
	defer close(w.stopped)

	for {
		select {
		case <-w.stop:
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			logging.Error().Err(err).Msg("watcher error")
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	rel, ok := w.relevant(event.Name)
	if !ok {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename|fsnotify.Write) == 0 {
		return
	}

	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			_ = w.addRecursive(event.Name)
		}
	}

	w.schedule(parentDir(rel))
}

// relevant returns the slash-separated path of name relative to the root,
// or false when it is outside the root or under a hidden segment.
func (w *Watcher) relevant(name string) (string, bool) {
	rel, err := filepath.Rel(w.rootDir, name)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	for _, seg := range strings.Split(rel, "/") {
		if isHidden(seg) {
			return "", false
		}
	}
	return rel, true
}

func (w *Watcher) schedule(dir string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending[dir] = struct{}{}
	if w.timer != nil {
		w.timer.Reset(w.debounce)
		return
	}
	w.timer = time.AfterFunc(w.debounce, w.fire)
}

func (w *Watcher) fire() {
	w.mu.Lock()
	w.timer = nil
	dirs := make([]string, 0, len(w.pending))
	for d := range w.pending {
		dirs = append(dirs, d)
	}
	w.pending = make(map[string]struct{})
	w.mu.Unlock()

	sort.Strings(dirs)
	log := logging.With("watcher")
	log.Debug().Strs("dirs", dirs).Msg("library changed")
	if w.callback != nil {
		w.callback(dirs)
	}
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

func parentDir(rel string) string {
	i := strings.LastIndex(rel, "/")
	if i < 0 {
		return ""
	}
	return rel[:i]
}
