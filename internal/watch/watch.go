// Package watch reports edits to source documents so they can be
// republished. Editors often save by renaming a temporary file over the
// original, so the parent directory is watched rather than the file itself.
package watch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long a file must stay quiet before its change is
// reported.
const DefaultDebounce = 100 * time.Millisecond

// ErrNoPaths is returned by New when there is nothing to watch.
var ErrNoPaths = errors.New("watch: no paths given")

// ChangeKind describes the type of file change detected.
type ChangeKind int

const (
	// ChangeModified means the file was written or replaced.
	ChangeModified ChangeKind = iota
	// ChangeRemoved means the file no longer exists.
	ChangeRemoved
)

// String returns "modified" or "removed".
func (k ChangeKind) String() string {
	if k == ChangeRemoved {
		return "removed"
	}
	return "modified"
}

// Change is one debounced edit to a watched file.
type Change struct {
	Kind ChangeKind
	Path string // Absolute path
}

// Watcher monitors a fixed set of files.
type Watcher struct {
	Changes <-chan Change // Read-only external channel

	changes  chan Change
	done     chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
	started  atomic.Bool
	files    map[string]bool
	dirs     []string
	debounce time.Duration
	watcher  *fsnotify.Watcher
}

// New creates a watcher for the given files. A debounce of zero means
// DefaultDebounce.
func New(debounce time.Duration, paths ...string) (*Watcher, error) {
	if len(paths) == 0 {
		return nil, ErrNoPaths
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	files := make(map[string]bool, len(paths))
	seenDir := make(map[string]bool)
	var dirs []string
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("watch: %s: %w", p, err)
		}
		files[abs] = true
		if d := filepath.Dir(abs); !seenDir[d] {
			seenDir[d] = true
			dirs = append(dirs, d)
		}
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	ch := make(chan Change, 16)
	return &Watcher{
		Changes:  ch,
		changes:  ch,
		done:     make(chan struct{}),
		stop:     make(chan struct{}),
		files:    files,
		dirs:     dirs,
		debounce: debounce,
		watcher:  fw,
	}, nil
}

// Start begins watching.
func (w *Watcher) Start() error {
	for _, d := range w.dirs {
		if err := w.watcher.Add(d); err != nil {
			return fmt.Errorf("watch: %s: %w", d, err)
		}
	}
	w.started.Store(true)
	go w.loop()
	return nil
}

// Stop closes the watcher and the Changes channel. It is safe to call more
// than once, and before or after a failed Start.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stop)
		w.watcher.Close()
		if w.started.Load() {
			<-w.done
		}
		close(w.changes)
	})
}

func (w *Watcher) loop() {
	defer close(w.done)

	pending := make(map[string]time.Time)
	ticker := time.NewTicker(w.debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			path := filepath.Clean(ev.Name)
			if !w.files[path] {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				pending[path] = time.Now()
			}

		case <-ticker.C:
			now := time.Now()
			for path, t := range pending {
				if now.Sub(t) >= w.debounce {
					delete(pending, path)
					if !w.emit(path) {
						return
					}
				}
			}

		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			// Watch errors are non-fatal.

		case <-w.stop:
			return
		}
	}
}

// emit reports the current state of path. It returns false once the watcher
// is stopping.
func (w *Watcher) emit(path string) bool {
	kind := ChangeModified
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		kind = ChangeRemoved
	}
	select {
	case w.changes <- Change{Kind: kind, Path: path}:
		return true
	case <-w.stop:
		return false
	}
}
