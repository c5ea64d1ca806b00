// Package watch re-runs a callback when script files change on disk.
package watch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDelay is how long the watcher waits for writes to settle.
const DefaultDelay = 300 * time.Millisecond

// ChangeFunc is called with the path of a changed file.
type ChangeFunc func(ctx context.Context, path string)

// Watcher watches a set of files. It watches their directories, since
// editors often replace a file instead of writing it in place.
type Watcher struct {
	files   map[string]bool
	onEvent ChangeFunc
	delay   time.Duration
	log     *slog.Logger

	fsw       *fsnotify.Watcher
	debouncer *debouncer
	hashes    *hashTracker
}

// New creates a watcher for files. onChange runs once per settled change
// whose content differs from the last seen version.
func New(files []string, onChange ChangeFunc) (*Watcher, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("no files to watch")
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		files:   make(map[string]bool, len(files)),
		onEvent: onChange,
		delay:   DefaultDelay,
		log:     slog.Default(),
		fsw:     fsw,
		hashes:  newHashTracker(),
	}
	dirs := map[string]bool{}
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			_ = fsw.Close()
			return nil, err
		}
		w.files[abs] = true
		w.hashes.HasChanged(abs) // seed
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			_ = fsw.Close()
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	return w, nil
}

// SetDelay overrides the settle delay.
func (w *Watcher) SetDelay(d time.Duration) {
	if d > 0 {
		w.delay = d
	}
}

// Run blocks until ctx is done, dispatching changes to the callback.
func (w *Watcher) Run(ctx context.Context) error {
	w.debouncer = newDebouncer(w.delay, func(paths []string) {
		for _, p := range paths {
			if ctx.Err() != nil {
				return
			}
			w.onEvent(ctx, p)
		}
	})
	defer func() {
		w.debouncer.Stop()
		_ = w.fsw.Close()
	}()

	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", "error", err)
		case <-ctx.Done():
			return nil
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	path, err := filepath.Abs(ev.Name)
	if err != nil || !w.files[path] {
		return
	}
	if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		w.hashes.Remove(path)
		return
	}
	if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}
	if !w.hashes.HasChanged(path) {
		w.log.Debug("content unchanged", "path", path)
		return
	}
	w.debouncer.Add(path)
}

// debouncer collects paths and flushes them after delay without new events.
type debouncer struct {
	mu      sync.Mutex
	pending []string
	seen    map[string]bool
	timer   *time.Timer
	delay   time.Duration
	onFlush func([]string)
	stopped bool
}

func newDebouncer(delay time.Duration, onFlush func([]string)) *debouncer {
	return &debouncer{delay: delay, onFlush: onFlush, seen: map[string]bool{}}
}

func (d *debouncer) Add(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if !d.seen[path] {
		d.seen[path] = true
		d.pending = append(d.pending, path)
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.flush)
}

func (d *debouncer) flush() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	paths := d.pending
	d.pending = nil
	d.seen = map[string]bool{}
	d.mu.Unlock()

	if len(paths) > 0 {
		d.onFlush(paths)
	}
}

func (d *debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
}

// hashTracker remembers file content hashes so saves without changes are skipped.
type hashTracker struct {
	mu     sync.Mutex
	hashes map[string]string
}

func newHashTracker() *hashTracker {
	return &hashTracker{hashes: map[string]string{}}
}

// HasChanged reports whether path is new or its content differs.
// Unreadable files count as changed.
func (t *hashTracker) HasChanged(path string) bool {
	sum, err := fileHash(path)
	if err != nil {
		return true
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	old, ok := t.hashes[path]
	t.hashes[path] = sum
	return !ok || old != sum
}

func (t *hashTracker) Remove(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.hashes, path)
}

func fileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
