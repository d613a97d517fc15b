// Copyright (c) 2025 Stefano Scafiti
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

// Package watch polls a card directory and reports new, modified and
// removed files. The card gives no change notifications, so polling with
// a size-stability window is the only way to tell a finished file from
// one still being written by the camera.
package watch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ostafen/aircard/internal/vfs"
)

// DefaultInterval is the polling period when none is configured.
const DefaultInterval = 5 * time.Second

// Callbacks receive classification results. They run on the watcher's
// polling goroutine; dispatch order within a pass is new, modified,
// removed.
type Callbacks struct {
	OnNewFile      func(*vfs.File)
	OnFileModified func(*vfs.File)
	OnFileRemoved  func(*vfs.File)
}

// Config carries the watcher knobs. Zero values select the defaults.
type Config struct {
	Interval  time.Duration
	Now       func() time.Time
	Callbacks Callbacks
}

type unstableEntry struct {
	size       uint32
	detectedAt time.Time
}

// Watcher tracks one directory. Every file name is in at most one of
// known and unstable at any instant.
type Watcher struct {
	dir *vfs.Directory
	log *slog.Logger
	cfg Config

	mtx      sync.Mutex
	known    map[string]*vfs.File
	unstable map[string]unstableEntry

	stop    chan struct{}
	started bool
	wg      sync.WaitGroup
}

// New prepares a watcher on dir.
func New(dir *vfs.Directory, log *slog.Logger, cfg Config) *Watcher {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Watcher{
		dir:      dir,
		log:      log,
		cfg:      cfg,
		known:    make(map[string]*vfs.File),
		unstable: make(map[string]unstableEntry),
	}
}

// Start seeds the known set with the directory's current files, runs an
// immediate detection pass and then polls every configured interval
// until Close.
func (w *Watcher) Start(ctx context.Context) error {
	w.mtx.Lock()
	if w.started {
		w.mtx.Unlock()
		return nil
	}
	w.started = true
	w.stop = make(chan struct{})
	stop := w.stop
	w.mtx.Unlock()

	if err := w.seed(ctx); err != nil {
		return err
	}
	if err := w.Poll(ctx); err != nil {
		w.log.Warn("detection pass failed", "err", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()

		ticker := time.NewTicker(w.cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := w.Poll(ctx); err != nil {
					w.log.Warn("detection pass failed", "err", err)
				}
			case <-stop:
				return
			}
		}
	}()
	return nil
}

// Close cancels the polling loop and clears all state.
func (w *Watcher) Close() {
	w.mtx.Lock()
	if w.started {
		w.started = false
		close(w.stop)
	}
	w.mtx.Unlock()
	w.wg.Wait()

	w.mtx.Lock()
	w.known = make(map[string]*vfs.File)
	w.unstable = make(map[string]unstableEntry)
	w.mtx.Unlock()
}

func (w *Watcher) seed(ctx context.Context) error {
	files, err := w.listFiles(ctx)
	if err != nil {
		return err
	}

	w.mtx.Lock()
	defer w.mtx.Unlock()
	for _, f := range files {
		w.known[f.Name()] = f
	}
	return nil
}

func (w *Watcher) listFiles(ctx context.Context) ([]*vfs.File, error) {
	nodes, err := w.dir.List(ctx, true)
	if err != nil {
		return nil, err
	}

	files := make([]*vfs.File, 0, len(nodes))
	for _, n := range nodes {
		if f, ok := n.(*vfs.File); ok {
			files = append(files, f)
		}
	}
	return files, nil
}

// Poll runs one detection pass: files whose size held steady for at
// least twice the interval become new, known files with changed size or
// mtime are modified, vanished known files are removed.
func (w *Watcher) Poll(ctx context.Context) error {
	files, err := w.listFiles(ctx)
	if err != nil {
		return err
	}

	newFiles, modified, removed := w.classify(files)

	for _, f := range newFiles {
		if w.cfg.Callbacks.OnNewFile != nil {
			w.cfg.Callbacks.OnNewFile(f)
		}
	}
	for _, f := range modified {
		if w.cfg.Callbacks.OnFileModified != nil {
			w.cfg.Callbacks.OnFileModified(f)
		}
	}
	for _, f := range removed {
		if w.cfg.Callbacks.OnFileRemoved != nil {
			w.cfg.Callbacks.OnFileRemoved(f)
		}
	}
	return nil
}

func (w *Watcher) classify(files []*vfs.File) (newFiles, modified, removed []*vfs.File) {
	now := w.cfg.Now()

	w.mtx.Lock()
	defer w.mtx.Unlock()

	current := make(map[string]*vfs.File, len(files))
	for _, f := range files {
		current[f.Name()] = f
	}

	for _, f := range files {
		name := f.Name()

		if prev, ok := w.known[name]; ok {
			if prev.Size() != f.Size() || !prev.ModTime().Equal(f.ModTime()) {
				modified = append(modified, f)
				w.known[name] = f
			}
			continue
		}

		if u, ok := w.unstable[name]; !ok || u.size != f.Size() {
			w.unstable[name] = unstableEntry{size: f.Size(), detectedAt: now}
		}
	}

	for name, u := range w.unstable {
		f, present := current[name]
		if !present {
			// The upload never finished; forget it.
			delete(w.unstable, name)
			continue
		}
		if f.Size() == u.size && now.Sub(u.detectedAt) >= 2*w.cfg.Interval {
			newFiles = append(newFiles, f)
			w.known[name] = f
			delete(w.unstable, name)
		}
	}

	for name, f := range w.known {
		if _, present := current[name]; !present {
			removed = append(removed, f)
			delete(w.known, name)
		}
	}
	return newFiles, modified, removed
}
