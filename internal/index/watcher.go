// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package index

import (
	"context"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reindexDebounce coalesces bursts of mirror writes (a multi-column save
// touches several files back to back).
const reindexDebounce = 500 * time.Millisecond

// Watcher keeps the index in sync with the mirror directory. When fsnotify
// cannot watch the directory (network filesystems, exhausted inotify
// budget), it degrades to periodic polling.
type Watcher struct {
	index   *Index
	done    chan struct{}
	onError func(error)
}

// Watch starts background synchronization. onError may be nil.
func (ix *Index) Watch(onError func(error)) (*Watcher, error) {
	w := &Watcher{index: ix, done: make(chan struct{}), onError: onError}

	fw, err := fsnotify.NewWatcher()
	if err == nil {
		err = fw.Add(ix.dir)
	}
	if err != nil {
		if fw != nil {
			fw.Close()
		}
		go w.poll()
		return w, nil
	}

	go w.run(fw)
	return w, nil
}

func (w *Watcher) run(fw *fsnotify.Watcher) {
	defer fw.Close()

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-w.done:
			return
		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if !strings.HasSuffix(event.Name, ".json") {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reindexDebounce)
				timerC = timer.C
			} else {
				timer.Reset(reindexDebounce)
			}
		case <-timerC:
			timer = nil
			timerC = nil
			w.reindex()
		case _, ok := <-fw.Errors:
			if !ok {
				return
			}
		}
	}
}

// poll is the fallback when fsnotify is unavailable.
func (w *Watcher) poll() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.reindex()
		}
	}
}

func (w *Watcher) reindex() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := w.index.Reindex(ctx); err != nil && w.onError != nil {
		w.onError(err)
	}
}

// Close stops the watcher.
func (w *Watcher) Close() {
	close(w.done)
}
