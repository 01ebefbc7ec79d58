// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce coalesces the burst of events editors emit per save.
const watchDebounce = 300 * time.Millisecond

// Watcher hot-reloads the config file and hands each successfully parsed
// version to the callback. Parse failures keep the previous config; editing
// must never crash the running TUI.
type Watcher struct {
	watcher *fsnotify.Watcher
	path    string
	onLoad  func(*Config)
	done    chan struct{}
}

// Watch starts watching path (DefaultPath when empty). The callback runs on
// the watcher goroutine; callers forward into their own event loop.
func Watch(path string, onLoad func(*Config)) (*Watcher, error) {
	if path == "" {
		path = DefaultPath()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory: editors replace the file by rename, which drops a
	// watch set on the file itself.
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, err
	}

	w := &Watcher{
		watcher: fw,
		path:    path,
		onLoad:  onLoad,
		done:    make(chan struct{}),
	}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
				timerC = timer.C
			} else {
				timer.Reset(watchDebounce)
			}
		case <-timerC:
			timer = nil
			timerC = nil
			if cfg, err := Load(w.path); err == nil {
				w.onLoad(cfg)
			}
		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}
