// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
)

// DefaultWatchDebounce coalesces the burst of events editors emit on save.
const DefaultWatchDebounce = 200 * time.Millisecond

// =============================================================================
// CONFIG WATCHER
// =============================================================================

// Watcher reloads a config file whenever it changes on disk.
type Watcher struct {
	path     string
	debounce time.Duration
	watcher  *fsnotify.Watcher

	onChange func(*Config)
	onError  func(error)

	mu    sync.Mutex
	timer *time.Timer
}

// NewWatcher creates a watcher for path. The parent directory is watched so
// that rename-on-save editors are still observed. onError may be nil.
func NewWatcher(path string, onChange func(*Config), onError func(error)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "create fsnotify watcher")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		fw.Close()
		return nil, errors.Wrapf(err, "resolve %s", path)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, errors.Wrapf(err, "watch %s", filepath.Dir(abs))
	}
	if onError == nil {
		onError = func(error) {}
	}
	return &Watcher{
		path:     abs,
		debounce: DefaultWatchDebounce,
		watcher:  fw,
		onChange: onChange,
		onError:  onError,
	}, nil
}

// Run processes events until ctx is cancelled, then releases the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.schedule()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.onError(errors.Wrap(err, "config watcher"))
		}
	}
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

func (w *Watcher) reload() {
	cfg, err := LoadFromPath(w.path)
	if err != nil {
		w.onError(err)
		return
	}
	w.onChange(cfg)
}

func (w *Watcher) stop() {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	w.watcher.Close()
}

// Watch is a convenience wrapper that blocks until ctx is done.
func Watch(ctx context.Context, path string, onChange func(*Config), onError func(error)) error {
	w, err := NewWatcher(path, onChange, onError)
	if err != nil {
		return err
	}
	return w.Run(ctx)
}
