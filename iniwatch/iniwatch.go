// Copyright 2020 YourBase Inc.
// SPDX-License-Identifier: BSD-3-Clause

// Package iniwatch reports changes to a single file. It watches the file's
// directory rather than the file, so it keeps working across the
// write-to-temporary-then-rename replacement done by package ini.
package iniwatch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"zombiezen.com/go/log"
)

// An Event reports that the watched file changed.
type Event struct {
	// Path is the absolute path of the watched file.
	Path string
	// Op is the union of the operations seen since the previous event.
	Op fsnotify.Op
	// Exists reports whether the file existed when the event was sent.
	Exists bool
	Time   time.Time
}

// Watch starts watching the file at path. Bursts of changes closer together
// than debounce are coalesced into one Event. The returned channel is closed
// once ctx is done or the underlying watcher fails.
func Watch(ctx context.Context, path string, debounce time.Duration) (<-chan Event, error) {
	path, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}
	c := make(chan Event)
	go watchLoop(ctx, w, path, debounce, c)
	return c, nil
}

func watchLoop(ctx context.Context, w *fsnotify.Watcher, path string, debounce time.Duration, c chan<- Event) {
	defer close(c)
	defer w.Close()

	var pending fsnotify.Op
	var timer *time.Timer
	var timerC <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	send := func() bool {
		_, statErr := os.Stat(path)
		ev := Event{
			Path:   path,
			Op:     pending,
			Exists: statErr == nil,
			Time:   time.Now(),
		}
		pending = 0
		log.Debugf(ctx, "%s changed (%v)", path, ev.Op)
		select {
		case c <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != path || ev.Op&^fsnotify.Chmod == 0 {
				continue
			}
			pending |= ev.Op
			if debounce <= 0 {
				if !send() {
					return
				}
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(debounce)
			timerC = timer.C
		case <-timerC:
			timerC = nil
			if !send() {
				return
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			log.Warnf(ctx, "Watching %s: %v", path, err)
		}
	}
}
