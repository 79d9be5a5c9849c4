// Copyright 2020 YourBase Inc.
// SPDX-License-Identifier: BSD-3-Clause

// Package filelock provides advisory locks that serialize edits to a file
// across processes. The lock is held on a sibling file named path+".lock",
// never on the file itself, because edits replace the file with a new one.
package filelock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/nbcin/polder/retry"
	"zombiezen.com/go/log"
)

// ErrLocked is returned by TryAcquire if another holder has the lock.
var ErrLocked = errors.New("file is locked")

// A Lock is a held advisory lock.
type Lock struct {
	path string
	f    *os.File
}

// Path returns the path of the lock file.
func (l *Lock) Path() string {
	return l.path
}

// LockPath returns the path of the lock file that guards path.
func LockPath(path string) string {
	return path + ".lock"
}

// TryAcquire attempts to take the lock guarding path without waiting.
// It returns an error wrapping ErrLocked if the lock is held elsewhere.
func TryAcquire(path string) (*Lock, error) {
	lockPath := LockPath(path)
	f, err := os.OpenFile(lockPath, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	if err := tryLock(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	return &Lock{path: lockPath, f: f}, nil
}

// Acquire takes the lock guarding path, waiting with exponential backoff
// while another holder has it. It gives up when ctx is done.
func Acquire(ctx context.Context, path string) (*Lock, error) {
	var l *Lock
	backoff := &retry.Exponential{Initial: 10 * time.Millisecond, Max: 500 * time.Millisecond}
	err := retry.Do(ctx, "locking "+path, backoff, func() error {
		var err error
		l, err = TryAcquire(path)
		if err != nil && !errors.Is(err, ErrLocked) {
			return retry.Permanent(err)
		}
		return err
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w (%v)", err, ctx.Err())
		}
		return nil, err
	}
	log.Debugf(ctx, "Acquired %s", l.path)
	return l, nil
}

// Release releases the lock. The lock file is left in place.
func (l *Lock) Release() error {
	unlockErr := unlock(l.f)
	closeErr := l.f.Close()
	if unlockErr != nil {
		return fmt.Errorf("unlock %s: %w", l.path, unlockErr)
	}
	if closeErr != nil {
		return fmt.Errorf("unlock %s: %w", l.path, closeErr)
	}
	return nil
}
