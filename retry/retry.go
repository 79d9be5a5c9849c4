// Copyright 2020 YourBase Inc.
// SPDX-License-Identifier: BSD-3-Clause

// Package retry retries operations that fail transiently, such as acquiring
// a lock that another process holds.
package retry

import (
	"context"
	"errors"
	"time"

	"zombiezen.com/go/log"
)

// A BackoffStrategy can be called repeatedly to obtain (presumably) increasing
// durations to wait between retries.
type BackoffStrategy interface {
	Duration() time.Duration
}

// Exponential is a BackoffStrategy that starts at Initial and multiplies the
// wait by Factor after every retry, up to Max. A Factor below 1 is treated
// as 2 and a zero Max means no limit. Exponential is stateful: use a fresh
// value for each call to Do.
type Exponential struct {
	Initial time.Duration
	Max     time.Duration
	Factor  float64

	next time.Duration
}

// Duration returns the next wait.
func (e *Exponential) Duration() time.Duration {
	if e.next == 0 {
		e.next = e.Initial
	}
	d := e.next
	factor := e.Factor
	if factor < 1 {
		factor = 2
	}
	e.next = time.Duration(float64(e.next) * factor)
	if e.Max > 0 && (e.next > e.Max || e.next < d) {
		e.next = e.Max
	}
	if e.Max > 0 && d > e.Max {
		d = e.Max
	}
	return d
}

type permanentError struct {
	err error
}

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Permanent wraps an error to make Do return it without retrying.
// Do returns the wrapped error, not the wrapper.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err}
}

// Do calls a function repeatedly with backoff until it returns a nil error or
// an error wrapped with Permanent. Otherwise Do returns an error only if the
// function does not return nil before the Context is Done, in which case it
// returns the function's last error. The function is guaranteed to be called
// at least once.
//
// The operation should be a verb phrase like "locking app.ini" for logging.
func Do(ctx context.Context, operation string, strategy BackoffStrategy, f func() error) error {
	var t *time.Timer
	for {
		err := f()
		if err == nil {
			return nil
		}
		var perm permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		d := strategy.Duration()
		if d <= 0 {
			log.Debugf(ctx, "Error %s (will retry): %v", operation, err)
			select {
			case <-ctx.Done():
				return err
			default:
			}
			continue
		}
		log.Debugf(ctx, "Error %s (will retry in %v): %v", operation, d, err)
		if t == nil {
			t = time.NewTimer(d)
			defer t.Stop()
		} else {
			t.Reset(d)
		}
		select {
		case <-t.C:
		case <-ctx.Done():
			return err
		}
	}
}
