// Package pool keeps reusable timers for bounded waits on hot paths.
package pool

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTimeout is returned by WaitFor when the deadline passes first.
var ErrTimeout = errors.New("wait timeout")

var timerPool sync.Pool

// GetTimer returns a timer for the given duration d from the pool.
//
// Return back the timer to the pool with PutTimer.
func GetTimer(d time.Duration) *time.Timer {
	if v := timerPool.Get(); v != nil {
		t, _ := v.(*time.Timer)
		if t.Reset(d) {
			select {
			case <-t.C:
			default:
			}
		}
		return t
	}
	return time.NewTimer(d)
}

// PutTimer returns timer to the pool.
//
// t cannot be accessed after returning to the pool.
func PutTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	timerPool.Put(t)
}

// WaitFor blocks until done is closed, ctx ends, or timeout elapses.
// A timeout of zero or less waits without a deadline.
func WaitFor(ctx context.Context, done <-chan struct{}, timeout time.Duration) error {
	if timeout <= 0 {
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	timer := GetTimer(timeout)
	defer PutTimer(timer)

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrTimeout
	}
}
