// Package task manages the worker goroutines of the communication stack.
package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-robocomm/logger"
)

// ErrStopped is returned when starting a task on a stopped manager.
var ErrStopped = errors.New("task manager already stopped")

const startTimeout = 5 * time.Second

// LoopFunc is called repeatedly by a loop task. Returning false ends the goroutine.
type LoopFunc func(ctx context.Context) bool

// RunFunc is the body of a one-shot task. It should return once ctx is done.
type RunFunc func(ctx context.Context)

// Manager owns a group of goroutines that share one cancellation context.
//
// Every goroutine started through the manager is tracked, panics in task bodies are
// recovered and logged, and Stop followed by Wait guarantees that no task body is still
// running.
//
//	mgr := task.NewManager(ctx, logger)
//	mgr.Loop("rx", func(ctx context.Context) bool {
//	    // ...
//	    return true
//	})
//	mgr.Stop()
//	mgr.Wait()
type Manager struct {
	pctx   context.Context
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger logger.Logger
	count  atomic.Int32
	mu     sync.RWMutex // protect ctx and cancel
	taskMu sync.RWMutex // protect task creation during Wait()
}

// NewManager creates a manager whose tasks stop when ctx is cancelled or Stop is called.
func NewManager(ctx context.Context, l logger.Logger) *Manager {
	if l == nil {
		l = logger.GetLogger()
	}
	mgr := &Manager{pctx: ctx, logger: l}
	mgr.ctx, mgr.cancel = context.WithCancel(ctx)

	return mgr
}

// Context returns the context shared by the running tasks.
func (mgr *Manager) Context() context.Context {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()

	return mgr.ctx
}

// Go starts fn in a new goroutine and returns once the goroutine is running.
func (mgr *Manager) Go(name string, fn RunFunc) error {
	mgr.logger.Debug("start task", "name", name)

	ctx := mgr.Context()
	if ctx.Err() != nil {
		return ErrStopped
	}

	mgr.taskMu.RLock()
	defer mgr.taskMu.RUnlock()

	started := make(chan struct{})
	mgr.wg.Add(1)
	go func() {
		defer mgr.wg.Done()

		mgr.count.Add(1)
		close(started)

		defer func() {
			mgr.count.Add(-1)
			mgr.logger.Debug(fmt.Sprintf("%s task terminated", name), "task_count", mgr.Count())
		}()

		mgr.Call(name, func() { fn(ctx) })
	}()

	select {
	case <-started:
		return nil
	case <-time.After(startTimeout):
		return fmt.Errorf("timeout waiting for %s to start", name)
	}
}

// Loop starts a goroutine that calls fn until it returns false or the manager stops.
// A panic inside fn is logged and ends the loop.
func (mgr *Manager) Loop(name string, fn LoopFunc) error {
	return mgr.Go(name, func(ctx context.Context) {
		for ctx.Err() == nil {
			if !fn(ctx) {
				return
			}
		}
	})
}

// Call runs fn and recovers from a panic inside it, reporting whether fn returned normally.
func (mgr *Manager) Call(name string, fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			mgr.logger.Error("panic in task", "name", name, "panic", r)
			ok = false
		}
	}()

	fn()

	return true
}

// Stop signals all running tasks.
func (mgr *Manager) Stop() {
	mgr.mu.Lock()
	if mgr.cancel != nil {
		mgr.cancel()
	}
	mgr.mu.Unlock()
}

// Wait blocks until every task has returned, then re-arms the manager so new tasks may start.
func (mgr *Manager) Wait() {
	mgr.taskMu.Lock()
	defer mgr.taskMu.Unlock()

	mgr.wg.Wait()

	mgr.mu.Lock()
	mgr.ctx, mgr.cancel = context.WithCancel(mgr.pctx)
	mgr.mu.Unlock()
}

// Count returns the number of running tasks.
func (mgr *Manager) Count() int {
	return int(mgr.count.Load())
}
