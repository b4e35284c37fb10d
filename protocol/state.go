package protocol

import (
	"context"
	"sync"
	"sync/atomic"
)

// State is the connection state of the radio protocol.
type State uint32

const (
	// Stopped is the initial state. Only Start leaves it.
	Stopped State = iota
	// Disconnected means the protocol listens but no frame arrived within the timeout.
	Disconnected
	// Connected means a frame arrived within the timeout interval.
	Connected
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Disconnected:
		return "disconnected"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

// stateMgr holds the protocol state and wakes goroutines blocked in wait.
type stateMgr struct {
	mu    sync.Mutex
	cond  *sync.Cond
	state atomic.Uint32
}

func newStateMgr() *stateMgr {
	sm := &stateMgr{}
	sm.cond = sync.NewCond(&sm.mu)
	sm.state.Store(uint32(Stopped))

	return sm
}

func (sm *stateMgr) get() State {
	return State(sm.state.Load())
}

// set stores s and returns the previous state.
func (sm *stateMgr) set(s State) State {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	prev := State(sm.state.Swap(uint32(s)))
	if prev != s {
		sm.cond.Broadcast()
	}

	return prev
}

// compareAndSet moves from old to s and reports whether it did.
func (sm *stateMgr) compareAndSet(old, s State) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if !sm.state.CompareAndSwap(uint32(old), uint32(s)) {
		return false
	}
	if old != s {
		sm.cond.Broadcast()
	}

	return true
}

func (sm *stateMgr) wait(ctx context.Context, s State) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.get() == s {
		return nil
	}

	stop := context.AfterFunc(ctx, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		sm.cond.Broadcast()
	})
	defer stop()

	for sm.get() != s {
		if err := ctx.Err(); err != nil {
			return err
		}
		sm.cond.Wait()
	}

	return nil
}
