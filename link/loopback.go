package link

import (
	"sync"

	"github.com/arloliu/go-robocomm/rtp"
)

// DefaultLoopbackDepth is the frame capacity of a Loopback created with depth zero.
const DefaultLoopbackDepth = 8

// Loopback is an in-memory Link: every sent packet comes back out of Receive, and each send
// raises the loopback's interrupt.
type Loopback struct {
	mu        sync.Mutex
	frames    [][]byte
	depth     int
	connected bool
	irq       *SignalInterrupt
}

var _ Link = (*Loopback)(nil)

func NewLoopback(depth int) *Loopback {
	if depth <= 0 {
		depth = DefaultLoopbackDepth
	}

	return &Loopback{depth: depth, connected: true, irq: NewSignalInterrupt()}
}

// Interrupt returns the signal raised on every successful Send.
func (l *Loopback) Interrupt() *SignalInterrupt {
	return l.irq
}

// Reset drops every queued frame.
func (l *Loopback) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.frames = nil
}

func (l *Loopback) SelfTest() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.connected {
		return ErrFailure
	}

	return nil
}

func (l *Loopback) IsConnected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.connected
}

// Close disconnects the loopback. Later sends fail.
func (l *Loopback) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.connected = false
	l.frames = nil
}

func (l *Loopback) Send(pkt *rtp.Packet) Result {
	if pkt == nil {
		return FunctionBufferError
	}

	l.mu.Lock()
	if !l.connected {
		l.mu.Unlock()
		return Failure
	}
	if len(l.frames) >= l.depth {
		l.mu.Unlock()
		return DeviceBufferError
	}
	l.frames = append(l.frames, pkt.Pack())
	l.mu.Unlock()

	l.irq.Trigger()

	return Success
}

// Receive pops the oldest frame. When more frames remain the interrupt is raised again so
// the consumer keeps draining.
func (l *Loopback) Receive() []byte {
	l.mu.Lock()
	if len(l.frames) == 0 {
		l.mu.Unlock()
		return nil
	}
	frame := l.frames[0]
	l.frames[0] = nil
	l.frames = l.frames[1:]
	more := len(l.frames) > 0
	l.mu.Unlock()

	if more {
		l.irq.Trigger()
	}

	return frame
}

// Pending returns the number of queued frames.
func (l *Loopback) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.frames)
}
