package link

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/arloliu/go-robocomm/internal/task"
	"github.com/arloliu/go-robocomm/logger"
	"github.com/arloliu/go-robocomm/rtp"
)

var (
	ErrNilLink      = errors.New("link: nil link")
	ErrNilInterrupt = errors.New("link: nil interrupt")
	ErrNilDeliverer = errors.New("link: nil deliverer")
	// ErrReceiverStarted is returned by a second Start.
	ErrReceiverStarted = errors.New("link: receiver already started")
)

// ReceiverMetrics contains atomic counters of the reception path.
// Metrics can be used as the value of a prometheus CounterFunc.
type ReceiverMetrics struct {
	// Wakeups counts interrupts consumed.
	Wakeups atomic.Uint64
	// FalseTriggers counts wake-ups where the driver had no frame.
	FalseTriggers atomic.Uint64
	// Delivered counts packets accepted by the deliverer.
	Delivered atomic.Uint64
	// Dropped counts frames that could not be decoded or delivered.
	Dropped atomic.Uint64
}

// ReceiverOption configures a Receiver.
type ReceiverOption interface {
	apply(*Receiver) error
}

type receiverOptFunc func(*Receiver) error

func (f receiverOptFunc) apply(r *Receiver) error { return f(r) }

// WithReady delays reception until ready is closed.
func WithReady(ready <-chan struct{}) ReceiverOption {
	return receiverOptFunc(func(r *Receiver) error {
		r.ready = ready
		return nil
	})
}

// WithLogger sets the receiver logger.
func WithLogger(l logger.Logger) ReceiverOption {
	return receiverOptFunc(func(r *Receiver) error {
		if l != nil {
			r.logger = l
		}
		return nil
	})
}

// Receiver is the reception worker: it sleeps on an Interrupt and, for every wake-up, pulls
// one frame out of the Link and delivers the decoded packet.
type Receiver struct {
	link    Link
	irq     Interrupt
	dst     Deliverer
	ready   <-chan struct{}
	logger  logger.Logger
	metrics ReceiverMetrics

	mu      sync.Mutex
	taskMgr *task.Manager
}

func NewReceiver(l Link, irq Interrupt, dst Deliverer, opts ...ReceiverOption) (*Receiver, error) {
	switch {
	case l == nil:
		return nil, ErrNilLink
	case irq == nil:
		return nil, ErrNilInterrupt
	case dst == nil:
		return nil, ErrNilDeliverer
	}

	r := &Receiver{link: l, irq: irq, dst: dst, logger: logger.GetLogger()}
	for _, opt := range opts {
		if err := opt.apply(r); err != nil {
			return nil, err
		}
	}
	r.logger = r.logger.With("component", "receiver")

	return r, nil
}

// Start launches the reception goroutine. It runs until ctx is cancelled or Stop is called.
func (r *Receiver) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.taskMgr != nil {
		return ErrReceiverStarted
	}
	r.taskMgr = task.NewManager(ctx, r.logger)

	return r.taskMgr.Loop("receiver", r.receiveLoop())
}

// Stop ends the reception goroutine and waits for it to return.
func (r *Receiver) Stop() {
	r.mu.Lock()
	mgr := r.taskMgr
	r.taskMgr = nil
	r.mu.Unlock()

	if mgr != nil {
		mgr.Stop()
		mgr.Wait()
	}
}

// Metrics returns the receiver counters.
func (r *Receiver) Metrics() *ReceiverMetrics {
	return &r.metrics
}

// receiveLoop returns the body of the reception goroutine: wait for the ready signal once,
// then one interrupt wait and receive per call.
func (r *Receiver) receiveLoop() task.LoopFunc {
	started := false

	return func(ctx context.Context) bool {
		if !started {
			if r.ready != nil {
				select {
				case <-r.ready:
				case <-ctx.Done():
					return false
				}
			}
			started = true
			r.logger.Debug("reception started")
		}

		if err := r.irq.Wait(ctx); err != nil {
			return false
		}
		r.ReceiveOnce()

		return true
	}
}

// ReceiveOnce handles one wake-up: it reads the pending frame and delivers it.
func (r *Receiver) ReceiveOnce() Result {
	r.metrics.Wakeups.Add(1)

	data := r.link.Receive()
	if len(data) == 0 {
		r.metrics.FalseTriggers.Add(1)
		r.logger.Debug("wake-up without data")
		return FalseTrigger
	}

	pkt, err := rtp.Unpack(data)
	if err != nil {
		r.metrics.Dropped.Add(1)
		r.logger.Warn("drop undecodable frame", "size", len(data), "error", err)
		return FunctionBufferError
	}

	if err := r.dst.Deliver(pkt); err != nil {
		r.metrics.Dropped.Add(1)
		r.logger.Debug("deliver failed", "port", pkt.Header.Port, "error", err)
		return Failure
	}
	r.metrics.Delivered.Add(1)

	return Success
}
