package router

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/arloliu/go-robocomm/internal/mailbox"
	"github.com/arloliu/go-robocomm/internal/pool"
	"github.com/arloliu/go-robocomm/internal/task"
	"github.com/arloliu/go-robocomm/link"
	"github.com/arloliu/go-robocomm/logger"
	"github.com/arloliu/go-robocomm/rtp"
)

type direction uint8

const (
	inbound direction = iota
	outbound
)

func (d direction) String() string {
	if d == inbound {
		return "rx"
	}
	return "tx"
}

// Router is the packet router. It is safe for concurrent use.
type Router struct {
	cfg    *config
	logger logger.Logger

	ports    *xsync.MapOf[rtp.Port, *portEntry]
	inbound  *mailbox.Mailbox[rtp.Packet]
	outbound *mailbox.Mailbox[rtp.Packet]

	// dispatchMu makes handler invocation a critical section shared by both workers.
	dispatchMu sync.Mutex

	taskMgr   *task.Manager
	startOnce sync.Once
	start     chan struct{} // closed by the first registration
	rxRunning chan struct{} // closed by the inbound worker once it runs
	ready     chan struct{} // closed once both workers run
	started   atomic.Bool
	stopped   atomic.Bool
	stopOnce  sync.Once
	parentCtx context.Context
	unwatch   func() bool // releases the parent context watch

	metrics Metrics
}

var _ link.Deliverer = (*Router)(nil)

// New creates a router and launches its two workers. The workers stay parked until the
// first Register call.
func New(ctx context.Context, opts ...Option) (*Router, error) {
	cfg, err := newConfig(opts...)
	if err != nil {
		return nil, err
	}

	r := &Router{
		cfg:       cfg,
		logger:    cfg.logger.With("component", "router"),
		ports:     xsync.NewMapOf[rtp.Port, *portEntry](),
		inbound:   mailbox.New[rtp.Packet](cfg.rxQueueSize),
		outbound:  mailbox.New[rtp.Packet](cfg.txQueueSize),
		start:     make(chan struct{}),
		rxRunning: make(chan struct{}),
		ready:     make(chan struct{}),
		parentCtx: ctx,
	}
	r.taskMgr = task.NewManager(ctx, r.logger)

	if err := r.taskMgr.Go("router-rx", r.runInbound); err != nil {
		return nil, err
	}
	if err := r.taskMgr.Go("router-tx", r.runOutbound); err != nil {
		r.taskMgr.Stop()
		r.taskMgr.Wait()
		return nil, err
	}
	// the workers exit with ctx, so a cancelled parent stops the router
	r.unwatch = context.AfterFunc(ctx, r.Stop)

	return r, nil
}

// Register installs handlers for port. A nil handler leaves the existing one in place, so a
// port can be opened in several calls. The first registration marks the router ready.
//
// Registration is safe while the workers dispatch: an in-flight dispatch completes with the
// handler it already picked up.
func (r *Router) Register(port rtp.Port, rx RxHandler, tx TxHandler) {
	e, _ := r.ports.LoadOrCompute(port, func() *portEntry {
		return &portEntry{port: port}
	})
	e.set(rx, tx)
	r.logger.Debug("port registered", "port", port, "rx", rx != nil, "tx", tx != nil)

	r.startOnce.Do(func() {
		r.started.Store(true)
		close(r.start)
	})
}

// SetRxHandler installs the receive handler of port.
func (r *Router) SetRxHandler(port rtp.Port, rx RxHandler) {
	r.Register(port, rx, nil)
}

// SetTxHandler installs the transmit handler of port.
func (r *Router) SetTxHandler(port rtp.Port, tx TxHandler) {
	r.Register(port, nil, tx)
}

// Close removes both handlers of port together with its counters.
func (r *Router) Close(port rtp.Port) {
	if _, ok := r.ports.LoadAndDelete(port); ok {
		r.logger.Debug("port closed", "port", port)
	}
}

// Send queues pkt for the transmit handler of its port.
func (r *Router) Send(pkt rtp.Packet) error {
	return r.enqueue(outbound, pkt)
}

// Deliver queues pkt for the receive handler of its port. It is called by the link
// reception path.
func (r *Router) Deliver(pkt rtp.Packet) error {
	return r.enqueue(inbound, pkt)
}

func (r *Router) enqueue(dir direction, pkt rtp.Packet) error {
	if r.stopped.Load() || r.parentCtx.Err() != nil {
		return ErrStopped
	}

	port := pkt.Header.Port
	if !r.hasHandler(dir, port) {
		r.metrics.incRoutingFailureCount()
		r.logger.Warn("no handler for port, packet dropped", "dir", dir, "port", port)

		if dir == inbound {
			return fmt.Errorf("%w: port %s", ErrNoRxHandler, port)
		}
		return fmt.Errorf("%w: port %s", ErrNoTxHandler, port)
	}

	box := r.mailbox(dir)
	if err := box.TryPut(pkt); err != nil {
		if errors.Is(err, mailbox.ErrClosed) {
			return ErrStopped
		}

		r.metrics.incMailboxOverflowCount()
		r.logger.Error("mailbox full, packet rejected", "dir", dir, "port", port, "capacity", box.Cap())

		return fmt.Errorf("%w: %s port %s", ErrMailboxFull, dir, port)
	}

	return nil
}

func (r *Router) hasHandler(dir direction, port rtp.Port) bool {
	e, ok := r.ports.Load(port)
	if !ok {
		return false
	}
	if dir == inbound {
		return e.rxHandler() != nil
	}

	return e.txHandler() != nil
}

func (r *Router) mailbox(dir direction) *mailbox.Mailbox[rtp.Packet] {
	if dir == inbound {
		return r.inbound
	}

	return r.outbound
}

func (r *Router) runInbound(ctx context.Context) {
	select {
	case <-r.start:
	case <-ctx.Done():
		return
	}
	close(r.rxRunning)
	r.logger.Debug("inbound worker running")

	r.drain(ctx, inbound)
}

func (r *Router) runOutbound(ctx context.Context) {
	select {
	case <-r.rxRunning:
	case <-ctx.Done():
		return
	}
	close(r.ready)
	r.logger.Debug("outbound worker running")

	r.drain(ctx, outbound)
}

func (r *Router) drain(ctx context.Context, dir direction) {
	box := r.mailbox(dir)
	for {
		pkt, err := box.Get(ctx)
		if err != nil {
			return
		}
		r.dispatch(dir, &pkt)
	}
}

// dispatch runs the handler of pkt's port inside the dispatch section.
func (r *Router) dispatch(dir direction, pkt *rtp.Packet) {
	port := pkt.Header.Port
	e, ok := r.ports.Load(port)

	var rx RxHandler
	var tx TxHandler
	if ok {
		if dir == inbound {
			rx = e.rxHandler()
		} else {
			tx = e.txHandler()
		}
	}
	if rx == nil && tx == nil {
		// port closed while the packet was queued
		r.metrics.incRoutingFailureCount()
		r.logger.Warn("port closed, queued packet dropped", "dir", dir, "port", port)
		return
	}

	result := link.Success
	r.dispatchMu.Lock()
	begin := time.Now()
	ok = r.taskMgr.Call("dispatch-"+dir.String(), func() {
		if rx != nil {
			rx(pkt)
		} else {
			result = tx(pkt)
		}
	})
	elapsed := time.Since(begin)
	r.dispatchMu.Unlock()

	if elapsed > r.cfg.dispatchBudget {
		r.metrics.incDispatchOverrunCount()
		r.logger.Warn("dispatch exceeded budget", "dir", dir, "port", port,
			"elapsed", elapsed, "budget", r.cfg.dispatchBudget)
	}
	if !ok {
		r.metrics.incHandlerPanicCount()
	}

	if dir == inbound {
		e.rxCount.Add(1)
		r.metrics.incRxPacketCount()
		return
	}

	e.txCount.Add(1)
	r.metrics.incTxPacketCount()
	if ok && result != link.Success {
		r.metrics.incLinkFailureCount()
		r.logger.Warn("link send failed", "port", port, "result", result)
	}
}

// NumOpenPorts returns the number of ports with at least one handler.
func (r *Router) NumOpenPorts() int {
	n := 0
	r.ports.Range(func(_ rtp.Port, e *portEntry) bool {
		if s := e.stats(); s.HasRx || s.HasTx {
			n++
		}
		return true
	})

	return n
}

// NumRxPackets returns the inbound packets dispatched across all open ports.
func (r *Router) NumRxPackets() uint64 {
	var n uint64
	r.ports.Range(func(_ rtp.Port, e *portEntry) bool {
		n += e.rxCount.Load()
		return true
	})

	return n
}

// NumTxPackets returns the outbound packets dispatched across all open ports.
func (r *Router) NumTxPackets() uint64 {
	var n uint64
	r.ports.Range(func(_ rtp.Port, e *portEntry) bool {
		n += e.txCount.Load()
		return true
	})

	return n
}

// ResetCounts zeroes the packet counters of port.
func (r *Router) ResetCounts(port rtp.Port) {
	if e, ok := r.ports.Load(port); ok {
		e.rxCount.Store(0)
		e.txCount.Store(0)
	}
}

// PortStats returns a snapshot of every open port ordered by port number.
func (r *Router) PortStats() []PortStats {
	stats := make([]PortStats, 0, r.ports.Size())
	r.ports.Range(func(_ rtp.Port, e *portEntry) bool {
		stats = append(stats, e.stats())
		return true
	})
	sort.Slice(stats, func(i, j int) bool { return stats[i].Port < stats[j].Port })

	return stats
}

// IsReady reports whether a port has been registered. Once true it stays true.
func (r *Router) IsReady() bool {
	return r.started.Load()
}

// Ready returns a channel closed once both workers are running.
func (r *Router) Ready() <-chan struct{} {
	return r.ready
}

// WaitReady blocks until both workers are running, ctx is done, or timeout elapses.
func (r *Router) WaitReady(ctx context.Context, timeout time.Duration) error {
	return pool.WaitFor(ctx, r.ready, timeout)
}

// RxQueueLen returns the number of packets waiting in the inbound mailbox.
func (r *Router) RxQueueLen() int {
	return r.inbound.Len()
}

// TxQueueLen returns the number of packets waiting in the outbound mailbox.
func (r *Router) TxQueueLen() int {
	return r.outbound.Len()
}

// Metrics returns the router metrics.
func (r *Router) Metrics() *Metrics {
	return &r.metrics
}

// Stop terminates both workers and rejects further traffic. Queued packets are discarded.
// Cancelling the context given to New has the same effect.
func (r *Router) Stop() {
	r.stopOnce.Do(func() {
		r.stopped.Store(true)
		if r.unwatch != nil {
			r.unwatch()
		}
		r.taskMgr.Stop()
		r.inbound.Close()
		r.outbound.Close()
		r.taskMgr.Wait()
		r.logger.Debug("router stopped")
	})
}
