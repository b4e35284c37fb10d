package router

import (
	"sync"
	"sync/atomic"

	"github.com/arloliu/go-robocomm/link"
	"github.com/arloliu/go-robocomm/rtp"
)

// RxHandler consumes an inbound packet. It runs on the inbound worker.
type RxHandler func(pkt *rtp.Packet)

// TxHandler transmits an outbound packet. It runs on the outbound worker.
// link.Link.Send satisfies it.
type TxHandler func(pkt *rtp.Packet) link.Result

// PortStats is a snapshot of one port.
type PortStats struct {
	Port    rtp.Port
	RxCount uint64
	TxCount uint64
	HasRx   bool
	HasTx   bool
}

type portEntry struct {
	port rtp.Port

	mu sync.RWMutex
	rx RxHandler
	tx TxHandler

	rxCount atomic.Uint64
	txCount atomic.Uint64
}

func (e *portEntry) set(rx RxHandler, tx TxHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if rx != nil {
		e.rx = rx
	}
	if tx != nil {
		e.tx = tx
	}
}

func (e *portEntry) rxHandler() RxHandler {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.rx
}

func (e *portEntry) txHandler() TxHandler {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.tx
}

func (e *portEntry) stats() PortStats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return PortStats{
		Port:    e.port,
		RxCount: e.rxCount.Load(),
		TxCount: e.txCount.Load(),
		HasRx:   e.rx != nil,
		HasTx:   e.tx != nil,
	}
}
