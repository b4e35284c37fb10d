package router

import "sync/atomic"

// Metrics contains atomic metrics for a router.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type Metrics struct {
	// RxPacketCount indicates the number of inbound packets dispatched to a handler.
	RxPacketCount atomic.Uint64
	// TxPacketCount indicates the number of outbound packets dispatched to a handler.
	TxPacketCount atomic.Uint64
	// RoutingFailureCount indicates the number of packets dropped for lack of a handler.
	RoutingFailureCount atomic.Uint64
	// MailboxOverflowCount indicates the number of packets rejected by a full mailbox.
	MailboxOverflowCount atomic.Uint64
	// DispatchOverrunCount indicates the number of handler calls exceeding the dispatch budget.
	DispatchOverrunCount atomic.Uint64
	// HandlerPanicCount indicates the number of handler calls that panicked.
	HandlerPanicCount atomic.Uint64
	// LinkFailureCount indicates the number of tx handler calls not returning link.Success.
	LinkFailureCount atomic.Uint64
}

func (m *Metrics) incRxPacketCount()        { m.RxPacketCount.Add(1) }
func (m *Metrics) incTxPacketCount()        { m.TxPacketCount.Add(1) }
func (m *Metrics) incRoutingFailureCount()  { m.RoutingFailureCount.Add(1) }
func (m *Metrics) incMailboxOverflowCount() { m.MailboxOverflowCount.Add(1) }
func (m *Metrics) incDispatchOverrunCount() { m.DispatchOverrunCount.Add(1) }
func (m *Metrics) incHandlerPanicCount()    { m.HandlerPanicCount.Add(1) }
func (m *Metrics) incLinkFailureCount()     { m.LinkFailureCount.Add(1) }

