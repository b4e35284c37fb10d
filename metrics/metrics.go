// Package metrics exposes the stack's atomic counters as prometheus collectors.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/arloliu/go-robocomm/link"
	"github.com/arloliu/go-robocomm/protocol"
	"github.com/arloliu/go-robocomm/router"
)

// Sources are the components to export. Nil fields are skipped.
type Sources struct {
	Router   *router.Router
	Receiver *link.Receiver
	Protocol *protocol.Protocol
}

// Collector groups the prometheus collectors of one stack.
type Collector struct {
	collectors []prometheus.Collector
}

// NewCollector builds collectors under namespace for every non-nil source.
func NewCollector(namespace string, src Sources) *Collector {
	c := &Collector{}

	if r := src.Router; r != nil {
		m := r.Metrics()
		c.counter(namespace, "router", "rx_packets_total", "Inbound packets dispatched to a handler.", m.RxPacketCount.Load)
		c.counter(namespace, "router", "tx_packets_total", "Outbound packets dispatched to a handler.", m.TxPacketCount.Load)
		c.counter(namespace, "router", "routing_failures_total", "Packets dropped for lack of a handler.", m.RoutingFailureCount.Load)
		c.counter(namespace, "router", "mailbox_overflows_total", "Packets rejected by a full mailbox.", m.MailboxOverflowCount.Load)
		c.counter(namespace, "router", "dispatch_overruns_total", "Handler calls exceeding the dispatch budget.", m.DispatchOverrunCount.Load)
		c.counter(namespace, "router", "handler_panics_total", "Handler calls that panicked.", m.HandlerPanicCount.Load)
		c.counter(namespace, "router", "link_failures_total", "Transmit handler calls that did not succeed.", m.LinkFailureCount.Load)
		c.gauge(namespace, "router", "rx_queue_length", "Packets waiting in the inbound mailbox.", func() float64 {
			return float64(r.RxQueueLen())
		})
		c.gauge(namespace, "router", "tx_queue_length", "Packets waiting in the outbound mailbox.", func() float64 {
			return float64(r.TxQueueLen())
		})
		c.gauge(namespace, "router", "open_ports", "Ports with at least one handler.", func() float64 {
			return float64(r.NumOpenPorts())
		})
	}

	if rc := src.Receiver; rc != nil {
		m := rc.Metrics()
		c.counter(namespace, "link", "wakeups_total", "Interrupts consumed by the reception worker.", m.Wakeups.Load)
		c.counter(namespace, "link", "false_triggers_total", "Wake-ups without a pending frame.", m.FalseTriggers.Load)
		c.counter(namespace, "link", "delivered_total", "Frames delivered to the router.", m.Delivered.Load)
		c.counter(namespace, "link", "dropped_total", "Frames dropped by the reception worker.", m.Dropped.Load)
	}

	if p := src.Protocol; p != nil {
		m := p.Metrics()
		c.counter(namespace, "protocol", "frames_total", "Forward frames accepted.", m.FrameCount.Load)
		c.counter(namespace, "protocol", "addressed_frames_total", "Forward frames carrying this robot's uid.", m.AddressedCount.Load)
		c.counter(namespace, "protocol", "rejected_frames_total", "Forward frames too short to decode.", m.RejectedCount.Load)
		c.counter(namespace, "protocol", "replies_total", "Replies handed to the router.", m.ReplyCount.Load)
		c.counter(namespace, "protocol", "reply_errors_total", "Replies refused by the router.", m.ReplyErrCount.Load)
		c.counter(namespace, "protocol", "timeouts_total", "Connected to disconnected transitions.", m.TimeoutCount.Load)
		c.gauge(namespace, "protocol", "state", "Protocol state: 0 stopped, 1 disconnected, 2 connected.", func() float64 {
			return float64(p.State())
		})
	}

	return c
}

func (c *Collector) counter(ns, subsystem, name, help string, fn func() uint64) {
	c.collectors = append(c.collectors, prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: ns,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, func() float64 { return float64(fn()) }))
}

func (c *Collector) gauge(ns, subsystem, name, help string, fn func() float64) {
	c.collectors = append(c.collectors, prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: ns,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, fn))
}

// Register registers every collector with reg. Collectors already registered are skipped.
func (c *Collector) Register(reg prometheus.Registerer) error {
	for _, col := range c.collectors {
		if err := reg.Register(col); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}

	return nil
}

// Unregister removes every collector from reg.
func (c *Collector) Unregister(reg prometheus.Registerer) {
	for _, col := range c.collectors {
		reg.Unregister(col)
	}
}
