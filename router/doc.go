// Package router multiplexes one radio link across a fixed set of logical ports.
//
// Each port carries an optional receive handler and an optional transmit handler. Packets
// enter the router through Deliver (inbound, from the link) and Send (outbound, from
// application code) and are queued on one bounded mailbox per direction. Two worker
// goroutines drain the mailboxes in FIFO order and invoke the handler of the packet's port.
//
// Routing failures (no handler for the port) are logged at warning level and reported to the
// caller; a full mailbox is reported as ErrMailboxFull and logged at error level. Neither
// disturbs the packets already queued.
//
// The workers stay parked until the first port is registered. The inbound worker starts
// first and releases the outbound worker, so no transmit handler runs before the router has
// begun accepting inbound traffic.
//
//	r := router.New(ctx)
//	defer r.Stop()
//
//	r.Register(rtp.PortPing, func(pkt *rtp.Packet) {
//	    // handle inbound packet
//	}, radio.Send)
package router
