package link

import "github.com/arloliu/go-robocomm/rtp"

// Link is the capability set a radio driver exposes to the router.
type Link interface {
	// Reset soft-resets the hardware. It is idempotent; failures are logged by the driver.
	Reset()
	// SelfTest checks the device identity. On failure IsConnected stays false.
	SelfTest() error
	// IsConnected reports whether the driver passed its self-test. It never blocks.
	IsConnected() bool
	// Send transmits one packet. It returns Failure without touching hardware when the
	// driver never initialized.
	Send(pkt *rtp.Packet) Result
	// Receive returns the payload of the pending frame with link framing stripped, or an
	// empty slice when nothing is available. The hardware is left listening afterwards.
	Receive() []byte
}

// Deliverer accepts decoded inbound packets.
type Deliverer interface {
	Deliver(pkt rtp.Packet) error
}

// DelivererFunc adapts a function to Deliverer.
type DelivererFunc func(pkt rtp.Packet) error

func (f DelivererFunc) Deliver(pkt rtp.Packet) error {
	return f(pkt)
}
