// Package link defines the contract between radio drivers and the packet router, and the
// interrupt-driven reception path that moves received frames from a driver into the router.
//
// A driver implements Link. Its "data ready" interrupt is modelled by an Interrupt; a
// Receiver goroutine waits on the Interrupt, calls Link.Receive from its own goroutine,
// decodes the bytes and hands the packet to a Deliverer. The interrupt source only signals,
// it never touches packet memory.
package link
