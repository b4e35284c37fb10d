package link

import (
	"context"
	"errors"
	"fmt"
	"time"

	"periph.io/x/periph/conn/gpio"
)

// DefaultEdgePollInterval bounds how long EdgeInterrupt.Wait goes without checking its context.
const DefaultEdgePollInterval = 50 * time.Millisecond

// ErrNilPin is returned when an edge interrupt is created without a pin.
var ErrNilPin = errors.New("link: nil interrupt pin")

// Interrupt is a "data ready" signal consumed by exactly one reception goroutine.
type Interrupt interface {
	// Wait blocks until the interrupt fires or ctx is done.
	Wait(ctx context.Context) error
}

// SignalInterrupt is a software interrupt with one pending slot.
//
// Trigger never blocks. Triggers issued while a wake-up is already pending collapse into
// it, so the consumer wakes once per pending signal and a signal raised during processing
// is kept for the next Wait.
type SignalInterrupt struct {
	ch chan struct{}
}

func NewSignalInterrupt() *SignalInterrupt {
	return &SignalInterrupt{ch: make(chan struct{}, 1)}
}

// Trigger raises the interrupt.
func (s *SignalInterrupt) Trigger() {
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

// Pending reports whether a wake-up is waiting to be consumed.
func (s *SignalInterrupt) Pending() bool {
	return len(s.ch) > 0
}

func (s *SignalInterrupt) Wait(ctx context.Context) error {
	select {
	case <-s.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// EdgeInterrupt turns edges on a GPIO input into wake-ups.
type EdgeInterrupt struct {
	pin  gpio.PinIn
	poll time.Duration
}

// NewEdgeInterrupt configures pin for edge detection. A poll interval of zero uses
// DefaultEdgePollInterval.
func NewEdgeInterrupt(pin gpio.PinIn, pull gpio.Pull, edge gpio.Edge, poll time.Duration) (*EdgeInterrupt, error) {
	if pin == nil {
		return nil, ErrNilPin
	}
	if poll <= 0 {
		poll = DefaultEdgePollInterval
	}

	if err := pin.In(pull, edge); err != nil {
		return nil, fmt.Errorf("link: configure %s: %w", pin, err)
	}

	return &EdgeInterrupt{pin: pin, poll: poll}, nil
}

// Wait returns after the next edge. The pin is polled in slices of the poll interval so a
// cancelled ctx is noticed within one interval.
func (e *EdgeInterrupt) Wait(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if e.pin.WaitForEdge(e.poll) {
			return nil
		}
	}
}

// Close disables edge detection on the pin.
func (e *EdgeInterrupt) Close() error {
	return e.pin.In(gpio.PullNoChange, gpio.NoEdge)
}
