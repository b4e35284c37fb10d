// Package comm brings up the communication stack: router, default ports and the reception
// worker of the radio link.
package comm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-robocomm/link"
	"github.com/arloliu/go-robocomm/logger"
	"github.com/arloliu/go-robocomm/router"
	"github.com/arloliu/go-robocomm/rtp"
)

// DefaultReadyTimeout bounds the wait for the router workers during Initialize.
const DefaultReadyTimeout = time.Second

// ErrNoInterrupt is returned when a connected radio has no interrupt source.
var ErrNoInterrupt = errors.New("comm: no interrupt source for radio")

type interruptSource interface {
	Interrupt() *link.SignalInterrupt
}

type config struct {
	irq          link.Interrupt
	readyTimeout time.Duration
	routerOpts   []router.Option
	logger       logger.Logger
}

// Option configures Initialize.
type Option func(*config)

// WithInterrupt sets the "data ready" source of the radio. Radios exposing their own
// software interrupt, such as link.Loopback, do not need it.
func WithInterrupt(irq link.Interrupt) Option {
	return func(cfg *config) { cfg.irq = irq }
}

// WithReadyTimeout bounds the wait for router readiness.
func WithReadyTimeout(d time.Duration) Option {
	return func(cfg *config) { cfg.readyTimeout = d }
}

// WithRouterOptions passes options to router.New.
func WithRouterOptions(opts ...router.Option) Option {
	return func(cfg *config) { cfg.routerOpts = append(cfg.routerOpts, opts...) }
}

// WithLogger sets the logger of the stack and its components.
func WithLogger(l logger.Logger) Option {
	return func(cfg *config) {
		if l != nil {
			cfg.logger = l
		}
	}
}

// Stack is a running communication stack.
type Stack struct {
	Router   *router.Router
	Radio    link.Link
	Receiver *link.Receiver // nil without a connected radio

	logger logger.Logger
}

// Initialize creates the router and opens the default ports.
//
// The LINK port is always open: its transmit handler feeds the packet straight back into
// the router, so link-layer tests run without hardware. When radio is connected the LEGACY
// and PING ports are opened on it, the reception worker is started and Initialize waits for
// the router workers. Without a connected radio the stack is returned with the LINK port
// only.
func Initialize(ctx context.Context, radio link.Link, opts ...Option) (*Stack, error) {
	cfg := &config{readyTimeout: DefaultReadyTimeout, logger: logger.GetLogger()}
	for _, opt := range opts {
		opt(cfg)
	}
	l := cfg.logger.With("component", "comm")

	routerOpts := append([]router.Option{router.WithLogger(cfg.logger)}, cfg.routerOpts...)
	r, err := router.New(ctx, routerOpts...)
	if err != nil {
		return nil, err
	}
	s := &Stack{Router: r, Radio: radio, logger: l}

	r.Register(rtp.PortLink, s.linkRx, s.linkTx)

	if radio == nil || !radio.IsConnected() {
		l.Error("no radio interface found")
		return s, nil
	}
	l.Info("radio interface ready")

	irq := cfg.irq
	if irq == nil {
		if src, ok := radio.(interruptSource); ok {
			irq = src.Interrupt()
		}
	}
	if irq == nil {
		r.Stop()
		return nil, ErrNoInterrupt
	}

	r.Register(rtp.PortLegacy, s.legacyRx, radio.Send)
	r.Register(rtp.PortPing, s.pingRx, radio.Send)
	l.Info("ports opened", "count", r.NumOpenPorts())

	s.Receiver, err = link.NewReceiver(radio, irq, r,
		link.WithReady(r.Ready()),
		link.WithLogger(cfg.logger),
	)
	if err == nil {
		err = s.Receiver.Start(ctx)
	}
	if err != nil {
		r.Stop()
		return nil, fmt.Errorf("comm: start receiver: %w", err)
	}

	if err := r.WaitReady(ctx, cfg.readyTimeout); err != nil {
		s.Close()
		return nil, fmt.Errorf("comm: router not ready: %w", err)
	}

	return s, nil
}

// Close stops the reception worker and the router.
func (s *Stack) Close() {
	if s.Receiver != nil {
		s.Receiver.Stop()
	}
	s.Router.Stop()
}

func (s *Stack) linkRx(pkt *rtp.Packet) {
	if len(pkt.Payload) == 0 {
		s.logger.Warn("empty packet on link port")
		return
	}
	s.logger.Debug("link rx", "size", len(pkt.Payload))
}

// linkTx loops the packet back into the router.
func (s *Stack) linkTx(pkt *rtp.Packet) link.Result {
	if len(pkt.Payload) == 0 {
		s.logger.Warn("empty packet sent on link port")
	}

	if err := s.Router.Deliver(pkt.Clone()); err != nil {
		return link.Failure
	}

	return link.Success
}

func (s *Stack) legacyRx(pkt *rtp.Packet) {
	if len(pkt.Payload) == 0 {
		s.logger.Warn("empty packet on legacy port")
		return
	}
	s.logger.Debug("legacy rx", "size", len(pkt.Payload))
}

// pingRx answers a ping with the same payload addressed to the base station.
func (s *Stack) pingRx(pkt *rtp.Packet) {
	reply := pkt.Clone()
	reply.Header.Address = rtp.BaseStationAddress
	if err := s.Router.Send(reply); err != nil {
		s.logger.Warn("ping reply not sent", "error", err)
	}
}
