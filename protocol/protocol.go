// Package protocol implements the robot side of the time-slotted radio protocol.
//
// The base station broadcasts forward frames on the control port, each carrying up to
// rtp.MaxControlMessages control messages. A robot finds the message carrying its own UID;
// the index of that message is its reply slot. Every received frame keeps the protocol
// Connected and schedules one reply at ReplyBaseDelay + slot*SlotDelay, so robots sharing a
// frame answer one after another instead of colliding. Without frames for the timeout
// interval the protocol falls back to Disconnected.
package protocol

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-robocomm/link"
	"github.com/arloliu/go-robocomm/logger"
	"github.com/arloliu/go-robocomm/router"
	"github.com/arloliu/go-robocomm/rtp"
)

// Router is the part of the packet router the protocol uses.
type Router interface {
	Register(port rtp.Port, rx router.RxHandler, tx router.TxHandler)
	Close(port rtp.Port)
	Send(pkt rtp.Packet) error
}

// Responder builds the reply payload for a received frame. msg is the control message
// addressed to this robot, or nil when addressed is false. An empty result sends nothing.
type Responder func(msg *rtp.ControlMessage, addressed bool) []byte

// Reception describes the last accepted forward frame.
type Reception struct {
	At         time.Time
	Slot       int
	Addressed  bool
	ReplyDelay time.Duration
	Messages   int
}

// Metrics contains atomic metrics for the protocol.
// Metrics can be used as the value of a prometheus CounterFunc.
type Metrics struct {
	// FrameCount indicates the number of forward frames accepted.
	FrameCount atomic.Uint64
	// AddressedCount indicates the number of frames carrying this robot's UID.
	AddressedCount atomic.Uint64
	// RejectedCount indicates the number of frames too short to hold one control message.
	RejectedCount atomic.Uint64
	// ReplyCount indicates the number of replies handed to the router.
	ReplyCount atomic.Uint64
	// ReplyErrCount indicates the number of replies the router refused.
	ReplyErrCount atomic.Uint64
	// TimeoutCount indicates the number of Connected to Disconnected transitions.
	TimeoutCount atomic.Uint64
}

type addressSetter interface {
	SetAddress(addr uint8) error
}

// Protocol is the radio protocol state machine.
type Protocol struct {
	router Router
	link   link.Link
	cfg    *config
	logger logger.Logger
	state  *stateMgr

	mu           sync.Mutex
	uid          uint8
	responder    Responder
	reply        []byte
	replyTimer   *time.Timer
	timeoutTimer *time.Timer
	// gen invalidates timers armed before the last Stop or restart.
	replyGen   uint64
	timeoutGen uint64
	last       Reception

	metrics Metrics

	afterFunc func(d time.Duration, f func()) *time.Timer
}

// New creates a stopped protocol on r transmitting through l. When l supports SetAddress it
// is set to rtp.RobotAddress.
func New(r Router, l link.Link, opts ...Option) (*Protocol, error) {
	if r == nil {
		return nil, ErrRouterNil
	}
	if l == nil {
		return nil, ErrLinkNil
	}

	cfg, err := newConfig(opts...)
	if err != nil {
		return nil, err
	}

	p := &Protocol{
		router:    r,
		link:      l,
		cfg:       cfg,
		logger:    cfg.logger.With("component", "protocol"),
		state:     newStateMgr(),
		uid:       cfg.uid,
		responder: cfg.responder,
		afterFunc: time.AfterFunc,
	}

	if as, ok := l.(addressSetter); ok {
		if err := as.SetAddress(rtp.RobotAddress); err != nil {
			p.logger.Warn("set link address failed", "error", err)
		}
	}

	return p, nil
}

// Start registers the protocol on the control port and moves it to Disconnected.
func (p *Protocol) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.state.compareAndSet(Stopped, Disconnected) {
		return ErrInvalidTransition
	}

	p.router.Register(rtp.PortControl, p.HandlePacket, p.link.Send)
	p.logger.Info("radio protocol listening", "port", rtp.PortControl, "uid", p.uid)

	return nil
}

// Stop releases the control port, cancels pending timers and moves to Stopped.
// It does nothing on a protocol that is not running, so the control port of another
// owner is left alone.
func (p *Protocol) Stop() {
	p.mu.Lock()
	if p.State() == Stopped {
		p.mu.Unlock()
		return
	}
	p.router.Close(rtp.PortControl)
	p.stopTimersLocked()
	p.reply = nil
	p.state.set(Stopped)
	p.mu.Unlock()

	p.logger.Info("radio protocol stopped")
}

// State returns the current state.
func (p *Protocol) State() State {
	return p.state.get()
}

// WaitState blocks until the protocol reaches s or ctx is done.
func (p *Protocol) WaitState(ctx context.Context, s State) error {
	return p.state.wait(ctx, s)
}

// SetUID changes the robot identity. It applies from the next received frame.
func (p *Protocol) SetUID(uid uint8) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.uid = uid
}

func (p *Protocol) UID() uint8 {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.uid
}

// SetResponder replaces the reply callback.
func (p *Protocol) SetResponder(fn Responder) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.responder = fn
}

// LastReception returns the details of the last accepted frame.
func (p *Protocol) LastReception() Reception {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.last
}

// Metrics returns the protocol metrics.
func (p *Protocol) Metrics() *Metrics {
	return &p.metrics
}

// HandlePacket processes one forward frame. It is the receive handler of the control port.
func (p *Protocol) HandlePacket(pkt *rtp.Packet) {
	if p.State() == Stopped {
		return
	}

	msgs := rtp.DecodeControlFrame(pkt.Payload)
	if len(msgs) == 0 {
		p.metrics.RejectedCount.Add(1)
		p.logger.Warn("forward frame too short", "size", len(pkt.Payload))
		return
	}

	p.mu.Lock()
	uid := p.uid
	responder := p.responder
	p.mu.Unlock()

	slot := len(msgs)
	var msg *rtp.ControlMessage
	// an unset identity never matches, not even a sub-message carrying the sentinel
	for i := range msgs {
		if uid != rtp.InvalidRobotUID && msgs[i].UID == uid {
			slot = i
			msg = &msgs[i]
			break
		}
	}
	addressed := msg != nil
	delay := p.cfg.replyBaseDelay + time.Duration(slot)*p.cfg.slotDelay

	p.mu.Lock()
	if p.State() == Stopped {
		p.mu.Unlock()
		return
	}
	p.state.set(Connected)
	p.armTimeoutLocked()
	p.last = Reception{
		At:         time.Now(),
		Slot:       slot,
		Addressed:  addressed,
		ReplyDelay: delay,
		Messages:   len(msgs),
	}
	p.mu.Unlock()

	p.metrics.FrameCount.Add(1)
	if addressed {
		p.metrics.AddressedCount.Add(1)
	}

	if responder == nil {
		p.logger.Warn("no responder set, reply skipped")
		return
	}
	reply := responder(msg, addressed)
	if len(reply) == 0 {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.State() == Stopped {
		return
	}
	p.reply = reply
	p.armReplyLocked(delay)
}

func (p *Protocol) armTimeoutLocked() {
	if p.timeoutTimer != nil {
		p.timeoutTimer.Stop()
	}
	p.timeoutGen++
	gen := p.timeoutGen
	p.timeoutTimer = p.afterFunc(p.cfg.timeoutInterval, func() { p.onTimeout(gen) })
}

func (p *Protocol) armReplyLocked(delay time.Duration) {
	if p.replyTimer != nil {
		p.replyTimer.Stop()
	}
	p.replyGen++
	gen := p.replyGen
	p.replyTimer = p.afterFunc(delay, func() { p.onReply(gen) })
}

func (p *Protocol) stopTimersLocked() {
	if p.replyTimer != nil {
		p.replyTimer.Stop()
		p.replyTimer = nil
	}
	if p.timeoutTimer != nil {
		p.timeoutTimer.Stop()
		p.timeoutTimer = nil
	}
	p.replyGen++
	p.timeoutGen++
}

func (p *Protocol) onTimeout(gen uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if gen != p.timeoutGen {
		return
	}
	if p.state.compareAndSet(Connected, Disconnected) {
		p.metrics.TimeoutCount.Add(1)
		p.logger.Info("radio protocol disconnected", "timeout", p.cfg.timeoutInterval)
	}
}

func (p *Protocol) onReply(gen uint64) {
	p.mu.Lock()
	if gen != p.replyGen || p.State() == Stopped {
		p.mu.Unlock()
		return
	}
	payload := p.reply
	p.reply = nil
	p.mu.Unlock()

	if len(payload) == 0 {
		return
	}

	pkt := rtp.Packet{
		Header: rtp.Header{
			Address: rtp.BaseStationAddress,
			Port:    rtp.PortControl,
			Type:    rtp.TypeControl,
		},
		Payload: payload,
	}
	if err := p.router.Send(pkt); err != nil {
		p.metrics.ReplyErrCount.Add(1)
		p.logger.Warn("reply not sent", "error", err)
		return
	}
	p.metrics.ReplyCount.Add(1)
}

// NewStatusResponder returns a Responder that answers frames addressed to this robot with
// the status reported by fn, stamped with the matched UID.
func NewStatusResponder(fn func() rtp.RobotStatusMessage) Responder {
	return func(msg *rtp.ControlMessage, addressed bool) []byte {
		if !addressed || msg == nil {
			return nil
		}
		status := fn()
		status.UID = msg.UID

		return status.Bytes()
	}
}
