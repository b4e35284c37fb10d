package protocol

import (
	"time"

	"github.com/arloliu/go-robocomm/logger"
	"github.com/arloliu/go-robocomm/rtp"
)

const (
	// DefaultTimeoutInterval is how long the protocol stays Connected without a frame.
	DefaultTimeoutInterval = 2000 * time.Millisecond
	// DefaultSlotDelay is the reply delay added per slot index.
	DefaultSlotDelay = 2 * time.Millisecond
	// DefaultReplyBaseDelay is the reply delay of slot 0.
	DefaultReplyBaseDelay = 1 * time.Millisecond
)

type config struct {
	uid             uint8
	timeoutInterval time.Duration
	slotDelay       time.Duration
	replyBaseDelay  time.Duration
	responder       Responder
	logger          logger.Logger
}

// Option configures a Protocol.
type Option interface {
	apply(*config) error
}

type optFunc func(*config) error

func (f optFunc) apply(cfg *config) error { return f(cfg) }

func newConfig(opts ...Option) (*config, error) {
	cfg := &config{
		uid:             rtp.InvalidRobotUID,
		timeoutInterval: DefaultTimeoutInterval,
		slotDelay:       DefaultSlotDelay,
		replyBaseDelay:  DefaultReplyBaseDelay,
		logger:          logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// WithUID sets the robot identity matched against forward frames.
//
// Defaults to rtp.InvalidRobotUID, which matches no slot.
func WithUID(uid uint8) Option {
	return optFunc(func(cfg *config) error {
		cfg.uid = uid
		return nil
	})
}

// WithTimeoutInterval sets how long the protocol stays Connected after the last frame.
//
// Defaults to 2000ms.
func WithTimeoutInterval(d time.Duration) Option {
	return optFunc(func(cfg *config) error {
		if d <= 0 {
			return ErrInvalidInterval
		}
		cfg.timeoutInterval = d

		return nil
	})
}

// WithSlotDelay sets the reply delay added per slot index.
//
// Defaults to 2ms.
func WithSlotDelay(d time.Duration) Option {
	return optFunc(func(cfg *config) error {
		if d < 0 {
			return ErrInvalidInterval
		}
		cfg.slotDelay = d

		return nil
	})
}

// WithReplyBaseDelay sets the reply delay of slot 0.
//
// Defaults to 1ms.
func WithReplyBaseDelay(d time.Duration) Option {
	return optFunc(func(cfg *config) error {
		if d < 0 {
			return ErrInvalidInterval
		}
		cfg.replyBaseDelay = d

		return nil
	})
}

// WithResponder sets the callback producing reply payloads.
func WithResponder(fn Responder) Option {
	return optFunc(func(cfg *config) error {
		cfg.responder = fn
		return nil
	})
}

// WithLogger sets the protocol logger.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *config) error {
		if l != nil {
			cfg.logger = l
		}
		return nil
	})
}
