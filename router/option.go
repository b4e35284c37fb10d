package router

import (
	"time"

	"github.com/arloliu/go-robocomm/logger"
)

const (
	// DefaultQueueSize is the mailbox capacity of each direction.
	DefaultQueueSize = 3
	// DefaultDispatchBudget is the handler latency above which a dispatch is reported as overrun.
	DefaultDispatchBudget = 5 * time.Millisecond
)

type config struct {
	rxQueueSize    int
	txQueueSize    int
	dispatchBudget time.Duration
	logger         logger.Logger
}

func newConfig(opts ...Option) (*config, error) {
	cfg := &config{
		rxQueueSize:    DefaultQueueSize,
		txQueueSize:    DefaultQueueSize,
		dispatchBudget: DefaultDispatchBudget,
		logger:         logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Option configures a Router.
type Option interface {
	apply(*config) error
}

type optFunc struct {
	name      string
	applyFunc func(*config) error
}

func (o *optFunc) apply(cfg *config) error { return o.applyFunc(cfg) }

func newOptFunc(name string, f func(*config) error) *optFunc {
	return &optFunc{name: name, applyFunc: f}
}

// WithRxQueueSize sets the inbound mailbox capacity.
//
// Defaults to 3.
func WithRxQueueSize(size int) Option {
	return newOptFunc("WithRxQueueSize", func(cfg *config) error {
		if size <= 0 {
			return ErrInvalidQueueSize
		}
		cfg.rxQueueSize = size

		return nil
	})
}

// WithTxQueueSize sets the outbound mailbox capacity.
//
// Defaults to 3.
func WithTxQueueSize(size int) Option {
	return newOptFunc("WithTxQueueSize", func(cfg *config) error {
		if size <= 0 {
			return ErrInvalidQueueSize
		}
		cfg.txQueueSize = size

		return nil
	})
}

// WithDispatchBudget sets the handler latency budget. Handlers running longer are logged at
// warning level and counted in Metrics.DispatchOverruns.
//
// Defaults to 5ms.
func WithDispatchBudget(d time.Duration) Option {
	return newOptFunc("WithDispatchBudget", func(cfg *config) error {
		if d <= 0 {
			return ErrInvalidBudget
		}
		cfg.dispatchBudget = d

		return nil
	})
}

// WithLogger sets the router logger.
func WithLogger(l logger.Logger) Option {
	return newOptFunc("WithLogger", func(cfg *config) error {
		if l != nil {
			cfg.logger = l
		}

		return nil
	})
}
