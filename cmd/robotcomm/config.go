package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/arloliu/go-robocomm/logger"
	"github.com/arloliu/go-robocomm/protocol"
	"github.com/arloliu/go-robocomm/router"
	"github.com/arloliu/go-robocomm/rtp"
)

const (
	driverLoopback = "loopback"
	driverDW1000   = "dw1000"
)

type radioConfig struct {
	Driver  string
	SPIPort string
	CSPin   string
	IRQPin  string
	SPIHz   int64
}

type protocolConfig struct {
	Timeout        time.Duration
	SlotDelay      time.Duration
	ReplyBaseDelay time.Duration
}

type routerConfig struct {
	RxQueueSize    int
	TxQueueSize    int
	DispatchBudget time.Duration
}

// serviceConfig is the runtime configuration of the daemon.
type serviceConfig struct {
	UID         uint8
	LogLevel    logger.Level
	ConsoleLog  bool
	MetricsAddr string
	Radio       radioConfig
	Protocol    protocolConfig
	Router      routerConfig
}

func defaultServiceConfig() serviceConfig {
	return serviceConfig{
		UID:         rtp.InvalidRobotUID,
		LogLevel:    logger.InfoLevel,
		MetricsAddr: ":9102",
		Radio: radioConfig{
			Driver: driverLoopback,
			CSPin:  "GPIO8",
			IRQPin: "GPIO25",
			SPIHz:  2_000_000,
		},
		Protocol: protocolConfig{
			Timeout:        protocol.DefaultTimeoutInterval,
			SlotDelay:      protocol.DefaultSlotDelay,
			ReplyBaseDelay: protocol.DefaultReplyBaseDelay,
		},
		Router: routerConfig{
			RxQueueSize:    router.DefaultQueueSize,
			TxQueueSize:    router.DefaultQueueSize,
			DispatchBudget: router.DefaultDispatchBudget,
		},
	}
}

// robotcomm config.toml key mapping.
type fileConfig struct {
	UID         int    `toml:"uid"`
	LogLevel    string `toml:"log_level"`
	ConsoleLog  bool   `toml:"console_log"`
	MetricsAddr string `toml:"metrics_addr"`
	Radio       struct {
		Driver  string `toml:"driver"`
		SPIPort string `toml:"spi_port"`
		CSPin   string `toml:"cs_pin"`
		IRQPin  string `toml:"irq_pin"`
		SPIHz   int64  `toml:"spi_hz"`
	} `toml:"radio"`
	Protocol struct {
		Timeout        string `toml:"timeout"`
		SlotDelay      string `toml:"slot_delay"`
		ReplyBaseDelay string `toml:"reply_base_delay"`
	} `toml:"protocol"`
	Router struct {
		RxQueueSize    int    `toml:"rx_queue_size"`
		TxQueueSize    int    `toml:"tx_queue_size"`
		DispatchBudget string `toml:"dispatch_budget"`
	} `toml:"router"`
}

// loadServiceConfig reads path and overlays the keys it defines on the defaults.
func loadServiceConfig(path string) (serviceConfig, error) {
	cfg := defaultServiceConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return serviceConfig{}, fmt.Errorf("load robotcomm config: %w", err)
	}

	if meta.IsDefined("uid") {
		if raw.UID < 0 || raw.UID > 0xFF {
			return serviceConfig{}, fmt.Errorf("uid %d out of range [0, 255]", raw.UID)
		}
		cfg.UID = uint8(raw.UID)
	}
	if meta.IsDefined("log_level") {
		lvl, err := logger.ParseLevel(strings.TrimSpace(raw.LogLevel))
		if err != nil {
			return serviceConfig{}, fmt.Errorf("parse log_level: %w", err)
		}
		cfg.LogLevel = lvl
	}
	if meta.IsDefined("console_log") {
		cfg.ConsoleLog = raw.ConsoleLog
	}
	if meta.IsDefined("metrics_addr") {
		cfg.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)
	}

	if meta.IsDefined("radio", "driver") {
		cfg.Radio.Driver = strings.ToLower(strings.TrimSpace(raw.Radio.Driver))
	}
	if meta.IsDefined("radio", "spi_port") {
		cfg.Radio.SPIPort = strings.TrimSpace(raw.Radio.SPIPort)
	}
	if meta.IsDefined("radio", "cs_pin") {
		cfg.Radio.CSPin = strings.TrimSpace(raw.Radio.CSPin)
	}
	if meta.IsDefined("radio", "irq_pin") {
		cfg.Radio.IRQPin = strings.TrimSpace(raw.Radio.IRQPin)
	}
	if meta.IsDefined("radio", "spi_hz") {
		cfg.Radio.SPIHz = raw.Radio.SPIHz
	}

	durations := []struct {
		key []string
		raw string
		dst *time.Duration
	}{
		{[]string{"protocol", "timeout"}, raw.Protocol.Timeout, &cfg.Protocol.Timeout},
		{[]string{"protocol", "slot_delay"}, raw.Protocol.SlotDelay, &cfg.Protocol.SlotDelay},
		{[]string{"protocol", "reply_base_delay"}, raw.Protocol.ReplyBaseDelay, &cfg.Protocol.ReplyBaseDelay},
		{[]string{"router", "dispatch_budget"}, raw.Router.DispatchBudget, &cfg.Router.DispatchBudget},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key...) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return serviceConfig{}, fmt.Errorf("parse %s: %w", strings.Join(d.key, "."), err)
		}
		*d.dst = v
	}

	if meta.IsDefined("router", "rx_queue_size") {
		cfg.Router.RxQueueSize = raw.Router.RxQueueSize
	}
	if meta.IsDefined("router", "tx_queue_size") {
		cfg.Router.TxQueueSize = raw.Router.TxQueueSize
	}

	if err := cfg.validate(); err != nil {
		return serviceConfig{}, err
	}

	return cfg, nil
}

func (cfg serviceConfig) validate() error {
	switch cfg.Radio.Driver {
	case driverLoopback, driverDW1000:
	default:
		return fmt.Errorf("unknown radio driver %q", cfg.Radio.Driver)
	}

	if cfg.Radio.Driver == driverDW1000 {
		if cfg.Radio.CSPin == "" || cfg.Radio.IRQPin == "" {
			return errors.New("radio cs_pin and irq_pin are required for dw1000")
		}
		if cfg.Radio.SPIHz <= 0 {
			return errors.New("radio spi_hz must be positive")
		}
	}

	return nil
}
