// robotcomm runs the robot side of the radio link.
//
// It opens the configured radio, starts the packet router and answers the base station's
// control frames with the robot status in the reply slot of its UID.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/conn/physic"
	"periph.io/x/periph/conn/spi"
	"periph.io/x/periph/conn/spi/spireg"
	"periph.io/x/periph/host"

	"github.com/arloliu/go-robocomm/comm"
	"github.com/arloliu/go-robocomm/link"
	"github.com/arloliu/go-robocomm/link/dw1000"
	"github.com/arloliu/go-robocomm/logger"
	"github.com/arloliu/go-robocomm/metrics"
	"github.com/arloliu/go-robocomm/protocol"
	"github.com/arloliu/go-robocomm/router"
	"github.com/arloliu/go-robocomm/rtp"
	"github.com/arloliu/go-robocomm/spibus"
)

var log logger.Logger

// radioHandle is an opened radio and the resources to release with it.
type radioHandle struct {
	radio   link.Link
	irq     link.Interrupt
	closers []func() error
}

func (h *radioHandle) close() {
	for i := len(h.closers) - 1; i >= 0; i-- {
		if err := h.closers[i](); err != nil {
			log.Warn("failed to release radio resource", "error", err)
		}
	}
}

func openLoopback() *radioHandle {
	lb := link.NewLoopback(link.DefaultLoopbackDepth)
	return &radioHandle{radio: lb, closers: []func() error{func() error { lb.Close(); return nil }}}
}

func openDW1000(cfg radioConfig, uid uint8) (*radioHandle, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init host drivers: %w", err)
	}

	port, err := spireg.Open(cfg.SPIPort)
	if err != nil {
		return nil, fmt.Errorf("open spi port %q: %w", cfg.SPIPort, err)
	}
	h := &radioHandle{}

	bus, err := spibus.NewBus(port, spi.Mode0, 8)
	if err != nil {
		_ = port.Close()
		return nil, err
	}
	h.closers = append(h.closers, bus.Close)

	cs := gpioreg.ByName(cfg.CSPin)
	if cs == nil {
		h.close()
		return nil, fmt.Errorf("chip select pin %q not found", cfg.CSPin)
	}
	dev, err := spibus.NewDevice(bus, cs, spibus.WithFrequency(physic.Frequency(cfg.SPIHz)*physic.Hertz))
	if err != nil {
		h.close()
		return nil, err
	}

	radio, err := dw1000.New(dev, dw1000.WithLogger(log), dw1000.WithAddress(uid))
	if err != nil {
		h.close()
		return nil, err
	}
	// an absent chip leaves the radio disconnected; the stack still comes up with the LINK port
	if err := radio.Init(); err != nil {
		log.Error("radio init failed", "bus", bus.String(), "error", err)
	}
	h.radio = radio

	irqPin := gpioreg.ByName(cfg.IRQPin)
	if irqPin == nil {
		h.close()
		return nil, fmt.Errorf("irq pin %q not found", cfg.IRQPin)
	}
	irq, err := link.NewEdgeInterrupt(irqPin, gpio.PullDown, gpio.RisingEdge, 0)
	if err != nil {
		h.close()
		return nil, err
	}
	h.irq = irq
	h.closers = append(h.closers, irq.Close)

	return h, nil
}

func openRadio(cfg serviceConfig) (*radioHandle, error) {
	switch cfg.Radio.Driver {
	case driverDW1000:
		return openDW1000(cfg.Radio, cfg.UID)
	default:
		return openLoopback(), nil
	}
}

func statusSnapshot(uid uint8) func() rtp.RobotStatusMessage {
	return func() rtp.RobotStatusMessage {
		return rtp.RobotStatusMessage{UID: uid}
	}
}

func serveMetrics(addr string, src metrics.Sources) *http.Server {
	if addr == "" {
		return nil
	}

	if err := metrics.NewCollector("robocomm", src).Register(prometheus.DefaultRegisterer); err != nil {
		log.Error("failed to register metrics", "error", err)
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info("metrics server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server stopped", "error", err)
		}
	}()

	return srv
}

func run(cfg serviceConfig) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h, err := openRadio(cfg)
	if err != nil {
		return err
	}
	defer h.close()

	stackOpts := []comm.Option{
		comm.WithLogger(log),
		comm.WithRouterOptions(
			router.WithRxQueueSize(cfg.Router.RxQueueSize),
			router.WithTxQueueSize(cfg.Router.TxQueueSize),
			router.WithDispatchBudget(cfg.Router.DispatchBudget),
		),
	}
	if h.irq != nil {
		stackOpts = append(stackOpts, comm.WithInterrupt(h.irq))
	}

	stack, err := comm.Initialize(ctx, h.radio, stackOpts...)
	if err != nil {
		return err
	}
	defer stack.Close()

	proto, err := protocol.New(stack.Router, h.radio,
		protocol.WithUID(cfg.UID),
		protocol.WithTimeoutInterval(cfg.Protocol.Timeout),
		protocol.WithSlotDelay(cfg.Protocol.SlotDelay),
		protocol.WithReplyBaseDelay(cfg.Protocol.ReplyBaseDelay),
		protocol.WithResponder(protocol.NewStatusResponder(statusSnapshot(cfg.UID))),
		protocol.WithLogger(log),
	)
	if err != nil {
		return err
	}
	if err := proto.Start(); err != nil {
		return err
	}
	defer proto.Stop()

	srv := serveMetrics(cfg.MetricsAddr, metrics.Sources{
		Router:   stack.Router,
		Receiver: stack.Receiver,
		Protocol: proto,
	})

	log.Info("robot comm started", "uid", cfg.UID, "driver", cfg.Radio.Driver, "state", proto.State())

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("shutting down", "signal", sig.String())

	if srv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("metrics server shutdown", "error", err)
		}
	}

	return nil
}

func main() {
	configPath := flag.String("config", "config.toml", "path to the TOML config file")
	flag.Parse()

	cfg, err := loadServiceConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log = logger.NewSlogWithOptions(cfg.LogLevel, logger.WithConsole(cfg.ConsoleLog))
	logger.SetDefault(log)

	if err := run(cfg); err != nil {
		log.Error("robot comm exited", "error", err)
		os.Exit(1)
	}
}
