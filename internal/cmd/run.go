package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sharkwire/kbbridge/bridge"
	"github.com/sharkwire/kbbridge/internal/log"
	"github.com/sharkwire/kbbridge/internal/monitor"
	"github.com/sharkwire/kbbridge/internal/server/api"
	"github.com/sharkwire/kbbridge/internal/server/api/handler"
	"github.com/sharkwire/kbbridge/internal/server/httpstatus"
	"github.com/sharkwire/kbbridge/kbbus"
	"github.com/sharkwire/kbbridge/link"
	"github.com/sharkwire/kbbridge/source"
	"github.com/sharkwire/kbbridge/source/stream"
	"github.com/sharkwire/kbbridge/source/terminal"
)

// BusConfig represents the bus section of the run command configuration.
type BusConfig struct {
	Kind        string        `help:"Bus output: sim logs every byte the simulated console receives, none clocks bytes out silently" enum:"sim,none" default:"sim" env:"KBBRIDGE_BUS"`
	ClockPeriod time.Duration `help:"Simulated console clock period" default:"100us" env:"KBBRIDGE_BUS_CLOCK_PERIOD"`
}

type Run struct {
	Bridge  bridge.Config     `embed:"" prefix:"bridge."`
	Source  source.Config     `embed:"" prefix:"source."`
	Bus     BusConfig         `embed:"" prefix:"bus."`
	API     api.ServerConfig  `embed:"" prefix:"api."`
	HTTP    httpstatus.Config `embed:"" prefix:"http."`
	Monitor monitor.Config    `embed:"" prefix:"monitor."`
}

// Run is called by Kong when the run command is executed.
func (r *Run) Run(logger *slog.Logger, rawLogger log.RawLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return r.StartBridge(ctx, logger, rawLogger)
}

// StartBridge wires the bridge, input source and servers and blocks until
// ctx is done or the source ends.
func (r *Run) StartBridge(ctx context.Context, logger *slog.Logger, rawLogger log.RawLogger) error {
	if r.Bus.ClockPeriod <= 0 {
		return fmt.Errorf("bus clock period must be positive, got %s", r.Bus.ClockPeriod)
	}
	// Typed keystrokes shorter than a tick can be pressed and released
	// between two scans and never reach the bus.
	if (r.Source.Kind == "terminal" || r.Source.Kind == "serial") && r.Source.Hold < r.Bridge.Tick {
		return fmt.Errorf("source hold %s is shorter than the bridge tick %s", r.Source.Hold, r.Bridge.Tick)
	}

	console := kbbus.NewConsole()
	if r.Bus.Kind == "sim" {
		busLogger := logger.With("component", "bus")
		console.OnByte = func(b byte) {
			rawLogger.Log(log.DirBus, []byte{b})
			busLogger.Debug("console received", "scancode", fmt.Sprintf("%02X", b))
		}
	}
	console.OnFrameError = func(err error) {
		logger.Warn("bus framing error", "error", err)
	}

	b, err := bridge.New(r.Bridge, console, logger.With("component", "bridge"))
	if err != nil {
		return err
	}
	session := link.New(b.Tracker(), logger.With("component", "link"), rawLogger)

	src, err := source.New(r.Source, logger)
	if err != nil {
		return err
	}

	logger.Info("Starting kbbridge", "source", r.Source.Kind, "bus", r.Bus.Kind)

	var apiSrv *api.Server
	if r.API.Addr != "" {
		apiSrv = api.New(r.API.Addr, r.API, logger.With("component", "api"))
		rt := apiSrv.Router()
		rt.Register("ping", handler.Ping())
		rt.Register("status", handler.Status(b, session))
		rt.Register("link/reset", handler.LinkReset(session))
		rt.Register("link/battery", handler.LinkBattery(session))
		rt.RegisterStream(stream.Route, stream.Handler(session))
		rt.RegisterStream(stream.Route+"/{name}", stream.Handler(session))
		if err := apiSrv.Start(); err != nil {
			logger.Error("failed to start API server", "error", err)
			return err
		}
		defer apiSrv.Close()
	}

	var httpSrv *httpstatus.Server
	if r.HTTP.Addr != "" {
		reg := prometheus.NewRegistry()
		if err := b.RegisterMetrics(reg); err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
		httpSrv = httpstatus.New(r.HTTP.Addr, b, session, reg, logger.With("component", "http"))
		if err := httpSrv.Start(); err != nil {
			logger.Error("failed to start HTTP status server", "error", err)
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = httpSrv.Shutdown(shutdownCtx)
		}()
	}

	if r.Monitor.Interval > 0 {
		m, err := monitor.New(r.Monitor, b, session, logger.With("component", "monitor"))
		if err != nil {
			return err
		}
		m.Start()
		defer func() { _ = m.Stop() }()
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		console.Run(runCtx, b.Transmitter(), r.Bus.ClockPeriod)
	}()
	go func() {
		defer wg.Done()
		_ = b.Run(runCtx)
	}()

	srcErr := src.Run(runCtx, session)
	cancel()
	wg.Wait()

	if _, was := session.ForceClose(); was {
		logger.Info("keyboard link closed on shutdown")
	}

	switch {
	case srcErr == nil, errors.Is(srcErr, context.Canceled), errors.Is(srcErr, terminal.ErrInterrupted):
		logger.Info("kbbridge stopped")
		return nil
	default:
		return fmt.Errorf("input source: %w", srcErr)
	}
}
