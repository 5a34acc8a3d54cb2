// Package bridge wires the device link, the metric registry and the HTTP
// and probe endpoints together and owns the process lifecycle.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"meshtastic-exporter/internal/config"
	"meshtastic-exporter/internal/dispatch"
	"meshtastic-exporter/internal/metrics"
	"meshtastic-exporter/internal/model"
	"meshtastic-exporter/internal/radio"
)

// DialFunc opens a device link for the configured connection.
type DialFunc func(ctx context.Context, conn model.Connection) (radio.Link, error)

type Bridge struct {
	cfg        config.Config
	logger     *slog.Logger
	registry   *prometheus.Registry
	series     *metrics.Registry
	exporter   *metrics.BridgeMetrics
	identity   *model.DeviceIdentity
	dispatcher *dispatch.Dispatcher
	health     *HealthStatus
	metricsSrv *metrics.Server
	probe      *Probe
	dial       DialFunc
	now        func() time.Time
}

type Option func(*Bridge)

func WithDialer(dial DialFunc) Option {
	return func(b *Bridge) {
		if dial != nil {
			b.dial = dial
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(b *Bridge) {
		if now != nil {
			b.now = now
		}
	}
}

// New binds the metrics and probe listeners. Nothing talks to the device
// until Run.
func New(cfg config.Config, logger *slog.Logger, opts ...Option) (*Bridge, error) {
	b := &Bridge{
		cfg:      cfg,
		logger:   logger,
		registry: prometheus.NewRegistry(),
		identity: model.NewDeviceIdentity(),
		health:   NewHealthStatus(),
		now:      time.Now,
	}
	b.dial = b.dialDevice
	for _, opt := range opts {
		opt(b)
	}

	b.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	b.series = metrics.NewRegistry(cfg.IdleTimeout, metrics.WithClock(b.now))
	if err := metrics.DeclareDeviceMetrics(b.series); err != nil {
		return nil, fmt.Errorf("declare device metrics: %w", err)
	}
	if err := b.registry.Register(b.series); err != nil {
		return nil, fmt.Errorf("register device metrics: %w", err)
	}
	b.exporter = metrics.NewBridgeMetrics(b.registry, cfg.Namespace)
	b.dispatcher = dispatch.New(b.series, b.identity, logger,
		dispatch.WithObserver(b.exporter),
		dispatch.WithClock(b.now),
	)

	srv, err := metrics.Listen(cfg.MetricsListenAddr(), b.registry, logger)
	if err != nil {
		return nil, err
	}
	b.metricsSrv = srv

	if addr := strings.TrimSpace(cfg.HealthAddr); addr != "" {
		probe, err := ListenProbe(addr, logger)
		if err != nil {
			_ = srv.Close()
			return nil, err
		}
		b.probe = probe
		b.health.OnLinkChange(probe.SetServing)
	}
	b.health.OnLinkChange(b.exporter.SetLinkUp)

	return b, nil
}

func (b *Bridge) dialDevice(ctx context.Context, conn model.Connection) (radio.Link, error) {
	s, err := radio.Dial(ctx, conn, b.cfg.DialTimeout, b.logger)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// MetricsAddr is the bound address of the metrics endpoint.
func (b *Bridge) MetricsAddr() string { return b.metricsSrv.Addr().String() }

// ProbeAddr is empty when no probe endpoint is configured.
func (b *Bridge) ProbeAddr() string {
	if b.probe == nil {
		return ""
	}
	return b.probe.Addr().String()
}

func (b *Bridge) Health() *HealthStatus { return b.health }

// Run blocks until the link is lost, the supervisor stops, or a signal
// arrives. A lost link comes back as an error matching ErrLinkLost.
func (b *Bridge) Run(ctx context.Context) error {
	b.logger.Info("starting meshtastic exporter",
		"version", config.Version,
		"link", b.cfg.Connection().String(),
		"metrics_addr", b.MetricsAddr(),
	)
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	runErrCh := make(chan error, 1)
	go func() {
		runErrCh <- b.run(runCtx)
	}()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var runErr error
	select {
	case runErr = <-runErrCh:
	case sig := <-sigCh:
		b.logger.Info("shutdown signal received, starting graceful shutdown", "signal", sig.String(), "timeout", b.cfg.ShutdownTimeout)
		cancelRun()

		graceTimer := time.NewTimer(b.cfg.ShutdownTimeout)
		defer graceTimer.Stop()

		select {
		case runErr = <-runErrCh:
		case sig2 := <-sigCh:
			b.logger.Warn("second signal received, forcing immediate shutdown", "signal", sig2.String())
			runErr = context.Canceled
		case <-graceTimer.C:
			b.logger.Warn("graceful shutdown timeout reached, forcing shutdown", "timeout", b.cfg.ShutdownTimeout)
			runErr = context.DeadlineExceeded
		}
	}

	b.shutdown()

	if runErr != nil && !errors.Is(runErr, context.Canceled) && !errors.Is(runErr, context.DeadlineExceeded) {
		return runErr
	}
	b.logger.Info("meshtastic exporter stopped")
	return nil
}

// Close releases the listeners of a bridge that never ran.
func (b *Bridge) Close() { b.shutdown() }

func BuildLogger(cfg config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	hOpts := &slog.HandlerOptions{Level: level}
	if cfg.LogJSON {
		return slog.New(slog.NewJSONHandler(os.Stdout, hOpts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, hOpts))
}
