package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ProbeService is the service name the probe reports on, next to the
// server-wide "" entry.
const ProbeService = "meshtastic.exporter.Bridge"

// Probe serves the standard gRPC health protocol. It reports SERVING while
// the device link is up.
type Probe struct {
	ln     net.Listener
	srv    *grpc.Server
	health *health.Server
	logger *slog.Logger
}

func ListenProbe(addr string, logger *slog.Logger) (*Probe, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen probe endpoint %s: %w", addr, err)
	}
	hs := health.NewServer()
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	p := &Probe{ln: ln, srv: srv, health: hs, logger: logger}
	p.SetServing(false)
	return p, nil
}

func (p *Probe) Addr() net.Addr { return p.ln.Addr() }

func (p *Probe) SetServing(up bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if up {
		status = healthpb.HealthCheckResponse_SERVING
	}
	p.health.SetServingStatus("", status)
	p.health.SetServingStatus(ProbeService, status)
}

// Serve blocks until ctx is cancelled.
func (p *Probe) Serve(ctx context.Context) error {
	p.logger.Info("probe endpoint listening", "addr", p.ln.Addr().String())
	go func() {
		<-ctx.Done()
		p.health.Shutdown()
		p.srv.GracefulStop()
	}()

	if err := p.srv.Serve(p.ln); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve probe endpoint: %w", err)
	}
	return nil
}

// Close stops the server and releases the listener, whether or not Serve ran.
func (p *Probe) Close() {
	p.srv.Stop()
	_ = p.ln.Close()
}
