package bridge

import (
	"context"
	"log/slog"
	"time"

	"meshtastic-exporter/internal/meshproto"
	"meshtastic-exporter/internal/model"
)

type State int

const (
	StateRunning State = iota
	StateShuttingDown
)

func (s State) String() string {
	if s == StateShuttingDown {
		return "shutting_down"
	}
	return "running"
}

// Dispatcher applies one inbound envelope. *dispatch.Dispatcher implements it.
type Dispatcher interface {
	Dispatch(*meshproto.FromRadio)
}

type heartbeatObserver interface {
	HeartbeatQueued()
}

type supervisorConfig struct {
	heartbeatInterval time.Duration
	loopPause         time.Duration
	link              string
}

// Supervisor drains the worker queue, keeps the device alive with
// heartbeats and decides when the process stops.
type Supervisor struct {
	cfg        supervisorConfig
	inbound    <-chan model.IPCMessage
	outbound   chan<- model.IPCMessage
	workerDone <-chan error
	dispatcher Dispatcher
	deadman    *Deadman
	health     *HealthStatus
	heartbeats heartbeatObserver
	logger     *slog.Logger
	now        func() time.Time

	state         State
	lastHeartbeat time.Time
}

func newSupervisor(
	cfg supervisorConfig,
	queues model.Queues,
	workerDone <-chan error,
	dispatcher Dispatcher,
	deadman *Deadman,
	health *HealthStatus,
	heartbeats heartbeatObserver,
	logger *slog.Logger,
	now func() time.Time,
) *Supervisor {
	return &Supervisor{
		cfg:           cfg,
		inbound:       queues.Inbound,
		outbound:      queues.Outbound,
		workerDone:    workerDone,
		dispatcher:    dispatcher,
		deadman:       deadman,
		health:        health,
		heartbeats:    heartbeats,
		logger:        logger,
		now:           now,
		state:         StateRunning,
		lastHeartbeat: now(),
	}
}

func (s *Supervisor) State() State { return s.state }

// Run returns nil for a clean shutdown (signal, deadman, heartbeat failure)
// and a *WorkerExitError when the connection worker stops.
func (s *Supervisor) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.loopPause)
	defer ticker.Stop()

	inbound := s.inbound
	for {
		select {
		case <-ctx.Done():
			s.state = StateShuttingDown
			return nil
		case err := <-s.workerDone:
			return s.workerExited(err)
		case msg, ok := <-inbound:
			if !ok {
				inbound = nil
				continue
			}
			s.handle(msg)
		case <-ticker.C:
			if s.tick() == StateShuttingDown {
				return nil
			}
		}
	}
}

func (s *Supervisor) handle(msg model.IPCMessage) {
	now := s.now()
	s.deadman.Reset(now)
	if msg.Kind != model.IPCFromRadio || msg.FromRadio == nil {
		s.logger.Warn("unexpected message from the connection worker", "kind", msg.Kind)
		return
	}
	s.health.MarkFrame(now)
	s.dispatcher.Dispatch(msg.FromRadio)
}

// tick runs the timer checks: heartbeat first, then the deadman.
func (s *Supervisor) tick() State {
	now := s.now()

	if now.Sub(s.lastHeartbeat) > s.cfg.heartbeatInterval {
		select {
		case s.outbound <- model.ToRadio(meshproto.NewHeartbeat()):
			s.lastHeartbeat = now
			s.health.MarkHeartbeat(now)
			s.heartbeats.HeartbeatQueued()
			s.logger.Debug("heartbeat queued", "health", s.health.Snapshot())
		default:
			s.logger.Error("could not queue heartbeat, shutting down", "link", s.cfg.link)
			s.state = StateShuttingDown
			return s.state
		}
	}

	if s.deadman.Expired(now) {
		s.logger.Error("deadman timer elapsed, shutting down",
			"idle", s.deadman.Idle(now).Round(time.Second),
			"link", s.cfg.link,
		)
		s.state = StateShuttingDown
	}
	return s.state
}

func (s *Supervisor) workerExited(err error) error {
	s.state = StateShuttingDown
	if err == nil {
		s.logger.Error("connection worker exited gracefully, which should not happen", "link", s.cfg.link)
	} else {
		s.logger.Error("lost connection to meshtastic device", "link", s.cfg.link, "error", err)
	}
	return &WorkerExitError{Link: s.cfg.link, Err: err}
}
