// Package radio owns the device link: the transport, the framed stream on
// top of it and the worker that shuttles envelopes between the stream and
// the IPC queues.
package radio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"meshtastic-exporter/internal/meshproto"
	"meshtastic-exporter/internal/model"
)

var (
	ErrQueueFull    = errors.New("supervisor queue full")
	ErrQueueClosed  = errors.New("worker queue closed")
	ErrStreamClosed = errors.New("device stream closed")
)

// Link is a configured device stream. *Stream implements it.
type Link interface {
	Configure(configID uint32) error
	Decoded() <-chan *meshproto.FromRadio
	Err() error
	Send(*meshproto.ToRadio) error
	Close() error
}

// Worker forwards decoded envelopes to the supervisor and outbound
// envelopes to the device. Any return from Run means the link is unusable.
type Worker struct {
	link        Link
	inbound     chan<- model.IPCMessage
	outbound    <-chan model.IPCMessage
	sendTimeout time.Duration
	logger      *slog.Logger
	configID    func() uint32
}

func NewWorker(link Link, queues model.Queues, sendTimeout time.Duration, logger *slog.Logger) *Worker {
	if sendTimeout <= 0 {
		sendTimeout = 5 * time.Second
	}
	return &Worker{
		link:        link,
		inbound:     queues.Inbound,
		outbound:    queues.Outbound,
		sendTimeout: sendTimeout,
		logger:      logger,
		configID:    randomConfigID,
	}
}

// randomConfigID never returns 0: a zero want_config_id is not sent.
func randomConfigID() uint32 {
	for {
		if id := rand.Uint32(); id != 0 {
			return id
		}
	}
}

func (w *Worker) Run(ctx context.Context) error {
	id := w.configID()
	if err := w.link.Configure(id); err != nil {
		return fmt.Errorf("configure device: %w", err)
	}
	w.logger.Info("connected to meshtastic node", "config_id", id)

	decoded := w.link.Decoded()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-decoded:
			if !ok {
				if err := w.link.Err(); err != nil {
					return fmt.Errorf("%w: %w", ErrStreamClosed, err)
				}
				return ErrStreamClosed
			}
			if err := w.forward(ctx, m); err != nil {
				return err
			}
		case msg, ok := <-w.outbound:
			if !ok {
				return ErrQueueClosed
			}
			if msg.Kind != model.IPCToRadio || msg.ToRadio == nil {
				w.logger.Warn("unexpected message on the device queue", "kind", msg.Kind)
				continue
			}
			if err := w.link.Send(msg.ToRadio); err != nil {
				return fmt.Errorf("send to device: %w", err)
			}
		}
	}
}

// forward hands one envelope to the supervisor. A queue that stays full
// for sendTimeout is fatal; envelopes are never dropped.
func (w *Worker) forward(ctx context.Context, m *meshproto.FromRadio) error {
	msg := model.FromRadio(m)
	select {
	case w.inbound <- msg:
		return nil
	default:
	}

	t := time.NewTimer(w.sendTimeout)
	defer t.Stop()
	select {
	case w.inbound <- msg:
		return nil
	case <-ctx.Done():
		return nil
	case <-t.C:
		return fmt.Errorf("%w after %s", ErrQueueFull, w.sendTimeout)
	}
}

// Dial opens the configured transport and wraps it in a Stream.
func Dial(ctx context.Context, conn model.Connection, dialTimeout time.Duration, logger *slog.Logger) (*Stream, error) {
	m := NewConnManager(conn, dialTimeout, logger)
	if err := m.Connect(ctx); err != nil {
		return nil, err
	}
	return NewStream(m, conn.Kind == model.ConnectionSerial, logger), nil
}
