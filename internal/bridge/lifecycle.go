package bridge

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"meshtastic-exporter/internal/model"
	"meshtastic-exporter/internal/radio"
)

func (b *Bridge) run(ctx context.Context) error {
	conn := b.cfg.Connection()
	link, err := b.dial(ctx, conn)
	if err != nil {
		return fmt.Errorf("initial device connect: %w", err)
	}
	b.health.SetLinkUp(true)

	queues := model.NewQueues(b.cfg.QueueSize)
	worker := radio.NewWorker(link, queues, b.cfg.QueueSendTimeout, b.logger)

	// The worker outlives ctx so a signal is never mistaken for a lost link.
	workerCtx, cancelWorker := context.WithCancel(context.Background())
	workerDone := make(chan error, 1)
	go func() {
		workerDone <- worker.Run(workerCtx)
	}()
	defer func() {
		cancelWorker()
		if err := link.Close(); err != nil {
			b.logger.Warn("device link close failed", "error", err)
		}
		b.health.SetLinkUp(false)
	}()

	sup := newSupervisor(
		supervisorConfig{
			heartbeatInterval: b.cfg.HeartbeatInterval,
			loopPause:         b.cfg.LoopPause,
			link:              conn.String(),
		},
		queues,
		workerDone,
		b.dispatcher,
		NewDeadman(b.cfg.DeadmanTimeout, b.now()),
		b.health,
		b.exporter,
		b.logger,
		b.now,
	)

	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		return b.metricsSrv.Serve(gctx)
	})
	if b.probe != nil {
		g.Go(func() error {
			return b.probe.Serve(gctx)
		})
	}
	g.Go(func() error {
		defer stop()
		return sup.Run(gctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (b *Bridge) shutdown() {
	if err := b.metricsSrv.Close(); err != nil {
		b.logger.Warn("metrics endpoint close failed", "error", err)
	}
	if b.probe != nil {
		b.probe.Close()
	}
	b.health.SetLinkUp(false)
}
