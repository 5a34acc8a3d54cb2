package bridge

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meshtastic-exporter/internal/meshproto"
	"meshtastic-exporter/internal/model"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{t: time.Unix(1700000000, 0)} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type recordingDispatcher struct {
	mu   sync.Mutex
	seen []*meshproto.FromRadio
}

func (d *recordingDispatcher) Dispatch(m *meshproto.FromRadio) {
	d.mu.Lock()
	d.seen = append(d.seen, m)
	d.mu.Unlock()
}

func (d *recordingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}

type countingHeartbeats struct{ n int }

func (c *countingHeartbeats) HeartbeatQueued() { c.n++ }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type supervisorFixture struct {
	sup        *Supervisor
	clock      *fakeClock
	queues     model.Queues
	workerDone chan error
	dispatcher *recordingDispatcher
	deadman    *Deadman
	health     *HealthStatus
	heartbeats *countingHeartbeats
}

func newSupervisorFixture(t *testing.T, queueSize int) *supervisorFixture {
	t.Helper()
	f := &supervisorFixture{
		clock:      newFakeClock(),
		queues:     model.NewQueues(queueSize),
		workerDone: make(chan error, 1),
		dispatcher: &recordingDispatcher{},
		health:     NewHealthStatus(),
		heartbeats: &countingHeartbeats{},
	}
	f.deadman = NewDeadman(5*time.Minute, f.clock.Now())
	f.sup = newSupervisor(
		supervisorConfig{heartbeatInterval: 30 * time.Second, loopPause: time.Millisecond, link: "tcp://radio:4403"},
		f.queues,
		f.workerDone,
		f.dispatcher,
		f.deadman,
		f.health,
		f.heartbeats,
		discardLogger(),
		f.clock.Now,
	)
	return f
}

func TestSupervisorHandleDispatchesAndResetsDeadman(t *testing.T) {
	f := newSupervisorFixture(t, 4)
	f.clock.Advance(time.Minute)

	f.sup.handle(model.FromRadio(&meshproto.FromRadio{Kind: meshproto.PayloadMyInfo}))

	assert.Equal(t, 1, f.dispatcher.count())
	assert.Equal(t, f.clock.Now(), f.deadman.LastSeen())
	assert.Equal(t, uint64(1), f.health.Snapshot()["frames_handled"])
}

func TestSupervisorHandleIgnoresOutboundKind(t *testing.T) {
	f := newSupervisorFixture(t, 4)
	f.clock.Advance(time.Second)

	f.sup.handle(model.ToRadio(meshproto.NewHeartbeat()))

	assert.Zero(t, f.dispatcher.count())
	assert.Equal(t, f.clock.Now(), f.deadman.LastSeen())
}

func TestSupervisorHeartbeatAfterInterval(t *testing.T) {
	f := newSupervisorFixture(t, 4)

	f.clock.Advance(30 * time.Second)
	assert.Equal(t, StateRunning, f.sup.tick())
	assert.Empty(t, f.queues.Outbound, "no heartbeat at exactly the interval")

	f.clock.Advance(time.Millisecond)
	assert.Equal(t, StateRunning, f.sup.tick())
	require.Len(t, f.queues.Outbound, 1)
	msg := <-f.queues.Outbound
	assert.Equal(t, model.IPCToRadio, msg.Kind)
	require.NotNil(t, msg.ToRadio.Heartbeat)
	assert.Equal(t, 1, f.heartbeats.n)
	assert.Contains(t, f.health.Snapshot(), "last_heartbeat_at")

	f.clock.Advance(time.Second)
	f.sup.tick()
	assert.Empty(t, f.queues.Outbound, "interval restarts after a heartbeat")
}

func TestSupervisorHeartbeatQueueFullShutsDown(t *testing.T) {
	f := newSupervisorFixture(t, 1)
	f.queues.Outbound <- model.ToRadio(meshproto.NewHeartbeat())

	f.clock.Advance(31 * time.Second)
	assert.Equal(t, StateShuttingDown, f.sup.tick())
	assert.Zero(t, f.heartbeats.n)
}

func TestSupervisorDeadmanExpiry(t *testing.T) {
	f := newSupervisorFixture(t, 16)

	f.clock.Advance(5 * time.Minute)
	assert.Equal(t, StateRunning, f.sup.tick())

	f.clock.Advance(time.Second)
	assert.Equal(t, StateShuttingDown, f.sup.tick())
	assert.Equal(t, StateShuttingDown, f.sup.State())
}

func TestSupervisorRunStopsOnContext(t *testing.T) {
	f := newSupervisorFixture(t, 4)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- f.sup.Run(ctx) }()

	f.queues.Inbound <- model.FromRadio(&meshproto.FromRadio{Kind: meshproto.PayloadConfigComplete})
	require.Eventually(t, func() bool { return f.dispatcher.count() == 1 }, time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("supervisor did not stop")
	}
}

func TestSupervisorRunReportsWorkerExit(t *testing.T) {
	f := newSupervisorFixture(t, 4)
	cause := errors.New("connection reset by peer")
	f.workerDone <- cause

	err := f.sup.Run(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLinkLost)
	assert.ErrorIs(t, err, cause)
	var exitErr *WorkerExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, "tcp://radio:4403", exitErr.Link)
}

func TestSupervisorRunReportsGracefulWorkerExit(t *testing.T) {
	f := newSupervisorFixture(t, 4)
	f.workerDone <- nil

	err := f.sup.Run(context.Background())

	assert.ErrorIs(t, err, ErrLinkLost)
	assert.Contains(t, err.Error(), "exited without error")
}

func TestSupervisorRunStopsOnDeadman(t *testing.T) {
	f := newSupervisorFixture(t, 16)
	f.clock.Advance(6 * time.Minute)

	done := make(chan error, 1)
	go func() { done <- f.sup.Run(context.Background()) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("supervisor did not stop on deadman")
	}
}

func TestDeadman(t *testing.T) {
	start := time.Unix(1700000000, 0)
	d := NewDeadman(time.Minute, start)

	assert.False(t, d.Expired(start.Add(time.Minute)))
	assert.True(t, d.Expired(start.Add(time.Minute+time.Nanosecond)))

	d.Reset(start.Add(time.Minute))
	assert.Equal(t, 30*time.Second, d.Idle(start.Add(90*time.Second)))
	assert.False(t, d.Expired(start.Add(90*time.Second)))
}

func TestHealthStatusNotifiesOnChangeOnly(t *testing.T) {
	h := NewHealthStatus()
	var seen []bool
	h.OnLinkChange(func(up bool) { seen = append(seen, up) })

	h.SetLinkUp(false)
	h.SetLinkUp(true)
	h.SetLinkUp(true)
	h.SetLinkUp(false)

	assert.Equal(t, []bool{true, false}, seen)
	assert.False(t, h.LinkUp())
}

func TestHealthStatusSnapshot(t *testing.T) {
	h := NewHealthStatus()
	snap := h.Snapshot()
	assert.Equal(t, false, snap["link_up"])
	assert.NotContains(t, snap, "last_frame_at")

	ts := time.Unix(1700000000, 0)
	h.SetLinkUp(true)
	h.MarkFrame(ts)
	h.MarkFrame(ts)
	snap = h.Snapshot()
	assert.Equal(t, true, snap["link_up"])
	assert.Equal(t, uint64(2), snap["frames_handled"])
	assert.Equal(t, ts.UTC(), snap["last_frame_at"])
}
