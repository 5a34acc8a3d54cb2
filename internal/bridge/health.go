package bridge

import (
	"sync"
	"sync/atomic"
	"time"
)

type HealthStatus struct {
	linkUp          atomic.Bool
	lastFrameAt     atomic.Int64
	lastHeartbeatAt atomic.Int64
	framesHandled   atomic.Uint64

	mu        sync.Mutex
	listeners []func(up bool)
}

func NewHealthStatus() *HealthStatus {
	h := &HealthStatus{}
	h.linkUp.Store(false)
	return h
}

// OnLinkChange registers fn to run whenever the link state flips.
func (h *HealthStatus) OnLinkChange(fn func(up bool)) {
	h.mu.Lock()
	h.listeners = append(h.listeners, fn)
	h.mu.Unlock()
}

func (h *HealthStatus) SetLinkUp(ok bool) {
	if h.linkUp.Swap(ok) == ok {
		return
	}
	h.mu.Lock()
	listeners := append([]func(bool){}, h.listeners...)
	h.mu.Unlock()
	for _, fn := range listeners {
		fn(ok)
	}
}

func (h *HealthStatus) LinkUp() bool {
	return h.linkUp.Load()
}

func (h *HealthStatus) MarkFrame(ts time.Time) {
	h.lastFrameAt.Store(ts.UnixNano())
	h.framesHandled.Add(1)
}

func (h *HealthStatus) MarkHeartbeat(ts time.Time) {
	h.lastHeartbeatAt.Store(ts.UnixNano())
}

func (h *HealthStatus) Snapshot() map[string]any {
	out := map[string]any{
		"link_up":        h.linkUp.Load(),
		"frames_handled": h.framesHandled.Load(),
	}
	if v := h.lastFrameAt.Load(); v > 0 {
		out["last_frame_at"] = time.Unix(0, v).UTC()
	}
	if v := h.lastHeartbeatAt.Load(); v > 0 {
		out["last_heartbeat_at"] = time.Unix(0, v).UTC()
	}
	return out
}
