package mind

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/keshon/heartflow/internal/config"
)

// Heartbeat runs one proactive loop per known group. Loops are started
// lazily when a group first shows up and all stop together on shutdown.
// Stop is idempotent; Ensure after Stop is a no-op.
type Heartbeat struct {
	cfg    config.EngineConfig
	engine *Engine

	mu      sync.Mutex
	running map[string]struct{}
	eg      *errgroup.Group
	ctx     context.Context
	cancel  context.CancelFunc
	stopped atomic.Bool
}

func NewHeartbeat(cfg config.EngineConfig, engine *Engine) *Heartbeat {
	return &Heartbeat{
		cfg:     cfg,
		engine:  engine,
		running: make(map[string]struct{}),
	}
}

// Start prepares the registry. Loops spawn via Ensure afterwards.
func (h *Heartbeat) Start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	h.mu.Lock()
	h.ctx = ctx
	h.cancel = cancel
	h.eg, h.ctx = errgroup.WithContext(ctx)
	h.mu.Unlock()
}

// Ensure spawns the group's trigger loop if it is not already running.
func (h *Heartbeat) Ensure(groupID string) {
	if h.stopped.Load() {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.eg == nil {
		return
	}
	if _, ok := h.running[groupID]; ok {
		return
	}
	h.running[groupID] = struct{}{}
	ctx := h.ctx
	h.eg.Go(func() error {
		h.loop(ctx, groupID)
		return nil
	})
	log.Printf("[MIND] heartbeat started for group %s", groupID)
}

func (h *Heartbeat) loop(ctx context.Context, groupID string) {
	ticker := time.NewTicker(h.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.engine.TriggerProactive(ctx, groupID)
		}
	}
}

// Stop shuts every loop down and waits for them to exit.
func (h *Heartbeat) Stop() {
	if !h.stopped.CompareAndSwap(false, true) {
		return
	}
	h.mu.Lock()
	cancel := h.cancel
	eg := h.eg
	h.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if eg != nil {
		_ = eg.Wait()
	}
	log.Println("[MIND] heartbeat stopped")
}
