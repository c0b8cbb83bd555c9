package maintenance

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/orchestrator-core/orchd/store"
)

// Default heartbeat configuration values.
const (
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultInstanceTTL       = 2 * time.Minute
)

// HeartbeatConfig configures a Heartbeat service.
type HeartbeatConfig struct {
	// Interval is how often to send heartbeats. Default: 30 seconds.
	Interval time.Duration

	// OnError is called when a heartbeat fails. Nil ignores errors.
	OnError func(err error)
}

// DefaultHeartbeatConfig returns the default heartbeat configuration.
func DefaultHeartbeatConfig() *HeartbeatConfig {
	return &HeartbeatConfig{Interval: DefaultHeartbeatInterval}
}

// Heartbeat sends periodic heartbeats keeping one orchd process's instance
// bookkeeping row current. Not used for coordination, only so a
// multi-instance deployment has liveness data to build on later.
type Heartbeat struct {
	store      store.Store
	instanceID string
	config     *HeartbeatConfig

	started atomic.Bool
	done    chan struct{}
	cancel  context.CancelFunc
}

// NewHeartbeat creates a Heartbeat service for instanceID.
func NewHeartbeat(st store.Store, instanceID string, config *HeartbeatConfig) *Heartbeat {
	if config == nil {
		config = DefaultHeartbeatConfig()
	}
	return &Heartbeat{store: st, instanceID: instanceID, config: config, done: make(chan struct{})}
}

// Start registers the instance and begins sending heartbeats in the
// background.
func (h *Heartbeat) Start(ctx context.Context) error {
	if !h.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	if err := h.store.RegisterInstance(ctx, h.instanceID); err != nil && h.config.OnError != nil {
		h.config.OnError(err)
	}

	ctx, h.cancel = context.WithCancel(ctx)
	go h.run(ctx)
	return nil
}

// Stop stops sending heartbeats.
func (h *Heartbeat) Stop() error {
	if !h.started.Load() {
		return ErrNotStarted
	}
	h.cancel()
	<-h.done
	h.started.Store(false)
	return nil
}

func (h *Heartbeat) run(ctx context.Context) {
	defer close(h.done)

	ticker := time.NewTicker(h.config.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.sendHeartbeat(ctx)
		}
	}
}

func (h *Heartbeat) sendHeartbeat(ctx context.Context) {
	if err := h.store.Heartbeat(ctx, h.instanceID); err != nil && h.config.OnError != nil {
		h.config.OnError(err)
	}
}

// IsRunning reports whether the heartbeat loop is active.
func (h *Heartbeat) IsRunning() bool { return h.started.Load() }
