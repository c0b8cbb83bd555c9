package maintenance

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/orchestrator-core/orchd/internal/testutil"
)

// countingStore wraps MemStore to observe RegisterInstance/Heartbeat call
// counts without needing a hand-rolled store.Store fake.
type countingStore struct {
	*testutil.MemStore
	registerCount  atomic.Int32
	heartbeatCount atomic.Int32
	heartbeatErr   error
}

func (c *countingStore) RegisterInstance(ctx context.Context, instanceID string) error {
	c.registerCount.Add(1)
	return c.MemStore.RegisterInstance(ctx, instanceID)
}

func (c *countingStore) Heartbeat(ctx context.Context, instanceID string) error {
	c.heartbeatCount.Add(1)
	if c.heartbeatErr != nil {
		return c.heartbeatErr
	}
	return c.MemStore.Heartbeat(ctx, instanceID)
}

func TestHeartbeat_StartStop(t *testing.T) {
	st := &countingStore{MemStore: testutil.NewMemStore()}
	hb := NewHeartbeat(st, "instance-1", &HeartbeatConfig{Interval: 30 * time.Millisecond})

	ctx := context.Background()
	if err := hb.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !hb.IsRunning() {
		t.Error("expected heartbeat to be running")
	}
	if err := hb.Start(ctx); err != ErrAlreadyStarted {
		t.Fatalf("Start() error = %v, want %v", err, ErrAlreadyStarted)
	}

	time.Sleep(100 * time.Millisecond)

	if err := hb.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if hb.IsRunning() {
		t.Error("expected heartbeat to not be running")
	}

	if st.registerCount.Load() != 1 {
		t.Errorf("register count = %d, want 1", st.registerCount.Load())
	}
	if count := st.heartbeatCount.Load(); count < 2 {
		t.Errorf("heartbeat count = %d, want >= 2", count)
	}
}

func TestHeartbeat_StopNotStarted(t *testing.T) {
	hb := NewHeartbeat(&countingStore{MemStore: testutil.NewMemStore()}, "instance-1", nil)
	if err := hb.Stop(); err != ErrNotStarted {
		t.Fatalf("Stop() error = %v, want %v", err, ErrNotStarted)
	}
}

func TestHeartbeat_ErrorCallback(t *testing.T) {
	st := &countingStore{MemStore: testutil.NewMemStore(), heartbeatErr: ErrNotStarted}

	var errorCount atomic.Int32
	hb := NewHeartbeat(st, "instance-1", &HeartbeatConfig{
		Interval: 30 * time.Millisecond,
		OnError:  func(err error) { errorCount.Add(1) },
	})

	ctx := context.Background()
	if err := hb.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	time.Sleep(80 * time.Millisecond)
	if err := hb.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	if errorCount.Load() == 0 {
		t.Error("expected OnError to be called at least once")
	}
}

func TestDefaultHeartbeatConfig(t *testing.T) {
	config := DefaultHeartbeatConfig()
	if config.Interval != DefaultHeartbeatInterval {
		t.Errorf("Interval = %v, want %v", config.Interval, DefaultHeartbeatInterval)
	}
}
