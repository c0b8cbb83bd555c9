package notifier

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type mockNotifier struct {
	notifications []struct{ channel, payload string }
	mu            sync.Mutex
	notifyErr     error
}

func (m *mockNotifier) Notify(ctx context.Context, channel, payload string) error {
	if m.notifyErr != nil {
		return m.notifyErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications = append(m.notifications, struct{ channel, payload string }{channel, payload})
	return nil
}

type mockListener struct {
	notifications chan *Notification
	closed        atomic.Bool
	listenErr     error
}

func newMockListener() *mockListener {
	return &mockListener{notifications: make(chan *Notification, 10)}
}

func (m *mockListener) Listen(ctx context.Context, channel string) error { return m.listenErr }

func (m *mockListener) WaitForNotification(ctx context.Context) (*Notification, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case n := <-m.notifications:
		return n, nil
	}
}

func (m *mockListener) Close(ctx context.Context) error {
	m.closed.Store(true)
	return nil
}

func TestHub_StartStop(t *testing.T) {
	h := NewHub(nil, nil, nil)
	ctx := context.Background()

	if err := h.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !h.IsRunning() {
		t.Error("expected hub to be running")
	}
	if err := h.Start(ctx); err != ErrAlreadyStarted {
		t.Fatalf("Start() error = %v, want %v", err, ErrAlreadyStarted)
	}
	if err := h.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if h.IsRunning() {
		t.Error("expected hub to not be running")
	}
}

func TestHub_StopNotStarted(t *testing.T) {
	h := NewHub(nil, nil, nil)
	if err := h.Stop(); err != ErrNotStarted {
		t.Fatalf("Stop() error = %v, want %v", err, ErrNotStarted)
	}
}

func TestHub_Subscribe(t *testing.T) {
	listener := newMockListener()
	getListener := func(ctx context.Context) (Listener, error) { return listener, nil }

	h := NewHub(getListener, nil, nil)

	var received []*Event
	var mu sync.Mutex
	unsubscribe := h.Subscribe(EventAppended, func(event *Event) {
		mu.Lock()
		received = append(received, event)
		mu.Unlock()
	})

	ctx := context.Background()
	if err := h.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	listener.notifications <- &Notification{Channel: "orchd_events", Payload: "user-123"}
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	if len(received) != 1 {
		t.Errorf("received %d events, want 1", len(received))
	} else if received[0].Type != EventAppended || received[0].Payload != "user-123" {
		t.Errorf("unexpected event: %+v", received[0])
	}
	mu.Unlock()

	unsubscribe()
	listener.notifications <- &Notification{Channel: "orchd_events", Payload: "user-456"}
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	if len(received) != 1 {
		t.Errorf("received %d events after unsubscribe, want 1", len(received))
	}
	mu.Unlock()

	if err := h.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
}

func TestHub_Notify(t *testing.T) {
	mock := &mockNotifier{}
	h := NewHub(nil, mock, nil)

	if err := h.Notify(context.Background(), EventAppended, "user-123"); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}

	mock.mu.Lock()
	defer mock.mu.Unlock()
	if len(mock.notifications) != 1 {
		t.Fatalf("sent %d notifications, want 1", len(mock.notifications))
	}
	if mock.notifications[0].channel != "orchd_events" || mock.notifications[0].payload != "user-123" {
		t.Errorf("unexpected notification: %+v", mock.notifications[0])
	}
}

func TestHub_NotifyNotSupported(t *testing.T) {
	h := NewHub(nil, nil, nil)
	if err := h.Notify(context.Background(), EventAppended, "user-123"); err != ErrNotifyNotSupported {
		t.Errorf("Notify() error = %v, want %v", err, ErrNotifyNotSupported)
	}
}

func TestHub_UnknownEventType(t *testing.T) {
	mock := &mockNotifier{}
	h := NewHub(nil, mock, nil)
	if err := h.Notify(context.Background(), EventType("unknown"), "payload"); err != ErrUnknownEventType {
		t.Errorf("Notify() error = %v, want %v", err, ErrUnknownEventType)
	}
}

func TestHub_MultipleSubscribers(t *testing.T) {
	listener := newMockListener()
	getListener := func(ctx context.Context) (Listener, error) { return listener, nil }
	h := NewHub(getListener, nil, nil)

	var count1, count2 atomic.Int32
	h.Subscribe(EventAppended, func(event *Event) { count1.Add(1) })
	h.Subscribe(EventAppended, func(event *Event) { count2.Add(1) })

	ctx := context.Background()
	if err := h.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	listener.notifications <- &Notification{Channel: "orchd_events", Payload: "user-123"}
	time.Sleep(50 * time.Millisecond)

	if count1.Load() != 1 {
		t.Errorf("handler 1 called %d times, want 1", count1.Load())
	}
	if count2.Load() != 1 {
		t.Errorf("handler 2 called %d times, want 1", count2.Load())
	}

	if err := h.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	if config.ReconnectDelay != 5*time.Second {
		t.Errorf("ReconnectDelay = %v, want 5s", config.ReconnectDelay)
	}
}
