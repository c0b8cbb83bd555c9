// Package notifier provides a high-level interface over PostgreSQL
// LISTEN/NOTIFY for event-driven wakeup of orchestrator dispatch loops:
// automatic listener management with reconnection, typed event handling,
// and graceful shutdown. A process with no Postgres listener support
// (e.g. one built on store/databasesql) can still use Notify in
// send-only mode; Start becomes a no-op wait-for-cancellation loop.
package notifier

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// EventType is the kind of change an orchd process wants to wake up for.
type EventType string

// Event types this module publishes. orchd_events fires once per
// AppendEvent; orchd_tools fires once per CreateToolExecution. The
// stores send nothing on UpdateToolExecutionState, so no received
// notification maps to EventToolStateChanged.
const (
	EventAppended           EventType = "event_appended"
	EventToolPending        EventType = "tool_pending"
	EventToolStateChanged   EventType = "tool_state_changed"
	EventInstanceRegistered EventType = "instance_registered"
)

// Event represents one received notification.
type Event struct {
	Type       EventType
	Payload    string // typically a user_id or tool_execution_id
	ReceivedAt time.Time
}

// Handler is called synchronously for each event a subscription matches.
// Handlers should be quick; long work should hand off to its own
// goroutine.
type Handler func(event *Event)

// Notification is one raw Postgres NOTIFY delivery.
type Notification struct {
	Channel string
	Payload string
}

// Listener is the minimal subset of a pgx/v5 dedicated connection this
// package needs: subscribe to channels and block for the next
// notification. store/pgxv5 provides the concrete implementation.
type Listener interface {
	Listen(ctx context.Context, channel string) error
	WaitForNotification(ctx context.Context) (*Notification, error)
	Close(ctx context.Context) error
}

// Notifier sends a NOTIFY on a channel. store/pgxv5 implements this via
// pg_notify; store/databasesql can implement it over a plain query even
// though it has no matching Listener.
type Notifier interface {
	Notify(ctx context.Context, channel, payload string) error
}

// Config holds reconnection/observability hooks.
type Config struct {
	// ReconnectDelay is how long to wait before reconnecting after a
	// disconnect. Default: 5 seconds.
	ReconnectDelay time.Duration

	// OnError is called when the listen loop errors.
	OnError func(err error)

	// OnReconnect is called after a successful reconnect.
	OnReconnect func()
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{ReconnectDelay: 5 * time.Second}
}

var channelToEventType = map[string]EventType{
	"orchd_events": EventAppended,
	"orchd_tools":  EventToolPending,
	"orchd_instances": EventInstanceRegistered,
}

var eventTypeToChannel = map[EventType]string{
	EventAppended:           "orchd_events",
	EventToolPending:        "orchd_tools",
	EventToolStateChanged:   "orchd_tools",
	EventInstanceRegistered: "orchd_instances",
}

type subscription struct {
	eventType EventType
	handler   Handler
	id        int64
}

// Hub manages subscriptions over a Listener/Notifier pair.
type Hub struct {
	getListener func(ctx context.Context) (Listener, error)
	notifier    Notifier
	config      *Config

	mu            sync.RWMutex
	subscriptions map[EventType][]*subscription
	nextSubID     int64

	started atomic.Bool
	done    chan struct{}
	cancel  context.CancelFunc
}

// NewHub creates a Hub. getListener may be nil for a send-only Hub (no
// Postgres LISTEN support, e.g. store/databasesql deployments).
func NewHub(getListener func(ctx context.Context) (Listener, error), notifier Notifier, config *Config) *Hub {
	if config == nil {
		config = DefaultConfig()
	}
	return &Hub{
		getListener:   getListener,
		notifier:      notifier,
		config:        config,
		subscriptions: make(map[EventType][]*subscription),
		done:          make(chan struct{}),
	}
}

// Start begins listening for notifications in the background.
func (h *Hub) Start(ctx context.Context) error {
	if !h.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	ctx, h.cancel = context.WithCancel(ctx)
	go h.run(ctx)
	return nil
}

// Stop stops the Hub and waits for its background loop to exit.
func (h *Hub) Stop() error {
	if !h.started.Load() {
		return ErrNotStarted
	}
	h.cancel()
	<-h.done
	h.started.Store(false)
	return nil
}

// Subscribe registers a handler for an event type. Returns a function to
// unsubscribe.
func (h *Hub) Subscribe(eventType EventType, handler Handler) func() {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub := &subscription{eventType: eventType, handler: handler, id: h.nextSubID}
	h.nextSubID++
	h.subscriptions[eventType] = append(h.subscriptions[eventType], sub)

	return func() { h.unsubscribe(eventType, sub.id) }
}

func (h *Hub) unsubscribe(eventType EventType, id int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := h.subscriptions[eventType]
	for i, sub := range subs {
		if sub.id == id {
			h.subscriptions[eventType] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

// Notify publishes an event for eventType to every process listening.
func (h *Hub) Notify(ctx context.Context, eventType EventType, payload string) error {
	if h.notifier == nil {
		return ErrNotifyNotSupported
	}
	channel, ok := eventTypeToChannel[eventType]
	if !ok {
		return ErrUnknownEventType
	}
	return h.notifier.Notify(ctx, channel, payload)
}

func (h *Hub) run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			return
		default:
			if err := h.listenLoop(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				if h.config.OnError != nil {
					h.config.OnError(err)
				}
				select {
				case <-ctx.Done():
					return
				case <-time.After(h.config.ReconnectDelay):
					if h.config.OnReconnect != nil {
						h.config.OnReconnect()
					}
				}
			}
		}
	}
}

func (h *Hub) listenLoop(ctx context.Context) error {
	if h.getListener == nil {
		<-ctx.Done()
		return ctx.Err()
	}

	listener, err := h.getListener(ctx)
	if err != nil {
		return err
	}
	if listener == nil {
		<-ctx.Done()
		return ctx.Err()
	}
	defer func() { _ = listener.Close(ctx) }()

	for channel := range channelToEventType {
		if err := listener.Listen(ctx, channel); err != nil {
			return err
		}
	}

	for {
		notification, err := listener.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		eventType, ok := channelToEventType[notification.Channel]
		if !ok {
			continue
		}
		h.dispatch(&Event{Type: eventType, Payload: notification.Payload, ReceivedAt: time.Now().UTC()})
	}
}

func (h *Hub) dispatch(event *Event) {
	h.mu.RLock()
	subs := make([]*subscription, len(h.subscriptions[event.Type]))
	copy(subs, h.subscriptions[event.Type])
	h.mu.RUnlock()

	for _, sub := range subs {
		sub.handler(event)
	}
}

// IsRunning reports whether Start has been called without a matching Stop.
func (h *Hub) IsRunning() bool { return h.started.Load() }
