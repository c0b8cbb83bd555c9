package pgxv5

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/orchestrator-core/orchd/notifier"
)

// Listener implements notifier.Listener using a dedicated pgxpool
// connection held for the lifetime of the listen session (a pooled
// connection can't share LISTEN state with other callers).
type Listener struct {
	conn   *pgxpool.Conn
	mu     sync.RWMutex
	closed bool
}

// NewListener acquires a dedicated connection from pool and returns a
// Listener bound to it. Callers get a fresh Listener per listen session
// (notifier.Hub calls this once per reconnect attempt) rather than
// reusing one across reconnects.
func NewListener(ctx context.Context, pool *pgxpool.Pool) (*Listener, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("pgxv5: acquire listener connection: %w", err)
	}
	return &Listener{conn: conn}, nil
}

func (l *Listener) Listen(ctx context.Context, channel string) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return fmt.Errorf("pgxv5: listener closed")
	}
	_, err := l.conn.Exec(ctx, `LISTEN `+quoteIdent(channel))
	return err
}

func (l *Listener) WaitForNotification(ctx context.Context) (*notifier.Notification, error) {
	l.mu.RLock()
	if l.closed {
		l.mu.RUnlock()
		return nil, fmt.Errorf("pgxv5: listener closed")
	}
	l.mu.RUnlock()

	n, err := l.conn.Conn().WaitForNotification(ctx)
	if err != nil {
		return nil, err
	}
	return &notifier.Notification{Channel: n.Channel, Payload: n.Payload}, nil
}

func (l *Listener) Close(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	_, _ = l.conn.Exec(ctx, "UNLISTEN *")
	l.conn.Release()
	return nil
}

// Notifier implements notifier.Notifier via pg_notify, usable from any
// pool connection (unlike Listener it needs no dedicated one).
type Notifier struct {
	pool *pgxpool.Pool
}

// NewNotifier wraps pool for sending notifications.
func NewNotifier(pool *pgxpool.Pool) *Notifier {
	return &Notifier{pool: pool}
}

func (n *Notifier) Notify(ctx context.Context, channel, payload string) error {
	_, err := n.pool.Exec(ctx, "SELECT pg_notify($1, $2)", channel, payload)
	return err
}

func quoteIdent(s string) string {
	out := make([]byte, 0, len(s)+2)
	out = append(out, '"')
	for i := 0; i < len(s); i++ {
		if s[i] == '"' {
			out = append(out, '"', '"')
		} else {
			out = append(out, s[i])
		}
	}
	out = append(out, '"')
	return string(out)
}

var (
	_ notifier.Listener = (*Listener)(nil)
	_ notifier.Notifier = (*Notifier)(nil)
)
