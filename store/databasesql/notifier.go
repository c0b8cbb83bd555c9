package databasesql

import (
	"context"
	"database/sql"

	"github.com/orchestrator-core/orchd/notifier"
)

// Notifier implements notifier.Notifier via a plain NOTIFY statement.
// There is no accompanying Listener: database/sql's pool hands back
// whichever idle connection it likes on every query, and LISTEN state
// lives on the connection that issued it, so a pooled *sql.DB can't
// support WaitForNotification the way a dedicated pgxpool.Conn can.
// Deployments that need to receive notifications should pair this
// driver's Store with store/pgxv5's Listener, or poll instead.
type Notifier struct {
	db *sql.DB
}

// NewNotifier wraps db for sending notifications.
func NewNotifier(db *sql.DB) *Notifier {
	return &Notifier{db: db}
}

func (n *Notifier) Notify(ctx context.Context, channel, payload string) error {
	_, err := n.db.ExecContext(ctx, "SELECT pg_notify($1, $2)", channel, payload)
	return err
}

var _ notifier.Notifier = (*Notifier)(nil)
