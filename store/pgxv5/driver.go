// Package pgxv5 is the primary concrete implementation of store.Store,
// built on jackc/pgx/v5. It also provides the notifier.Listener/Notifier
// pair store/pgxv5 deployments use to wake dispatch loops on
// AppendEvent/CreateToolExecution without polling.
//
// A pgxpool-backed Store with a querier interface satisfied by both
// *pgxpool.Pool and pgx.Tx, and a dedicated-connection Listener for
// LISTEN/NOTIFY.
package pgxv5

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// txContextKey is the context key under which an in-flight transaction is
// stashed by Store.WithinTx.
type txContextKey struct{}

// withTx returns a context carrying tx, read back by txFromContext.
func withTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txContextKey{}, tx)
}

// txFromContext retrieves the transaction stashed by withTx, or nil.
func txFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(txContextKey{}).(pgx.Tx)
	return tx
}
