// Package databasesql is the secondary store.Store implementation, built
// on database/sql + lib/pq for deployments that don't want a pgx
// dependency. It has no notifier.Listener — LISTEN/NOTIFY needs a
// dedicated connection database/sql's pool doesn't expose — but does
// implement notifier.Notifier over a plain NOTIFY statement, so a
// process built on this driver can still wake up others even though it
// can't be woken itself.
//
// A *sql.DB-backed Store with a querier interface satisfied by both
// *sql.DB and *sql.Tx.
package databasesql

import (
	"context"
	"database/sql"
)

// txContextKey is the context key under which an in-flight transaction
// is stashed by Store.WithinTx.
type txContextKey struct{}

func withTx(ctx context.Context, tx *sql.Tx) context.Context {
	return context.WithValue(ctx, txContextKey{}, tx)
}

func txFromContext(ctx context.Context) *sql.Tx {
	tx, _ := ctx.Value(txContextKey{}).(*sql.Tx)
	return tx
}
