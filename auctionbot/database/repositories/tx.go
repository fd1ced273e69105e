package repositories

import (
	"context"
	"database/sql"

	"github.com/uptrace/bun"
)

type txKey struct{}

// idb returns the transaction bound to ctx if a lot lock (or any repository
// transaction) is open, otherwise the base DB. All repository reads and writes
// go through this so they join an enclosing transaction transparently.
func idb(ctx context.Context, db *bun.DB) bun.IDB {
	if tx, ok := ctx.Value(txKey{}).(bun.Tx); ok {
		return tx
	}
	return db
}

func withTx(ctx context.Context, db *bun.DB, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(bun.Tx); ok {
		return fn(ctx)
	}
	return db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}
