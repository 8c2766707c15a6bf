package database

import (
	"context"
	"database/sql"

	"github.com/uptrace/bun"
)

type txKey struct{}

// RunInTx executes fn inside a single database transaction. The transaction
// is carried through the context so repositories participate transparently;
// nested calls reuse the outer transaction.
func RunInTx(ctx context.Context, db *bun.DB, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}

	return db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

func txFromContext(ctx context.Context) bun.IDB {
	tx, ok := ctx.Value(txKey{}).(bun.Tx)
	if !ok {
		return nil
	}
	return tx
}

// IDB resolves the statement executor for the current context: the enclosing
// transaction when one is active, the supplied connection otherwise.
func IDB(ctx context.Context, db *bun.DB) bun.IDB {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	return db
}
