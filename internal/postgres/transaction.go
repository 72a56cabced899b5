package postgres

import (
	"context"
	"database/sql"
	"fmt"

	ierr "github.com/flexprice/billing-engine/internal/errors"
	"github.com/flexprice/billing-engine/internal/types"
	"github.com/jmoiron/sqlx"
)

// Tx is a running transaction. Nested WithTx calls reuse it through
// savepoints, so depth tracks how many are open.
type Tx struct {
	*sqlx.Tx
	ID          string
	depth       int
	afterCommit []func()
}

// GetTx retrieves the transaction carried by ctx
func GetTx(ctx context.Context) (*Tx, bool) {
	tx, ok := ctx.Value(types.CtxDBTransaction).(*Tx)
	return tx, ok
}

// AfterCommit runs fn once the transaction in ctx commits, or right away
// when ctx carries none. A rolled back transaction drops fn.
func AfterCommit(ctx context.Context, fn func()) {
	if tx, ok := GetTx(ctx); ok {
		tx.afterCommit = append(tx.afterCommit, fn)
		return
	}
	fn()
}

func savepoint(depth int) string {
	return fmt.Sprintf("sp_%d", depth)
}

// begin starts a transaction, or a savepoint when ctx already carries one
func (db *DB) begin(ctx context.Context) (context.Context, *Tx, error) {
	if tx, ok := GetTx(ctx); ok {
		tx.depth++
		if _, err := tx.ExecContext(ctx, "SAVEPOINT "+savepoint(tx.depth)); err != nil {
			tx.depth--
			return ctx, nil, ierr.WithError(err).
				WithHint("Could not open a nested transaction").
				Mark(ierr.ErrDatabase)
		}
		return ctx, tx, nil
	}

	sqlxTx, err := db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return ctx, nil, ierr.WithError(err).
			WithHint("Could not start a database transaction").
			Mark(ierr.ErrDatabase)
	}

	tx := &Tx{Tx: sqlxTx, ID: types.GenerateUUID()}
	db.logger.Debugw("started transaction", "tx_id", tx.ID)
	return context.WithValue(ctx, types.CtxDBTransaction, tx), tx, nil
}

func (db *DB) commit(ctx context.Context, tx *Tx) error {
	if tx.depth > 0 {
		_, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT "+savepoint(tx.depth))
		tx.depth--
		if err != nil {
			return ierr.WithError(err).Mark(ierr.ErrDatabase)
		}
		return nil
	}
	if err := tx.Commit(); err != nil {
		return ierr.WithError(err).
			WithHint("Could not commit the database transaction").
			Mark(ierr.ErrDatabase)
	}
	db.logger.Debugw("committed transaction", "tx_id", tx.ID)

	hooks := tx.afterCommit
	tx.afterCommit = nil
	for _, fn := range hooks {
		fn()
	}
	return nil
}

func (db *DB) rollback(ctx context.Context, tx *Tx) error {
	if tx.depth > 0 {
		_, err := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+savepoint(tx.depth))
		tx.depth--
		return err
	}
	tx.afterCommit = nil
	return tx.Rollback()
}

// WithTx runs fn inside a transaction. The transaction rolls back when fn
// returns an error or panics.
func (db *DB) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	txCtx, tx, err := db.begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			db.logger.Errorw("rolling back transaction due to panic", "tx_id", tx.ID, "panic", r)
			_ = db.rollback(txCtx, tx)
			panic(r)
		}
	}()

	if err := fn(txCtx); err != nil {
		if rbErr := db.rollback(txCtx, tx); rbErr != nil {
			db.logger.Errorw("rollback failed", "tx_id", tx.ID, "error", rbErr, "cause", err)
		}
		return err
	}

	return db.commit(txCtx, tx)
}
