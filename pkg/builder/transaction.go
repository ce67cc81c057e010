package builder

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/marshallshelly/storefront/pkg/runtime"
	"github.com/marshallshelly/storefront/pkg/schema"
)

// Tx wraps a pgx transaction. It implements Querier, so every builder
// accepts it in place of a *DB.
type Tx struct {
	tx pgx.Tx
}

// Begin starts a new transaction.
func (d *DB) Begin(ctx context.Context) (*Tx, error) {
	return d.BeginTx(ctx, pgx.TxOptions{})
}

// BeginTx starts a new transaction with custom options.
func (d *DB) BeginTx(ctx context.Context, txOptions pgx.TxOptions) (*Tx, error) {
	if d.db == nil {
		return nil, runtime.ErrNoConnection
	}
	tx, err := d.db.BeginTx(ctx, txOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &Tx{tx: tx}, nil
}

// Exec implements Querier.
func (t *Tx) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	tag, err := t.tx.Exec(ctx, sql, args...)
	if err != nil {
		return 0, txError(sql, err)
	}
	return tag.RowsAffected(), nil
}

// Query implements Querier.
func (t *Tx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	rows, err := t.tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, txError(sql, err)
	}
	return rows, nil
}

// QueryRow implements Querier.
func (t *Tx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return runtime.ClassifiedRow(t.tx.QueryRow(ctx, sql, args...), sql)
}

func txError(sql string, err error) error {
	if errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("%w: %w", runtime.ErrTransactionClosed, err)
	}
	return runtime.ClassifyError(&runtime.QueryError{Query: sql, Err: err})
}

// Commit commits the transaction.
func (t *Tx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", txError("COMMIT", err))
	}
	return nil
}

// Rollback rolls back the transaction. Rolling back a finished transaction
// is a no-op.
func (t *Tx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}
	return nil
}

// Savepoint creates a savepoint within the transaction.
func (t *Tx) Savepoint(ctx context.Context, name string) error {
	if _, err := t.Exec(ctx, "SAVEPOINT "+schema.QuoteIdent(name)); err != nil {
		return fmt.Errorf("failed to create savepoint %s: %w", name, err)
	}
	return nil
}

// RollbackToSavepoint undoes everything since the savepoint, keeping the
// transaction usable after a failed statement.
func (t *Tx) RollbackToSavepoint(ctx context.Context, name string) error {
	if _, err := t.Exec(ctx, "ROLLBACK TO SAVEPOINT "+schema.QuoteIdent(name)); err != nil {
		return fmt.Errorf("failed to rollback to savepoint %s: %w", name, err)
	}
	return nil
}

// ReleaseSavepoint releases a savepoint.
func (t *Tx) ReleaseSavepoint(ctx context.Context, name string) error {
	if _, err := t.Exec(ctx, "RELEASE SAVEPOINT "+schema.QuoteIdent(name)); err != nil {
		return fmt.Errorf("failed to release savepoint %s: %w", name, err)
	}
	return nil
}

// RunInTx runs fn in a transaction, committing when fn returns nil and
// rolling back otherwise, including on panic.
func RunInTx(ctx context.Context, db *DB, fn func(tx *Tx) error) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return err
	}
	return runTx(ctx, tx, fn)
}

func runTx(ctx context.Context, tx *Tx, fn func(tx *Tx) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				err = errors.Join(err, rbErr)
			}
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
