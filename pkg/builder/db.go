package builder

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/marshallshelly/storefront/pkg/registry"
	"github.com/marshallshelly/storefront/pkg/runtime"
	"github.com/marshallshelly/storefront/pkg/schema"
)

// DB wraps runtime.DB and provides query builder methods.
type DB struct {
	db *runtime.DB
}

// New creates a new query builder DB from a runtime DB.
func New(db *runtime.DB) *DB {
	return &DB{db: db}
}

// Runtime returns the underlying runtime.DB.
func (d *DB) Runtime() *runtime.DB {
	return d.db
}

// Exec implements Querier.
func (d *DB) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	if d.db == nil {
		return 0, runtime.ErrNoConnection
	}
	return d.db.Exec(ctx, sql, args...)
}

// Query implements Querier.
func (d *DB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if d.db == nil {
		return nil, runtime.ErrNoConnection
	}
	return d.db.Query(ctx, sql, args...)
}

// QueryRow implements Querier.
func (d *DB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if d.db == nil {
		return errRow{err: runtime.ErrNoConnection}
	}
	return d.db.QueryRow(ctx, sql, args...)
}

type errRow struct{ err error }

func (r errRow) Scan(...any) error { return r.err }

func tableFor[T any]() (*schema.TableMetadata, error) {
	var model T
	table, err := registry.GetOrRegister(model)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", runtime.ErrInvalidModel, err)
	}
	return table, nil
}

// Select creates a new type-safe SELECT query.
// Usage: builder.Select[models.Product](db).Where(...).All(ctx)
func Select[T any](q Querier) *SelectQuery[T] {
	table, err := tableFor[T]()
	return &SelectQuery[T]{q: q, table: table, err: err}
}

// Insert creates a new type-safe INSERT query.
// Usage: builder.Insert[models.Product](db).Values(p).ExecReturning(ctx)
func Insert[T any](q Querier) *InsertQuery[T] {
	table, err := tableFor[T]()
	return &InsertQuery[T]{q: q, table: table, err: err}
}

// Update creates a new type-safe UPDATE query.
// Usage: builder.Update[models.Product](db).Set("inventory", 4).Where(...).Exec(ctx)
func Update[T any](q Querier) *UpdateQuery[T] {
	table, err := tableFor[T]()
	return &UpdateQuery[T]{q: q, table: table, err: err}
}

// Delete creates a new type-safe DELETE query.
// Usage: builder.Delete[models.Product](db).Where(...).Exec(ctx)
func Delete[T any](q Querier) *DeleteQuery[T] {
	table, err := tableFor[T]()
	return &DeleteQuery[T]{q: q, table: table, err: err}
}
