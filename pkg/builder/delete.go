package builder

import (
	"context"
	"strings"

	"github.com/marshallshelly/storefront/pkg/runtime"
	"github.com/marshallshelly/storefront/pkg/schema"
)

// Where adds a WHERE condition to the DELETE query.
func (q *DeleteQuery[T]) Where(conditions ...Condition) *DeleteQuery[T] {
	q.where = append(q.where, conditions...)
	return q
}

// And adds an AND condition.
func (q *DeleteQuery[T]) And(condition Condition) *DeleteQuery[T] {
	condition.Logic = LogicAnd
	return q.Where(condition)
}

// Or adds an OR condition.
func (q *DeleteQuery[T]) Or(condition Condition) *DeleteQuery[T] {
	condition.Logic = LogicOr
	return q.Where(condition)
}

// Returning specifies columns to return after delete.
func (q *DeleteQuery[T]) Returning(columns ...string) *DeleteQuery[T] {
	q.returning = columns
	return q
}

// ToSQL generates the DELETE SQL and arguments.
func (q *DeleteQuery[T]) ToSQL() (string, []any, error) {
	if q.err != nil {
		return "", nil, q.err
	}

	var sb strings.Builder
	var args []any

	sb.WriteString("DELETE FROM ")
	sb.WriteString(schema.QuoteIdent(q.table.Name))

	if len(q.where) > 0 {
		wb := NewWhereBuilder()
		wb.Add(q.where...)
		whereSQL, whereArgs, err := wb.Build()
		if err != nil {
			return "", nil, err
		}
		sb.WriteString(" ")
		sb.WriteString(whereSQL)
		args = whereArgs
	}

	writeReturning(&sb, q.returning)
	return sb.String(), args, nil
}

// Exec executes the DELETE and returns the number of deleted rows.
func (q *DeleteQuery[T]) Exec(ctx context.Context) (int64, error) {
	sql, args, err := q.ToSQL()
	if err != nil {
		return 0, err
	}
	n, err := execCount(ctx, q.q, sql, args, len(q.returning) > 0)
	return n, runtime.Protected(err)
}

// ExecReturning executes the DELETE and returns the deleted rows.
func (q *DeleteQuery[T]) ExecReturning(ctx context.Context) ([]T, error) {
	if q.err == nil && len(q.returning) == 0 {
		q.returning = q.table.ColumnNames()
	}
	sql, args, err := q.ToSQL()
	if err != nil {
		return nil, err
	}
	rows, err := queryAll[T](ctx, q.q, q.table, sql, args)
	return rows, runtime.Protected(err)
}
