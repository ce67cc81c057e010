package builder

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/marshallshelly/storefront/pkg/runtime"
	"github.com/marshallshelly/storefront/pkg/schema"
)

// Set assigns a column. Columns are written in the order they are set;
// setting a column twice keeps the last value.
func (q *UpdateQuery[T]) Set(column string, value any) *UpdateQuery[T] {
	if q.err != nil {
		return q
	}
	col := q.table.GetColumnByName(column)
	switch {
	case col == nil:
		q.err = fmt.Errorf("%s has no column %q", q.table.Name, column)
		return q
	case col.Managed():
		q.err = fmt.Errorf("%s.%s: %w", q.table.Name, column, runtime.ErrManagedColumn)
		return q
	}

	for i := range q.sets {
		if q.sets[i].column == column {
			q.sets[i].value = value
			return q
		}
	}
	q.sets = append(q.sets, setClause{column: column, value: value})
	return q
}

// SetMap assigns several columns, in column-name order.
func (q *UpdateQuery[T]) SetMap(values map[string]any) *UpdateQuery[T] {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		q.Set(k, values[k])
	}
	return q
}

// Where adds a WHERE condition.
func (q *UpdateQuery[T]) Where(conditions ...Condition) *UpdateQuery[T] {
	q.where = append(q.where, conditions...)
	return q
}

// And adds an AND condition.
func (q *UpdateQuery[T]) And(condition Condition) *UpdateQuery[T] {
	condition.Logic = LogicAnd
	return q.Where(condition)
}

// Or adds an OR condition.
func (q *UpdateQuery[T]) Or(condition Condition) *UpdateQuery[T] {
	condition.Logic = LogicOr
	return q.Where(condition)
}

// Returning specifies columns to return after update.
func (q *UpdateQuery[T]) Returning(columns ...string) *UpdateQuery[T] {
	q.returning = columns
	return q
}

// ToSQL generates the UPDATE SQL and arguments. Every autoNow column of the
// table is refreshed with NOW().
func (q *UpdateQuery[T]) ToSQL() (string, []any, error) {
	if q.err != nil {
		return "", nil, q.err
	}
	if len(q.sets) == 0 {
		return "", nil, fmt.Errorf("no columns to update")
	}

	var sb strings.Builder
	args := make([]any, 0, len(q.sets))

	sb.WriteString("UPDATE ")
	sb.WriteString(schema.QuoteIdent(q.table.Name))
	sb.WriteString(" SET ")

	clauses := make([]string, 0, len(q.sets)+1)
	for _, s := range q.sets {
		args = append(args, s.value)
		clauses = append(clauses, fmt.Sprintf("%s = $%d", schema.QuoteIdent(s.column), len(args)))
	}
	for _, col := range q.table.Columns {
		if col.AutoNow {
			clauses = append(clauses, schema.QuoteIdent(col.Name)+" = NOW()")
		}
	}
	sb.WriteString(strings.Join(clauses, ", "))

	if len(q.where) > 0 {
		wb := NewWhereBuilderWithStart(len(args) + 1)
		wb.Add(q.where...)
		whereSQL, whereArgs, err := wb.Build()
		if err != nil {
			return "", nil, fmt.Errorf("failed to build WHERE clause: %w", err)
		}
		sb.WriteString(" ")
		sb.WriteString(whereSQL)
		args = append(args, whereArgs...)
	}

	writeReturning(&sb, q.returning)
	return sb.String(), args, nil
}

// Exec executes the UPDATE and returns the number of affected rows.
func (q *UpdateQuery[T]) Exec(ctx context.Context) (int64, error) {
	sql, args, err := q.ToSQL()
	if err != nil {
		return 0, err
	}
	return execCount(ctx, q.q, sql, args, len(q.returning) > 0)
}

// ExecReturning executes the UPDATE and returns the updated rows.
func (q *UpdateQuery[T]) ExecReturning(ctx context.Context) ([]T, error) {
	if q.err == nil && len(q.returning) == 0 {
		q.returning = q.table.ColumnNames()
	}
	sql, args, err := q.ToSQL()
	if err != nil {
		return nil, err
	}
	return queryAll[T](ctx, q.q, q.table, sql, args)
}
